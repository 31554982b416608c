package infra

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestCache_SetGetExpire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewCache(clock)

	c.Set("k", []byte("v"), 5*time.Minute)

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	clock.Advance(5*time.Minute - time.Millisecond)
	_, ok = c.Get("k")
	assert.True(t, ok, "entry must live until its expiry")

	clock.Advance(time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok, "expired entry must not be returned")
	assert.Equal(t, 0, c.Size(), "expired entry must be evicted on lookup")
}

func TestCache_ZeroTTLStoresNothing(t *testing.T) {
	c := NewCache(clockwork.NewFakeClock())
	c.Set("k", []byte("v"), 0)
	assert.False(t, c.Has("k"))
}

func TestCache_OverwriteRefreshesExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewCache(clock)

	c.Set("k", []byte("old"), time.Second)
	clock.Advance(900 * time.Millisecond)
	c.Set("k", []byte("new"), time.Second)
	clock.Advance(900 * time.Millisecond)

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "new", string(got))
}

func TestCache_ClearDeletePrune(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewCache(clock)

	c.Set("short", []byte("1"), time.Second)
	c.Set("long", []byte("2"), time.Hour)
	c.Set("gone", []byte("3"), time.Hour)
	c.Delete("gone")
	assert.Equal(t, 2, c.Size())

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, c.Prune())
	assert.True(t, c.Has("long"))

	c.Clear()
	assert.Equal(t, 0, c.Size())
	assert.False(t, c.Has("long"))
}

func TestCache_Concurrent(t *testing.T) {
	c := NewCache(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			c.Set(key, []byte(key), time.Minute)
			c.Get(key)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, c.Size())
}
