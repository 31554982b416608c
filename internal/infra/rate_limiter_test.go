package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_TryAdmit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(2, time.Minute, clock)

	// Should admit the first two immediately
	if !rl.TryAdmit() {
		t.Error("expected first TryAdmit to succeed")
	}
	if !rl.TryAdmit() {
		t.Error("expected second TryAdmit to succeed")
	}

	// Third should fail (quota used)
	if rl.TryAdmit() {
		t.Error("expected third TryAdmit to fail")
	}
	assert.Equal(t, 2, rl.InWindow())

	// Window slides past both grants
	clock.Advance(time.Minute)
	assert.Equal(t, 0, rl.InWindow())
	assert.True(t, rl.TryAdmit())
}

func TestRateLimiter_AdmitWaitsForOldestToExpire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(3, 60*time.Second, clock)
	ctx := context.Background()

	// Oldest grant at t0, the rest 10s later.
	require.NoError(t, rl.Admit(ctx))
	clock.Advance(10 * time.Second)
	require.NoError(t, rl.Admit(ctx))
	require.NoError(t, rl.Admit(ctx))

	var admitted atomic.Bool
	done := make(chan error, 1)
	go func() {
		err := rl.Admit(ctx)
		admitted.Store(true)
		done <- err
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.Equal(t, 1, rl.Waiting())

	// oldest + 60s - now = 50s
	clock.Advance(50*time.Second - time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, admitted.Load(), "must not admit before the oldest grant leaves the window")

	clock.Advance(time.Millisecond)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Admit did not return after the window slid")
	}
	assert.Equal(t, 3, rl.InWindow())
}

func TestRateLimiter_AdmitCancelled(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(1, time.Minute, clock)
	require.NoError(t, rl.Admit(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rl.Admit(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Admit ignored cancellation")
	}
	assert.Equal(t, 1, rl.InWindow(), "a cancelled wait must not record a grant")
	assert.Equal(t, 0, rl.Waiting())
}

func TestRateLimiter_ConcurrentNeverExceedsQuota(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(5, time.Minute, clock)

	var wg sync.WaitGroup
	var granted atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.TryAdmit() {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), granted.Load())
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0, nil)
	assert.Equal(t, DefaultRateLimitQuota, rl.Quota())
}
