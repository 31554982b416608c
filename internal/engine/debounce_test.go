package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer(t *testing.T) {
	t.Run("only the last trigger runs", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		d := NewDebouncer(clock, 300*time.Millisecond)
		var last, runs atomic.Int32

		for i := int32(1); i <= 5; i++ {
			d.Trigger(func() { last.Store(i); runs.Add(1) })
			clock.Advance(299 * time.Millisecond)
		}
		assert.True(t, d.Pending())
		assert.Zero(t, runs.Load())

		clock.Advance(time.Millisecond)
		require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
		assert.Equal(t, int32(5), last.Load())
		assert.False(t, d.Pending())
	})

	t.Run("cancel and stop", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		d := NewDebouncer(clock, time.Second)
		var runs atomic.Int32

		d.Trigger(func() { runs.Add(1) })
		assert.True(t, d.Cancel())
		assert.False(t, d.Cancel())

		d.Trigger(func() { runs.Add(1) })
		d.Stop()
		d.Trigger(func() { runs.Add(1) })
		clock.Advance(5 * time.Second)
		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, runs.Load())
	})

	t.Run("zero delay runs inline", func(t *testing.T) {
		d := NewDebouncer(clockwork.NewFakeClock(), 0)
		ran := false
		d.Trigger(func() { ran = true })
		assert.True(t, ran)
	})
}
