package engine

import (
	"sync"
	"time"

	"github.com/Gabrielc476/dashboard-crypto/internal/infra"
	"github.com/jonboulle/clockwork"
)

// Debouncer runs only the last function handed to Trigger once delay has
// passed without another Trigger.
type Debouncer struct {
	clock infra.Clock
	delay time.Duration

	mu      sync.Mutex
	timer   clockwork.Timer
	gen     uint64
	stopped bool
}

// NewDebouncer creates a Debouncer. A delay of zero or less runs functions immediately.
func NewDebouncer(clock infra.Clock, delay time.Duration) *Debouncer {
	if clock == nil {
		clock = infra.NewRealClock()
	}
	return &Debouncer{clock: clock, delay: delay}
}

// Trigger schedules fn, replacing any pending function.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopLocked()
	if d.delay <= 0 {
		d.mu.Unlock()
		fn()
		return
	}

	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.stopped || gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
	d.mu.Unlock()
}

// Cancel drops the pending function. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	pending := d.timer != nil
	d.stopLocked()
	return pending
}

// Pending reports whether a function is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels the pending function and ignores every later Trigger.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.stopped = true
}

func (d *Debouncer) stopLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
