package infra

import (
	"github.com/jonboulle/clockwork"
)

// Clock is the time source for every timer in the data layer
// (TTL expiry, rate-limit waits, backoff sleeps, debounce and polling).
// Tests inject clockwork.NewFakeClock() and advance it by hand.
type Clock = clockwork.Clock

// NewRealClock returns the wall clock.
func NewRealClock() Clock {
	return clockwork.NewRealClock()
}

// orRealClock defaults a nil clock to the wall clock.
func orRealClock(c Clock) Clock {
	if c == nil {
		return clockwork.NewRealClock()
	}
	return c
}
