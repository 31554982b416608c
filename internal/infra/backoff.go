package infra

import (
	"time"
)

const (
	// Reconnect backoff for long-lived connections
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// Backoff is an exponential delay policy: Base * 2^(attempt-1), capped at Cap.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultRequestBackoff is the retry policy for REST calls: 1s, 2s, 4s ... capped at 10s.
var DefaultRequestBackoff = Backoff{Base: 1 * time.Second, Cap: 10 * time.Second}

// Delay returns the wait after the given failed attempt (1-based).
// Attempts below 1 return Base.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// 2^30 * 1ns already dwarfs any sane cap.
	if attempt > 31 {
		return b.Cap
	}
	d := b.Base * time.Duration(1<<(attempt-1))
	if d > b.Cap || d <= 0 {
		return b.Cap
	}
	return d
}

// CalculateBackoff returns the reconnect delay for a given retry count.
// Logic: baseDelay * 2^retryCount, capped at maxDelay.
// If retryCount is negative, it returns baseDelay.
func CalculateBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		return baseDelay
	}
	return Backoff{Base: baseDelay, Cap: maxDelay}.Delay(retryCount + 1)
}
