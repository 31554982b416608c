package infra

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// CoinGecko free plan: 50 calls per minute.
	DefaultRateLimitQuota  = 50
	DefaultRateLimitWindow = 60 * time.Second
)

// RateLimiter is a sliding-window admission counter.
// At most quota grants fall inside any trailing window; callers over quota
// are suspended until the oldest grant slides out.
// Thread-safe.
type RateLimiter struct {
	mu      sync.Mutex
	grants  []time.Time // ascending
	quota   int
	window  time.Duration
	clock   Clock
	waiting int
}

// NewRateLimiter creates a limiter. Non-positive arguments fall back to 50 per 60s.
func NewRateLimiter(quota int, window time.Duration, clock Clock) *RateLimiter {
	if quota <= 0 {
		quota = DefaultRateLimitQuota
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	return &RateLimiter{
		grants: make([]time.Time, 0, quota),
		quota:  quota,
		window: window,
		clock:  orRealClock(clock),
	}
}

// Admit blocks until the caller may issue a request.
// Returns ctx.Err() if ctx ends while waiting; no grant is recorded then.
func (r *RateLimiter) Admit(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.mu.Lock()
		now := r.clock.Now()
		r.prune(now)
		if len(r.grants) < r.quota {
			r.grants = append(r.grants, now)
			r.mu.Unlock()
			return nil
		}
		wait := r.grants[0].Add(r.window).Sub(now)
		r.waiting++
		r.mu.Unlock()

		slog.Debug("Rate limit reached, waiting",
			slog.Duration("wait", wait),
			slog.Int("quota", r.quota))

		// Re-check after the wait: another caller may have taken the freed slot.
		select {
		case <-ctx.Done():
			r.doneWaiting()
			return ctx.Err()
		case <-r.clock.After(wait):
			r.doneWaiting()
		}
	}
}

// TryAdmit grants without blocking. Returns false when over quota.
func (r *RateLimiter) TryAdmit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.prune(now)
	if len(r.grants) >= r.quota {
		return false
	}
	r.grants = append(r.grants, now)
	return true
}

// InWindow returns the number of grants inside the trailing window.
func (r *RateLimiter) InWindow() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(r.clock.Now())
	return len(r.grants)
}

// Waiting returns the number of callers currently suspended in Admit.
func (r *RateLimiter) Waiting() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiting
}

// Quota returns the configured quota.
func (r *RateLimiter) Quota() int { return r.quota }

func (r *RateLimiter) doneWaiting() {
	r.mu.Lock()
	r.waiting--
	r.mu.Unlock()
}

// prune drops grants at or before now-window. Must be called with mutex held.
func (r *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.grants) && !r.grants[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.grants = append(r.grants[:0], r.grants[i:]...)
	}
}
