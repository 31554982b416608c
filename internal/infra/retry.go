package infra

import (
	"context"
	"log/slog"

	"github.com/Gabrielc476/dashboard-crypto/internal/domain"
)

const DefaultMaxAttempts = 3

// Retrier re-runs an operation on transient failures.
// Permanent failures (4xx other than 429, validation, cancellation) return at once.
type Retrier struct {
	MaxAttempts int
	Backoff     Backoff
	Clock       Clock
}

// NewRetrier creates a retrier with the REST defaults (3 attempts, 1s..10s).
func NewRetrier(clock Clock) *Retrier {
	return &Retrier{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     DefaultRequestBackoff,
		Clock:       orRealClock(clock),
	}
}

// Do runs op until it succeeds, fails permanently or attempts run out.
// The last error is returned unchanged.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	clock := orRealClock(r.Clock)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !domain.IsRetryable(lastErr) || attempt == maxAttempts {
			return lastErr
		}

		delay := r.Backoff.Delay(attempt)
		slog.Info("Request failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		select {
		case <-ctx.Done():
			return domain.NewCancelledError("", ctx.Err())
		case <-clock.After(delay):
		}
	}
	return lastErr
}
