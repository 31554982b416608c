package infra

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func testBreaker(clock Clock, failures, successes int) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: failures,
		SuccessThreshold: successes,
		Cooldown:         30 * time.Second,
	}, clock)
}

func TestCircuitBreaker_AllowInClosed(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"), nil)

	if !cb.Allow() {
		t.Error("Expected Allow() to return true in CLOSED state")
	}

	if cb.GetState() != StateClosed {
		t.Errorf("Expected state CLOSED, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := testBreaker(clock, 3, 2)

	cb.RecordFailure()
	cb.RecordFailure()

	if cb.GetState() != StateClosed {
		t.Error("Should still be CLOSED after 2 failures")
	}

	cb.RecordFailure() // 3rd failure

	if cb.GetState() != StateOpen {
		t.Errorf("Expected OPEN after 3 failures, got %s", cb.GetState())
	}

	// Should reject requests when open
	if cb.Allow() {
		t.Error("Expected Allow() to return false in OPEN state")
	}
	if got := cb.RetryAfter(); got != 30*time.Second {
		t.Errorf("Expected RetryAfter 30s, got %s", got)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := testBreaker(clockwork.NewFakeClock(), 2, 1)

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()

	if cb.GetState() != StateClosed {
		t.Errorf("Non-consecutive failures must not open the breaker, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenAfterCooldown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := testBreaker(clock, 2, 1)

	cb.RecordFailure()
	cb.RecordFailure()

	clock.Advance(29 * time.Second)
	if cb.Allow() {
		t.Fatal("Expected refusal before cooldown")
	}

	clock.Advance(time.Second)
	if !cb.Allow() {
		t.Error("Expected Allow() to return true after cooldown (half-open)")
	}

	if cb.GetState() != StateHalfOpen {
		t.Errorf("Expected HALF_OPEN, got %s", cb.GetState())
	}

	// A failed probe re-opens with a fresh cooldown
	cb.RecordFailure()
	if cb.GetState() != StateOpen || cb.Allow() {
		t.Error("Expected OPEN after failed half-open probe")
	}
}

func TestCircuitBreaker_ClosesOnSuccess(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := testBreaker(clock, 2, 2)

	cb.RecordFailure()
	cb.RecordFailure()

	clock.Advance(31 * time.Second)
	cb.Allow()

	cb.RecordSuccess()
	if cb.GetState() != StateHalfOpen {
		t.Error("Should still be HALF_OPEN after 1 success")
	}

	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED after 2 successes, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"), clockwork.NewFakeClock())

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}

	if cb.GetState() != StateOpen {
		t.Fatal("Expected OPEN state")
	}

	cb.Reset()

	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED after Reset, got %s", cb.GetState())
	}

	if !cb.Allow() {
		t.Error("Expected Allow() to return true after Reset")
	}
}
