package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// =====================================================
// Infra Backoff Tests
// =====================================================

func TestBackoff_Delay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped
		{64, 10 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultRequestBackoff.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{-1, 1 * time.Second},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{10, 60 * time.Second},  // max 60s
		{100, 60 * time.Second}, // still max 60s
	}

	for _, tt := range tests {
		if delay := CalculateBackoff(tt.retryCount); delay != tt.want {
			t.Errorf("CalculateBackoff(%d) = %s, want %s", tt.retryCount, delay, tt.want)
		}
	}
}
