package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFromStatus(t *testing.T) {
	tests := []struct {
		status    int
		kind      ErrorKind
		retryable bool
	}{
		{429, KindRateLimited, true},
		{404, KindNotFound, false},
		{500, KindServerUnavailable, true},
		{503, KindServerUnavailable, true},
		{400, KindAPI, false},
		{401, KindAPI, false},
		{302, KindAPI, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := ErrorFromStatus("/ping", tt.status, "x")
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.status, err.Status)
			assert.Equal(t, "/ping", err.Endpoint)
			assert.Equal(t, tt.retryable, err.Retryable())
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", ErrorFromStatus("/global", 429, "Too Many Requests"))
	assert.Equal(t, KindRateLimited, KindOf(wrapped))
	assert.Equal(t, KindCancelled, KindOf(context.Canceled))
	assert.Equal(t, KindNetwork, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindAPI, KindOf(errors.New("boom")))

	assert.True(t, IsCancelled(NewCancelledError("/search", context.Canceled)))
	assert.False(t, IsCancelled(nil))
	assert.False(t, IsRetryable(NewValidationError("/search", "too short")))
	assert.True(t, IsRetryable(NewNetworkError("/ping", errors.New("refused"))))
	assert.False(t, IsRetryable(NewDecodeError("/ping", 200, errors.New("unexpected EOF"))))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, MsgRateLimit, UserMessage(ErrorFromStatus("/x", 429, "")))
	assert.Equal(t, MsgNotFound, UserMessage(ErrorFromStatus("/x", 404, "")))
	assert.Equal(t, MsgServer, UserMessage(ErrorFromStatus("/x", 502, "")))
	assert.Equal(t, MsgNetwork, UserMessage(NewNetworkError("/x", errors.New("dial"))))
	assert.Equal(t, "too short", UserMessage(NewValidationError("/x", "too short")))
	assert.Equal(t, "API request failed: Forbidden", UserMessage(ErrorFromStatus("/x", 403, "Forbidden")))
	assert.Equal(t, MsgGeneric, UserMessage(errors.New("panic-ish")))
}
