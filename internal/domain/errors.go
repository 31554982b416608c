package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies every failure the data layer can surface.
type ErrorKind int

const (
	KindAPI               ErrorKind = iota // Non-2xx that fits no other kind
	KindNetwork                            // Connectivity or timeout
	KindRateLimited                        // HTTP 429
	KindNotFound                           // HTTP 404
	KindServerUnavailable                  // HTTP 5xx
	KindValidation                         // Malformed input, rejected before any request
	KindCancelled                          // Caller or teardown aborted the operation
)

func (k ErrorKind) String() string {
	switch k {
	case KindAPI:
		return "API_ERROR"
	case KindNetwork:
		return "NETWORK_ERROR"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindNotFound:
		return "NOT_FOUND"
	case KindServerUnavailable:
		return "SERVER_UNAVAILABLE"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// User-facing messages.
const (
	MsgNetwork     = "Network error. Please check your connection."
	MsgAPI         = "Unable to fetch cryptocurrency data. Please try again later."
	MsgRateLimit   = "Too many requests. Please wait a moment and try again."
	MsgSearch      = "Search failed. Please try again."
	MsgNotFound    = "Cryptocurrency data not found"
	MsgServer      = "Server temporarily unavailable"
	MsgInvalidCoin = "Invalid cryptocurrency ID provided."
	MsgGeneric     = "Something went wrong. Please try again."
	MsgCancelled   = "Request was cancelled"
)

// APIError is the single error type returned by the data layer.
type APIError struct {
	Kind     ErrorKind
	Status   int    // HTTP status, 0 when no response was received
	Endpoint string // Request path without host
	Message  string
	Cause    error
	At       time.Time
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s (%d): %s", e.Kind, e.Endpoint, e.Status, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Kind, e.Endpoint, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Endpoint, e.Message)
}

func (e *APIError) Unwrap() error { return e.Cause }

// Retryable reports whether another attempt could succeed.
// Any 4xx other than 429 is permanent, as are validation and cancellation.
// Other responses are retried only when no status was received or on 5xx.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindServerUnavailable, KindNetwork:
		return true
	case KindNotFound, KindValidation, KindCancelled:
		return false
	}
	return e.Status == 0 || e.Status >= 500
}

// NewDecodeError reports a 2xx body that does not match the expected shape.
func NewDecodeError(endpoint string, status int, cause error) *APIError {
	return &APIError{
		Kind:     KindAPI,
		Status:   status,
		Endpoint: endpoint,
		Message:  "invalid response payload",
		Cause:    cause,
		At:       time.Now(),
	}
}

// NewValidationError builds a KindValidation error for the given endpoint.
func NewValidationError(endpoint, msg string) *APIError {
	return &APIError{
		Kind:     KindValidation,
		Status:   http.StatusBadRequest,
		Endpoint: endpoint,
		Message:  msg,
		At:       time.Now(),
	}
}

// NewCancelledError wraps a context error.
func NewCancelledError(endpoint string, cause error) *APIError {
	return &APIError{
		Kind:     KindCancelled,
		Endpoint: endpoint,
		Message:  MsgCancelled,
		Cause:    cause,
		At:       time.Now(),
	}
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(endpoint string, cause error) *APIError {
	return &APIError{
		Kind:     KindNetwork,
		Endpoint: endpoint,
		Message:  MsgNetwork,
		Cause:    cause,
		At:       time.Now(),
	}
}

// ErrorFromStatus classifies a non-2xx response.
func ErrorFromStatus(endpoint string, status int, statusText string) *APIError {
	e := &APIError{Status: status, Endpoint: endpoint, At: time.Now()}
	switch {
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.Message = MsgRateLimit
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
		e.Message = "Resource not found: " + endpoint
	case status >= 500:
		e.Kind = KindServerUnavailable
		e.Message = "Server error. Please try again later."
	default:
		e.Kind = KindAPI
		e.Message = "API request failed: " + statusText
	}
	return e
}

// KindOf extracts the kind of err. Bare context errors count as cancellation,
// anything else unknown counts as KindAPI.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindAPI
}

// IsCancelled reports whether err should be swallowed silently.
func IsCancelled(err error) bool {
	return err != nil && KindOf(err) == KindCancelled
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return !errors.Is(err, context.Canceled)
}

// UserMessage maps err to the text shown in the view state.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) {
			return MsgCancelled
		}
		return MsgGeneric
	}
	switch apiErr.Kind {
	case KindRateLimited:
		return MsgRateLimit
	case KindNotFound:
		return MsgNotFound
	case KindServerUnavailable:
		return MsgServer
	case KindNetwork:
		return MsgNetwork
	case KindCancelled:
		return MsgCancelled
	case KindValidation:
		return apiErr.Message
	default:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return MsgAPI
	}
}
