package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by storage backends when a conversation does not
// exist. The conversation store never surfaces it to callers: unknown ids read
// as empty conversations and delete as no-ops.
var ErrNotFound = errors.New("conversation not found")

// ErrIncompleteStream reports a vendor stream that ended before its terminal
// event, usually because the connection dropped. The partial reply must not be
// treated as a complete answer.
var ErrIncompleteStream = errors.New("stream ended before completion")

// ValidationError reports malformed caller input. It is raised before any
// adapter or store is touched and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ProviderError reports a failed vendor call: authentication, rate limiting,
// transport failure, or a response that could not be decoded. StatusCode is the
// HTTP status when the vendor answered, zero otherwise.
type ProviderError struct {
	Backend    string
	StatusCode int
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Backend, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Backend, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the failure is transient (rate limit or server
// side). Adapters never retry; callers may use this to build a retry policy.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// NewProviderError wraps cause for backend. A cause that already is a
// ProviderError is returned unchanged so wrapping stays idempotent.
func NewProviderError(backend string, statusCode int, cause error) error {
	var existing *ProviderError
	if errors.As(cause, &existing) {
		return existing
	}
	return &ProviderError{Backend: backend, StatusCode: statusCode, Cause: cause}
}

// StreamError is a mid-stream vendor failure. It is delivered to streaming
// callers as a terminal StreamEventError rather than a returned error; Collect
// returns it so non-streaming consumers can still match it.
type StreamError struct {
	Backend string
	Message string
}

func (e *StreamError) Error() string {
	if e.Backend == "" {
		return "stream error: " + e.Message
	}
	return fmt.Sprintf("%s stream error: %s", e.Backend, e.Message)
}

// StoreError reports a persistence failure in the conversation store.
type StoreError struct {
	Op             string
	ConversationID string
	Cause          error
}

func (e *StoreError) Error() string {
	if e.ConversationID == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.ConversationID, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}
