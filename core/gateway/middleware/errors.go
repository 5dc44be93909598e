package middleware

import "errors"

// ErrRetryExhausted is returned by the retry middleware when every attempt
// failed with a retryable error. It wraps the last provider error, so both
// errors.Is(err, ErrRetryExhausted) and errors.As(err, &providerErr) work.
var ErrRetryExhausted = errors.New("chatgate: all retry attempts exhausted")
