package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/leofalp/chatgate/core/gateway"
	"github.com/leofalp/chatgate/providers/ai"
)

// RetryConfig tunes the retry middleware. Zero values are replaced with the
// defaults noted on each field.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first failure. Default: 3.
	MaxRetries int

	// InitialBackoff is the wait before the first retry. Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed backoff. Default: 30s.
	MaxBackoff time.Duration

	// BackoffFactor is the exponential growth multiplier. Default: 2.0.
	BackoffFactor float64

	// JitterFraction adds up to JitterFraction * backoff of random noise.
	// Default: 0.1.
	JitterFraction float64

	// RetryableFunc decides whether err is worth another attempt. The default
	// retries *ai.ProviderError values whose Retryable method reports true.
	RetryableFunc func(error) bool
}

// IsRetryable reports whether err is a transient provider failure (HTTP 429
// or 5xx). Validation errors and other provider failures are not.
func IsRetryable(err error) bool {
	var providerErr *ai.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable()
	}
	return false
}

func applyRetryDefaults(config *RetryConfig) {
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = 2.0
	}
	if config.JitterFraction == 0 {
		config.JitterFraction = 0.1
	}
	if config.RetryableFunc == nil {
		config.RetryableFunc = IsRetryable
	}
}

// computeBackoff returns min(InitialBackoff * BackoffFactor^attempt, MaxBackoff) plus jitter.
func computeBackoff(config RetryConfig, attempt int) time.Duration {
	base := float64(config.InitialBackoff) * math.Pow(config.BackoffFactor, float64(attempt))
	if base > float64(config.MaxBackoff) {
		base = float64(config.MaxBackoff)
	}

	jitter := base * config.JitterFraction * rand.Float64() //nolint:gosec // non-cryptographic jitter
	return time.Duration(base + jitter)
}

// NewRetryMiddleware retries failed send requests according to config.
// Streaming calls bypass it: a stream that already delivered deltas cannot be
// replayed transparently.
func NewRetryMiddleware(config RetryConfig) gateway.MiddlewareConfig {
	applyRetryDefaults(&config)

	send := gateway.Middleware(func(next gateway.SendFunc) gateway.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			var lastErr error

			for attempt := 0; attempt <= config.MaxRetries; attempt++ {
				if attempt > 0 {
					timer := time.NewTimer(computeBackoff(config, attempt-1))
					select {
					case <-ctx.Done():
						timer.Stop()
						return nil, ctx.Err()
					case <-timer.C:
					}
				}

				response, err := next(ctx, request)
				if err == nil {
					return response, nil
				}

				lastErr = err
				if !config.RetryableFunc(err) {
					return nil, err
				}
			}

			return nil, fmt.Errorf("%w after %d retries: %w", ErrRetryExhausted, config.MaxRetries, lastErr)
		}
	})

	return gateway.MiddlewareConfig{Send: send}
}
