// Package middleware provides caller-side policies for the gateway. Each
// constructor returns a [gateway.MiddlewareConfig] ready for
// [gateway.WithMiddleware]; adapters themselves never retry or time out.
//
//   - [NewTimeoutMiddleware]: a per-request deadline covering the whole stream.
//   - [NewRetryMiddleware]: exponential backoff with jitter for transient
//     provider failures (HTTP 429 and 5xx). Synchronous calls only.
//   - [NewLoggingMiddleware]: slog entries before and after every call.
//
// Usage:
//
//	gw, err := gateway.New(store,
//	    gateway.WithProvider("openai", openai.New()),
//	    gateway.WithMiddleware(
//	        middleware.NewTimeoutMiddleware(30*time.Second),
//	        middleware.NewRetryMiddleware(middleware.RetryConfig{MaxRetries: 2}),
//	        middleware.NewLoggingMiddleware(slog.Default(), middleware.LogLevelStandard),
//	    ),
//	)
//
// A request travels Timeout → Retry → Logging → Provider, and the response
// travels back in reverse.
package middleware
