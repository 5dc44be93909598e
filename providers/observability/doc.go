// Package observability defines the interfaces and semantic conventions used
// for tracing, metrics, and structured logging across the gateway.
//
// The central entry point is [Provider], which composes [Tracer], [Metrics],
// and [Logger] into a single injectable dependency. The gateway propagates the
// active [Provider] and [Span] through a [context.Context] using
// [ContextWithObserver] and [ContextWithSpan]; adapters and the conversation
// store retrieve them with [ObserverFromContext] and [SpanFromContext].
package observability
