// Package slogobs provides an observability.Provider backed by log/slog.
// Spans, span events, and metric updates are emitted as debug-level records;
// Trace/Debug/Info/Warn/Error map onto slog levels. The main entry point is
// [New]; output format and level can be tuned with [WithFormat], [WithLevel],
// [WithOutput], and [WithLogger].
package slogobs
