package observability

import (
	"context"
	"time"
)

// Provider bundles tracing, metrics and logging. The gateway installs one in
// the request context; adapters and the conversation store look it up there
// and stay silent when none is installed.
type Provider interface {
	Tracer
	Metrics
	Logger
}

// --- TRACING ---

// Tracer opens one span per gateway operation (respond, stream, compare).
type Tracer interface {
	// StartSpan starts a new span and returns a context carrying it.
	StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Span covers one gateway operation. Adapters add HTTP and token events to it,
// the store adds append/delete/import events.
type Span interface {
	End()
	SetAttributes(attrs ...Attribute)
	SetStatus(code StatusCode, description string)
	RecordError(err error)
	AddEvent(name string, attrs ...Attribute)
}

// StatusCode is the outcome recorded on a span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// --- METRICS ---

// Metrics hands out the gateway's request, duration and token instruments.
type Metrics interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// Counter only grows, e.g. requests served or tokens consumed.
type Counter interface {
	Add(ctx context.Context, value int64, attrs ...Attribute)
}

// Histogram records a distribution, e.g. provider latency in milliseconds.
type Histogram interface {
	Record(ctx context.Context, value float64, attrs ...Attribute)
}

// --- LOGGING ---

// Logger writes structured records. Trace is below debug and carries request
// previews.
type Logger interface {
	Trace(ctx context.Context, msg string, attrs ...Attribute)
	Debug(ctx context.Context, msg string, attrs ...Attribute)
	Info(ctx context.Context, msg string, attrs ...Attribute)
	Warn(ctx context.Context, msg string, attrs ...Attribute)
	Error(ctx context.Context, msg string, attrs ...Attribute)
}

// --- ATTRIBUTES ---

// Attribute is a key-value pair attached to spans, metrics and log records.
// Keys come from semconv.go.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value}
}

// Error records err under AttrError; nil becomes an empty string.
func Error(err error) Attribute {
	if err == nil {
		return Attribute{Key: AttrError, Value: ""}
	}
	return Attribute{Key: AttrError, Value: err.Error()}
}

// --- DOMAIN ATTRIBUTES ---

// LLMCall describes an adapter call: the backend, the model, and whether the
// reply is streamed.
func LLMCall(provider, model string, streaming bool) []Attribute {
	return []Attribute{
		String(AttrLLMProvider, provider),
		String(AttrLLMModel, model),
		Bool(AttrLLMStreaming, streaming),
	}
}

// TokenCounts reports the usage of one generation.
func TokenCounts(prompt, completion, total int) []Attribute {
	return []Attribute{
		Int(AttrLLMTokensPrompt, prompt),
		Int(AttrLLMTokensCompletion, completion),
		Int(AttrLLMTokensTotal, total),
	}
}

// ConversationID tags work on a stored conversation.
func ConversationID(id string) Attribute {
	return String(AttrConversationID, id)
}

// AddConversationEvent records a store event for conversation id on the span
// carried by ctx. Without a span it does nothing.
func AddConversationEvent(ctx context.Context, event, id string, attrs ...Attribute) {
	span := SpanFromContext(ctx)
	if span == nil {
		return
	}
	span.AddEvent(event, append([]Attribute{ConversationID(id)}, attrs...)...)
}
