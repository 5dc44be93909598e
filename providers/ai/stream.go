package ai

import (
	"errors"
	"iter"
	"strings"
)

// StreamEventType identifies the kind of payload carried by a StreamEvent.
type StreamEventType string

const (
	// StreamEventContent carries a text delta.
	StreamEventContent StreamEventType = "content"
	// StreamEventUsage carries a usage snapshot. Adapters may emit it any number
	// of times; ChatStream keeps the latest value and attaches it to the
	// terminal done event instead of forwarding it.
	StreamEventUsage StreamEventType = "usage"
	// StreamEventDone is the successful terminal event. It always carries usage.
	StreamEventDone StreamEventType = "done"
	// StreamEventError is the failed terminal event.
	StreamEventError StreamEventType = "error"
)

// StreamEvent is a single element of a normalized stream: zero or more content
// events followed by exactly one done or error event.
type StreamEvent struct {
	Type         StreamEventType `json:"type"`
	Content      string          `json:"content,omitempty"`       // Text delta (Type == StreamEventContent)
	Usage        *Usage          `json:"usage,omitempty"`         // Token usage (Type == StreamEventDone)
	Model        string          `json:"model,omitempty"`         // Model reported by the vendor, when known
	FinishReason string          `json:"finish_reason,omitempty"` // Present on StreamEventDone
	Error        string          `json:"error,omitempty"`         // Error message (Type == StreamEventError)
}

// IsTerminal reports whether the event ends a stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == StreamEventDone || e.Type == StreamEventError
}

// ChatStream wraps an adapter's raw event iterator and enforces the terminal
// event discipline on everything it forwards:
//
//   - content events pass through in arrival order (empty deltas are dropped);
//   - usage events are absorbed, the last one wins;
//   - the first done or error event ends the stream, nothing follows it;
//   - an iterator error becomes a terminal error event;
//   - a source that ends without a terminal event is closed with an error
//     event (ErrIncompleteStream), since the reply may be cut short.
//
// A ChatStream is single-use. The underlying adapter usually holds an open
// HTTP body that is released when iteration finishes or the caller breaks out
// of the range loop, so a stream that is never iterated leaks it.
type ChatStream struct {
	source  iter.Seq2[StreamEvent, error]
	backend string
}

// NewChatStream creates a ChatStream from a raw adapter iterator. The iterator
// yields events with a nil error for normal deltas and a non-nil error to
// signal a mid-stream failure.
func NewChatStream(source iter.Seq2[StreamEvent, error]) *ChatStream {
	return &ChatStream{source: source}
}

// NewSingleEventStream wraps a completed ChatResponse as a stream with one
// content event and a done event. It is the fallback for providers without
// native streaming.
func NewSingleEventStream(response *ChatResponse) *ChatStream {
	return NewChatStream(func(yield func(StreamEvent, error) bool) {
		if !yield(StreamEvent{Type: StreamEventContent, Content: response.Content}, nil) {
			return
		}
		usage := response.Usage
		yield(StreamEvent{
			Type:         StreamEventDone,
			Usage:        &usage,
			Model:        response.Model,
			FinishReason: response.FinishReason,
		}, nil)
	})
}

// WithBackend records the backend name used to label stream errors.
func (stream *ChatStream) WithBackend(backend string) *ChatStream {
	stream.backend = backend
	return stream
}

// Iter returns the normalized event sequence for range-over-func loops.
//
//	for event := range stream.Iter() {
//	    switch event.Type {
//	    case ai.StreamEventContent:
//	        fmt.Print(event.Content)
//	    case ai.StreamEventError:
//	        log.Println(event.Error)
//	    }
//	}
func (stream *ChatStream) Iter() iter.Seq[StreamEvent] {
	return func(yield func(StreamEvent) bool) {
		var lastUsage Usage
		var lastModel string

		for event, err := range stream.source {
			if err != nil {
				yield(StreamEvent{Type: StreamEventError, Error: errorMessage(err)})
				return
			}

			if event.Model != "" {
				lastModel = event.Model
			}

			switch event.Type {
			case StreamEventContent:
				if event.Content == "" {
					continue
				}
				if !yield(StreamEvent{Type: StreamEventContent, Content: event.Content}) {
					return
				}

			case StreamEventUsage:
				if event.Usage != nil {
					lastUsage = *event.Usage
				}

			case StreamEventDone:
				if event.Usage != nil {
					lastUsage = *event.Usage
				}
				usage := lastUsage.Normalize()
				yield(StreamEvent{
					Type:         StreamEventDone,
					Usage:        &usage,
					Model:        lastModel,
					FinishReason: event.FinishReason,
				})
				return

			case StreamEventError:
				message := event.Error
				if message == "" {
					message = "unknown stream error"
				}
				yield(StreamEvent{Type: StreamEventError, Error: message})
				return
			}
		}

		yield(StreamEvent{Type: StreamEventError, Error: ErrIncompleteStream.Error()})
	}
}

// Collect consumes the stream and returns the accumulated response. On a
// terminal error event it returns the partial content gathered so far together
// with a *StreamError.
func (stream *ChatStream) Collect() (*ChatResponse, error) {
	var content strings.Builder
	response := &ChatResponse{}

	for event := range stream.Iter() {
		switch event.Type {
		case StreamEventContent:
			content.WriteString(event.Content)
		case StreamEventDone:
			response.Usage = *event.Usage
			response.Model = event.Model
			response.FinishReason = event.FinishReason
		case StreamEventError:
			response.Content = content.String()
			return response, &StreamError{Backend: stream.backend, Message: event.Error}
		}
	}

	response.Content = content.String()
	return response, nil
}

// errorMessage flattens err for a terminal event, unwrapping StreamError so
// the backend label is not repeated.
func errorMessage(err error) string {
	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return streamErr.Message
	}
	return err.Error()
}
