package ai

import (
	"errors"
	"iter"
	"testing"
)

// makeStream is a test helper that builds a ChatStream from a hand-crafted event
// slice. If midErr is non-nil the error is yielded in place of the event at
// errAtIndex.
func makeStream(events []StreamEvent, midErr error, errAtIndex int) *ChatStream {
	iteratorFunc := func(yield func(StreamEvent, error) bool) {
		for i, event := range events {
			if midErr != nil && i == errAtIndex {
				yield(StreamEvent{}, midErr)
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	}
	return NewChatStream(iter.Seq2[StreamEvent, error](iteratorFunc))
}

func collectEvents(stream *ChatStream) []StreamEvent {
	var events []StreamEvent
	for event := range stream.Iter() {
		events = append(events, event)
	}
	return events
}

// TestChatStream_DeltasThenDone verifies the normal path: content events pass
// through in order and exactly one done event closes the stream.
func TestChatStream_DeltasThenDone(t *testing.T) {
	stream := makeStream([]StreamEvent{
		{Type: StreamEventContent, Content: "Hel"},
		{Type: StreamEventContent, Content: "lo"},
		{Type: StreamEventDone, Usage: &Usage{PromptTokens: 3, CompletionTokens: 2}},
	}, nil, -1)

	events := collectEvents(stream)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	if events[0].Content != "Hel" || events[1].Content != "lo" {
		t.Errorf("unexpected deltas: %q %q", events[0].Content, events[1].Content)
	}
	done := events[2]
	if done.Type != StreamEventDone {
		t.Fatalf("expected done event last, got %q", done.Type)
	}
	if done.Usage.TotalTokens != 5 {
		t.Errorf("expected derived total 5, got %d", done.Usage.TotalTokens)
	}
}

// TestChatStream_NothingAfterTerminal verifies that events emitted by a
// misbehaving source after the terminal event are never forwarded.
func TestChatStream_NothingAfterTerminal(t *testing.T) {
	stream := makeStream([]StreamEvent{
		{Type: StreamEventContent, Content: "a"},
		{Type: StreamEventDone},
		{Type: StreamEventContent, Content: "late"},
		{Type: StreamEventError, Error: "late error"},
	}, nil, -1)

	events := collectEvents(stream)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	if events[1].Type != StreamEventDone {
		t.Errorf("expected done as the last event, got %q", events[1].Type)
	}
}

// TestChatStream_IteratorErrorBecomesTerminal verifies that a mid-stream error
// is delivered as a terminal error event after the deltas already sent.
func TestChatStream_IteratorErrorBecomesTerminal(t *testing.T) {
	stream := makeStream([]StreamEvent{
		{Type: StreamEventContent, Content: "partial"},
		{Type: StreamEventContent, Content: "never"},
	}, errors.New("connection reset"), 1)

	events := collectEvents(stream)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Content != "partial" {
		t.Errorf("expected partial delta preserved, got %q", events[0].Content)
	}
	if events[1].Type != StreamEventError || events[1].Error != "connection reset" {
		t.Errorf("unexpected terminal event: %+v", events[1])
	}
}

// TestChatStream_UsageSnapshotsLastWins verifies that usage events are absorbed
// and the done event carries the latest snapshot without double counting.
func TestChatStream_UsageSnapshotsLastWins(t *testing.T) {
	stream := makeStream([]StreamEvent{
		{Type: StreamEventContent, Content: "x"},
		{Type: StreamEventUsage, Usage: &Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}},
		{Type: StreamEventUsage, Usage: &Usage{PromptTokens: 4, CompletionTokens: 6, TotalTokens: 10}},
		{Type: StreamEventDone, FinishReason: "stop"},
	}, nil, -1)

	events := collectEvents(stream)
	if len(events) != 2 {
		t.Fatalf("expected content and done only, got %+v", events)
	}
	last := events[1]
	if last.Type != StreamEventDone {
		t.Fatalf("expected done, got %q", last.Type)
	}
	if last.Usage.TotalTokens != 10 {
		t.Errorf("expected latest usage (10) without double counting, got %d", last.Usage.TotalTokens)
	}
}

// TestChatStream_SourceEndingWithoutTerminal verifies that a source that just
// stops, as after a dropped connection, ends with an error event rather than
// passing the partial reply off as complete.
func TestChatStream_SourceEndingWithoutTerminal(t *testing.T) {
	stream := makeStream([]StreamEvent{
		{Type: StreamEventContent, Content: "Hel"},
		{Type: StreamEventUsage, Usage: &Usage{PromptTokens: 4}},
	}, nil, -1)

	events := collectEvents(stream)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %+v", events)
	}
	last := events[1]
	if last.Type != StreamEventError || last.Error != ErrIncompleteStream.Error() {
		t.Errorf("expected incomplete stream error, got %+v", last)
	}

	response, err := makeStream([]StreamEvent{{Type: StreamEventContent, Content: "Hel"}}, nil, -1).Collect()
	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("expected StreamError from Collect, got %v", err)
	}
	if response.Content != "Hel" {
		t.Errorf("expected partial content, got %q", response.Content)
	}
}

// TestChatStream_BreakStopsSource verifies that abandoning the loop stops the
// source from producing further events.
func TestChatStream_BreakStopsSource(t *testing.T) {
	produced := 0
	stream := NewChatStream(func(yield func(StreamEvent, error) bool) {
		for i := 0; i < 10; i++ {
			produced++
			if !yield(StreamEvent{Type: StreamEventContent, Content: "tick"}, nil) {
				return
			}
		}
	})

	for range stream.Iter() {
		break
	}

	if produced != 1 {
		t.Errorf("expected the source to stop after 1 event, produced %d", produced)
	}
}

// TestChatStream_CollectMatchesSingleEvent verifies content equivalence between
// a streamed response and its non-streaming counterpart.
func TestChatStream_CollectMatchesSingleEvent(t *testing.T) {
	response := &ChatResponse{Content: "Hello world", Model: "m", Usage: Usage{PromptTokens: 2, CompletionTokens: 3}}

	collected, err := NewSingleEventStream(response).Collect()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if collected.Content != response.Content {
		t.Errorf("content mismatch: %q vs %q", collected.Content, response.Content)
	}
	if collected.Model != "m" {
		t.Errorf("expected model m, got %q", collected.Model)
	}
	if collected.Usage.TotalTokens != 5 {
		t.Errorf("expected total 5, got %d", collected.Usage.TotalTokens)
	}
}

// TestChatStream_CollectReturnsStreamError verifies Collect surfaces a
// *StreamError with the partial content.
func TestChatStream_CollectReturnsStreamError(t *testing.T) {
	stream := makeStream([]StreamEvent{
		{Type: StreamEventContent, Content: "half"},
		{Type: StreamEventError, Error: "overloaded"},
	}, nil, -1).WithBackend("anthropic")

	response, err := stream.Collect()
	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("expected *StreamError, got %T: %v", err, err)
	}
	if streamErr.Backend != "anthropic" || streamErr.Message != "overloaded" {
		t.Errorf("unexpected stream error: %+v", streamErr)
	}
	if response.Content != "half" {
		t.Errorf("expected partial content, got %q", response.Content)
	}
}
