package gateway

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/memory"
	"github.com/leofalp/chatgate/providers/memory/inmemory"
	"github.com/leofalp/chatgate/providers/observability/slogobs"
)

// ========== Mock providers ==========

// mockProvider answers with a fixed reply and records every request.
type mockProvider struct {
	name  string
	reply string
	err   error

	mu       sync.Mutex
	requests []ai.ChatRequest
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) SendMessage(_ context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, request)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	model := request.Model
	if model == "" {
		model = m.name + "-default"
	}
	return &ai.ChatResponse{
		Content:      m.reply,
		Model:        model,
		FinishReason: "stop",
		Usage:        ai.Usage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6},
	}, nil
}

func (m *mockProvider) WithAPIKey(string) ai.Provider           { return m }
func (m *mockProvider) WithBaseURL(string) ai.Provider          { return m }
func (m *mockProvider) WithHttpClient(*http.Client) ai.Provider { return m }

func (m *mockProvider) calls() []ai.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.ChatRequest(nil), m.requests...)
}

// mockStreamProvider streams events and can fail mid-stream.
type mockStreamProvider struct {
	mockProvider
	deltas    []string
	streamErr error
	truncated bool // stop after the deltas without a terminal event
}

func (m *mockStreamProvider) StreamMessage(_ context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	m.mu.Lock()
	m.requests = append(m.requests, request)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		for _, delta := range m.deltas {
			if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: delta}, nil) {
				return
			}
		}
		if m.streamErr != nil {
			yield(ai.StreamEvent{}, m.streamErr)
			return
		}
		if m.truncated {
			return
		}
		yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: &ai.Usage{PromptTokens: 3, CompletionTokens: 2}}, nil)
		yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: "stop", Model: "streamed-model"}, nil)
	}), nil
}

// failingBackend fails every index write once enabled.
type failingBackend struct {
	*inmemory.Backend
	failPut bool
}

func (b *failingBackend) PutMetadata(ctx context.Context, metadata memory.Metadata) error {
	if b.failPut {
		return errors.New("disk full")
	}
	return b.Backend.PutMetadata(ctx, metadata)
}

func newTestGateway(t *testing.T, opts ...Option) (*Gateway, *memory.Store) {
	t.Helper()
	store := memory.New(inmemory.New())
	ids := 0
	base := []Option{
		WithIDGenerator(func() string {
			ids++
			return "conv-" + string(rune('0'+ids))
		}),
	}
	gw, err := New(store, append(base, opts...)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return gw, store
}

// ========== New ==========

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Errorf("expected error for nil store")
	}

	store := memory.New(inmemory.New())
	if _, err := New(store, WithMiddleware(MiddlewareConfig{})); err == nil || !strings.Contains(err.Error(), "nil Send") {
		t.Errorf("expected nil Send error, got %v", err)
	}

	gw, err := New(store, WithProvider("b", &mockProvider{name: "b"}), WithProvider("a", &mockProvider{name: "a"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if names := gw.Providers(); strings.Join(names, ",") != "a,b" {
		t.Errorf("unexpected providers %v", names)
	}
}

// ========== Respond ==========

// TestRespond_PersistsBothTurns verifies a new conversation is created and the
// second call sends the stored history.
func TestRespond_PersistsBothTurns(t *testing.T) {
	provider := &mockProvider{name: "openai", reply: "Hi!"}
	gw, _ := newTestGateway(t, WithProvider("openai", provider))
	ctx := context.Background()

	output, err := gw.Respond(ctx, ChatInput{Message: "Hello there, friend", Provider: "openai"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.ConversationID != "conv-1" || output.Response != "Hi!" || output.Usage.TotalTokens != 6 {
		t.Errorf("unexpected output %+v", output)
	}
	if output.Model != "openai-default" {
		t.Errorf("expected model reported by the provider, got %q", output.Model)
	}

	conversation, err := gw.Conversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conversation.Messages) != 2 || conversation.Messages[0].Role != ai.RoleUser || conversation.Messages[1].Content != "Hi!" {
		t.Fatalf("unexpected stored messages %+v", conversation.Messages)
	}
	if conversation.Metadata.Title != "Hello there friend" || conversation.Metadata.MessageCount != 2 || conversation.Metadata.LastMessage.Content != "Hi!" || conversation.Metadata.LastMessage.Role != ai.RoleAssistant {
		t.Errorf("unexpected metadata %+v", conversation.Metadata)
	}

	if _, err := gw.Respond(ctx, ChatInput{Message: "And again", Provider: "openai", ConversationID: "conv-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := provider.calls()
	if len(calls[1].Messages) != 3 || calls[1].Messages[2].Content != "And again" {
		t.Errorf("expected history plus the new turn, got %+v", calls[1].Messages)
	}
}

func TestRespond_WithoutHistory(t *testing.T) {
	provider := &mockProvider{name: "openai", reply: "ok"}
	gw, _ := newTestGateway(t, WithProvider("openai", provider))
	ctx := context.Background()

	_, _ = gw.Respond(ctx, ChatInput{Message: "first", Provider: "openai", ConversationID: "c1"})
	noHistory := false
	_, _ = gw.Respond(ctx, ChatInput{Message: "second", Provider: "openai", ConversationID: "c1", IncludeHistory: &noHistory})

	calls := provider.calls()
	if len(calls[1].Messages) != 1 {
		t.Errorf("expected only the new turn, got %d messages", len(calls[1].Messages))
	}
}

// TestRespond_ProviderFailurePersistsNothing verifies a failed generation
// leaves the store untouched.
func TestRespond_ProviderFailurePersistsNothing(t *testing.T) {
	cause := &ai.ProviderError{Backend: "openai", StatusCode: http.StatusUnauthorized, Cause: errors.New("bad key")}
	gw, store := newTestGateway(t, WithProvider("openai", &mockProvider{name: "openai", err: cause}))
	ctx := context.Background()

	output, err := gw.Respond(ctx, ChatInput{Message: "hi", Provider: "openai", ConversationID: "c1"})
	var providerErr *ai.ProviderError
	if output != nil || !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError and no output, got %+v (%v)", output, err)
	}

	stats, _ := store.Stats(ctx)
	if stats.TotalConversations != 0 {
		t.Errorf("expected nothing stored, got %+v", stats)
	}
}

// TestRespond_StoreFailureStillReturnsOutput verifies the generated reply is
// returned together with the persistence error.
func TestRespond_StoreFailureStillReturnsOutput(t *testing.T) {
	backend := &failingBackend{Backend: inmemory.New(), failPut: true}
	gw, err := New(memory.New(backend), WithProvider("openai", &mockProvider{name: "openai", reply: "answer"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output, err := gw.Respond(context.Background(), ChatInput{Message: "hi", Provider: "openai", ConversationID: "c1"})
	var storeErr *ai.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if output == nil || output.Response != "answer" {
		t.Errorf("expected output alongside the error, got %+v", output)
	}
}

func TestRespond_Validation(t *testing.T) {
	provider := &mockProvider{name: "openai", reply: "ok"}
	gw, _ := newTestGateway(t, WithProvider("openai", provider))
	tooHot := 3.0

	for _, input := range []ChatInput{
		{Message: "   ", Provider: "openai"},
		{Message: "hi", Provider: ""},
		{Message: "hi", Provider: "unknown"},
		{Message: "hi", Provider: "openai", Temperature: &tooHot},
		{Message: "hi", Provider: "openai", MaxTokens: -1},
	} {
		_, err := gw.Respond(context.Background(), input)
		var validationErr *ai.ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("input %+v: expected ValidationError, got %v", input, err)
		}
	}

	if len(provider.calls()) != 0 {
		t.Errorf("expected provider never to be called")
	}
}

// ========== RespondStream ==========

func collectFrames(t *testing.T, gw *Gateway, input ChatInput) []StreamFrame {
	t.Helper()
	frames, err := gw.RespondStream(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected pre-stream error: %v", err)
	}
	var out []StreamFrame
	for frame := range frames {
		out = append(out, frame)
	}
	return out
}

// TestRespondStream_DeltasThenDone verifies framing and that persistence
// happens once the stream completes.
func TestRespondStream_DeltasThenDone(t *testing.T) {
	provider := &mockStreamProvider{mockProvider: mockProvider{name: "anthropic"}, deltas: []string{"Hel", "", "lo"}}
	gw, store := newTestGateway(t, WithProvider("anthropic", provider))

	frames := collectFrames(t, gw, ChatInput{Message: "greet me", Provider: "anthropic"})
	if len(frames) != 3 {
		t.Fatalf("expected 2 deltas and a done frame, got %+v", frames)
	}
	if frames[0].Delta+frames[1].Delta != "Hello" {
		t.Errorf("unexpected deltas %+v", frames[:2])
	}

	done := frames[2]
	if !done.Done || done.ConversationID != "conv-1" || done.Usage == nil || done.Usage.TotalTokens != 5 || done.Model != "streamed-model" {
		t.Errorf("unexpected done frame %+v", done)
	}

	messages, _ := store.Messages(context.Background(), "conv-1")
	if len(messages) != 2 || messages[1].Content != "Hello" {
		t.Errorf("expected both turns stored, got %+v", messages)
	}
}

func TestRespondStream_MidStreamErrorPersistsNothing(t *testing.T) {
	provider := &mockStreamProvider{
		mockProvider: mockProvider{name: "mistral"},
		deltas:       []string{"partial"},
		streamErr:    errors.New("connection reset"),
	}
	gw, store := newTestGateway(t, WithProvider("mistral", provider))

	frames := collectFrames(t, gw, ChatInput{Message: "hi", Provider: "mistral", ConversationID: "c1"})
	last := frames[len(frames)-1]
	if last.Error != "connection reset" || last.Done {
		t.Errorf("expected terminal error frame, got %+v", last)
	}

	if messages, _ := store.Messages(context.Background(), "c1"); len(messages) != 0 {
		t.Errorf("expected nothing stored, got %+v", messages)
	}
}

// TestRespondStream_TruncatedStreamPersistsNothing verifies that a provider
// stream ending without a terminal event is reported as an error and the
// partial reply is not stored as an assistant turn.
func TestRespondStream_TruncatedStreamPersistsNothing(t *testing.T) {
	provider := &mockStreamProvider{
		mockProvider: mockProvider{name: "anthropic"},
		deltas:       []string{"Hel"},
		truncated:    true,
	}
	gw, store := newTestGateway(t, WithProvider("anthropic", provider))

	frames := collectFrames(t, gw, ChatInput{Message: "hi", Provider: "anthropic", ConversationID: "c1"})
	if len(frames) != 2 || frames[0].Delta != "Hel" {
		t.Fatalf("expected one delta and a terminal frame, got %+v", frames)
	}
	last := frames[1]
	if last.Done || last.Error != ai.ErrIncompleteStream.Error() {
		t.Errorf("expected incomplete stream error frame, got %+v", last)
	}

	if messages, _ := store.Messages(context.Background(), "c1"); len(messages) != 0 {
		t.Errorf("expected nothing stored, got %+v", messages)
	}
	if metadata, _ := store.Metadata(context.Background(), "c1"); metadata != nil {
		t.Errorf("expected no index record, got %+v", metadata)
	}
}

func TestRespondStream_AbandonedPersistsNothing(t *testing.T) {
	provider := &mockStreamProvider{mockProvider: mockProvider{name: "gemini"}, deltas: []string{"a", "b", "c"}}
	gw, store := newTestGateway(t, WithProvider("gemini", provider))

	frames, err := gw.RespondStream(context.Background(), ChatInput{Message: "hi", Provider: "gemini", ConversationID: "c1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for range frames {
		break
	}

	if messages, _ := store.Messages(context.Background(), "c1"); len(messages) != 0 {
		t.Errorf("expected nothing stored, got %+v", messages)
	}
}

func TestRespondStream_PreStreamError(t *testing.T) {
	cause := &ai.ProviderError{Backend: "cohere", StatusCode: http.StatusTooManyRequests, Cause: errors.New("slow down")}
	provider := &mockStreamProvider{mockProvider: mockProvider{name: "cohere", err: cause}}
	gw, _ := newTestGateway(t, WithProvider("cohere", provider))

	frames, err := gw.RespondStream(context.Background(), ChatInput{Message: "hi", Provider: "cohere"})
	if frames != nil || !errors.Is(err, cause) {
		t.Errorf("expected pre-stream provider error, got %v", err)
	}
}

// TestRespondStream_FallbackForSyncProvider verifies providers without native
// streaming are served as a single delta.
func TestRespondStream_FallbackForSyncProvider(t *testing.T) {
	gw, _ := newTestGateway(t, WithProvider("sync", &mockProvider{name: "sync", reply: "whole reply"}))

	frames := collectFrames(t, gw, ChatInput{Message: "hi", Provider: "sync"})
	if len(frames) != 2 || frames[0].Delta != "whole reply" || !frames[1].Done || frames[1].Usage.TotalTokens != 6 {
		t.Errorf("unexpected frames %+v", frames)
	}
}

func TestRespondStream_StoreFailureReportedOnDone(t *testing.T) {
	backend := &failingBackend{Backend: inmemory.New(), failPut: true}
	provider := &mockStreamProvider{mockProvider: mockProvider{name: "openai"}, deltas: []string{"ok"}}
	gw, _ := New(memory.New(backend), WithProvider("openai", provider))

	frames := collectFrames(t, gw, ChatInput{Message: "hi", Provider: "openai", ConversationID: "c1"})
	last := frames[len(frames)-1]
	if !last.Done || last.StoreError == "" {
		t.Errorf("expected done frame with store error, got %+v", last)
	}
}

// ========== Compare ==========

// TestCompare_IsolatesFailures verifies one provider's failure does not affect
// another's result and that results follow the input order.
func TestCompare_IsolatesFailures(t *testing.T) {
	succeeding := &mockProvider{name: "a", reply: "from A"}
	failing := &mockProvider{name: "b", err: &ai.ProviderError{Backend: "b", StatusCode: http.StatusInternalServerError, Cause: errors.New("down")}}
	gw, store := newTestGateway(t, WithProvider("a", succeeding), WithProvider("b", failing))

	results, err := gw.Compare(context.Background(), CompareInput{
		Message:   "same prompt",
		Providers: []string{"b", "a", "b"},
		Models:    map[string]string{"a": "model-a"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected duplicates removed, got %+v", results)
	}

	if results[0].Provider != "b" || results[0].Status != StatusRejected || !strings.Contains(results[0].Error, "down") {
		t.Errorf("unexpected result for b: %+v", results[0])
	}
	if results[1].Provider != "a" || results[1].Status != StatusFulfilled || results[1].Response != "from A" || results[1].Model != "model-a" {
		t.Errorf("unexpected result for a: %+v", results[1])
	}

	if calls := succeeding.calls(); len(calls) != 1 || len(calls[0].Messages) != 1 {
		t.Errorf("expected a single history-free request, got %+v", calls)
	}
	if stats, _ := store.Stats(context.Background()); stats.TotalConversations != 0 {
		t.Errorf("compare must not persist, got %+v", stats)
	}
}

// blockingProvider waits until every peer has started before answering.
type blockingProvider struct {
	mockProvider
	started *sync.WaitGroup
}

func (b *blockingProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	b.started.Done()
	waited := make(chan struct{})
	go func() {
		b.started.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return b.mockProvider.SendMessage(ctx, request)
	case <-time.After(time.Second):
		return nil, errors.New("peers never started: branches are not concurrent")
	}
}

func TestCompare_BranchesRunConcurrently(t *testing.T) {
	started := &sync.WaitGroup{}
	started.Add(3)
	var opts []Option
	for _, name := range []string{"x", "y", "z"} {
		opts = append(opts, WithProvider(name, &blockingProvider{mockProvider: mockProvider{name: name, reply: name}, started: started}))
	}
	gw, _ := newTestGateway(t, opts...)

	results, err := gw.Compare(context.Background(), CompareInput{Message: "hi", Providers: []string{"x", "y", "z"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, result := range results {
		if result.Status != StatusFulfilled {
			t.Errorf("unexpected result %+v", result)
		}
	}
}

func TestCompare_Validation(t *testing.T) {
	gw, _ := newTestGateway(t, WithProvider("a", &mockProvider{name: "a"}))

	for _, input := range []CompareInput{
		{Message: "hi"},
		{Message: "hi", Providers: []string{"a", "missing"}},
		{Message: "", Providers: []string{"a"}},
	} {
		_, err := gw.Compare(context.Background(), input)
		var validationErr *ai.ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("input %+v: expected ValidationError, got %v", input, err)
		}
	}
}

// ========== Observability ==========

func TestRespond_WithObserver(t *testing.T) {
	var buffer bytes.Buffer
	observer := slogobs.New(slogobs.WithOutput(&buffer), slogobs.WithLevel(slog.LevelDebug))
	gw, _ := newTestGateway(t, WithObserver(observer), WithProvider("openai", &mockProvider{name: "openai", reply: "ok"}))

	if _, err := gw.Respond(context.Background(), ChatInput{Message: "hi", Provider: "openai"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buffer.String()
	for _, want := range []string{"span=gateway.respond", "llm request completed", "llm.tokens.total=6", "event=store.append"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

// ========== Conversation pass-through ==========

func TestConversationPassThrough(t *testing.T) {
	gw, _ := newTestGateway(t, WithProvider("openai", &mockProvider{name: "openai", reply: "pong"}))
	ctx := context.Background()

	_, _ = gw.Respond(ctx, ChatInput{Message: "ping", Provider: "openai", ConversationID: "c1"})

	list, err := gw.Conversations(ctx, 10, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("unexpected list %+v (%v)", list, err)
	}
	if results, _ := gw.SearchConversations(ctx, "PONG", 0); len(results) != 1 {
		t.Errorf("expected one search hit, got %+v", results)
	}

	exported, err := gw.Export(ctx, "c1", memory.ExportText)
	if err != nil || !strings.Contains(string(exported), "USER: ping") {
		t.Errorf("unexpected export %q (%v)", exported, err)
	}

	id, err := gw.Import(ctx, []byte(`[{"role":"user","content":"restored"}]`), "c2")
	if err != nil || id != "c2" {
		t.Errorf("unexpected import %q (%v)", id, err)
	}

	if err := gw.DeleteConversation(ctx, "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats, _ := gw.Stats(ctx)
	if stats.TotalConversations != 1 {
		t.Errorf("expected one conversation left, got %+v", stats)
	}

	unknown, err := gw.Conversation(ctx, "never")
	if err != nil || unknown.Metadata != nil || len(unknown.Messages) != 0 {
		t.Errorf("expected empty conversation, got %+v (%v)", unknown, err)
	}
}
