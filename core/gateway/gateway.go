package gateway

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/memory"
	"github.com/leofalp/chatgate/providers/observability"
)

// route is a registered provider with its middleware chains already built.
type route struct {
	provider ai.Provider
	send     SendFunc
	stream   StreamFunc
}

// Gateway routes requests to provider adapters and records conversations.
// It is safe for concurrent use; it holds no lock around provider calls.
type Gateway struct {
	store       *memory.Store
	providers   map[string]ai.Provider
	middlewares []MiddlewareConfig
	observer    observability.Provider
	now         func() time.Time
	newID       func() string

	routes map[string]route
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithProvider registers provider under name. Registering the same name twice
// keeps the last provider.
func WithProvider(name string, provider ai.Provider) Option {
	return func(g *Gateway) {
		g.providers[name] = provider
	}
}

// WithMiddleware appends middlewares to the chain wrapped around every
// provider. The first middleware is the outermost.
func WithMiddleware(middlewares ...MiddlewareConfig) Option {
	return func(g *Gateway) {
		g.middlewares = append(g.middlewares, middlewares...)
	}
}

// WithObserver enables spans, metrics and logs. The observability middleware
// is installed as the outermost entry of every chain.
func WithObserver(observer observability.Provider) Option {
	return func(g *Gateway) {
		g.observer = observer
	}
}

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithIDGenerator replaces the UUID generator for new conversations.
func WithIDGenerator(newID func() string) Option {
	return func(g *Gateway) {
		g.newID = newID
	}
}

// New creates a Gateway persisting conversations in store.
func New(store *memory.Store, opts ...Option) (*Gateway, error) {
	if store == nil {
		return nil, errors.New("gateway: store is required")
	}

	g := &Gateway{
		store:     store,
		providers: make(map[string]ai.Provider),
		now:       time.Now,
		newID:     uuid.NewString,
		routes:    make(map[string]route),
	}
	for _, opt := range opts {
		opt(g)
	}

	for i, mw := range g.middlewares {
		if mw.Send == nil {
			return nil, fmt.Errorf("gateway: middleware at index %d has a nil Send function", i)
		}
	}

	middlewares := g.middlewares
	if g.observer != nil {
		middlewares = append([]MiddlewareConfig{NewObservabilityMiddleware(g.observer)}, middlewares...)
	}

	for name, provider := range g.providers {
		if provider == nil {
			return nil, fmt.Errorf("gateway: provider %q is nil", name)
		}
		g.routes[name] = route{
			provider: provider,
			send:     buildSendChain(provider, middlewares),
			stream:   buildStreamChain(provider, middlewares),
		}
	}

	return g, nil
}

// Providers returns the registered provider names in lexical order.
func (g *Gateway) Providers() []string {
	names := make([]string, 0, len(g.routes))
	for name := range g.routes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Store exposes the conversation store.
func (g *Gateway) Store() *memory.Store {
	return g.store
}

// Respond generates a reply with the requested provider. When the generation
// fails nothing is stored. When it succeeds but the turns cannot be stored,
// the output is returned together with a *ai.StoreError.
func (g *Gateway) Respond(ctx context.Context, input ChatInput) (*ChatOutput, error) {
	r, err := g.route(input.Provider)
	if err != nil {
		return nil, err
	}

	ctx, end := g.startSpan(ctx, observability.SpanGatewayRespond, input.Provider)
	output, err := g.respond(ctx, r, input)
	end(err)
	return output, err
}

func (g *Gateway) respond(ctx context.Context, r route, input ChatInput) (*ChatOutput, error) {
	conversationID, request, userTurn, err := g.prepare(ctx, input)
	if err != nil {
		return nil, err
	}

	response, err := r.send(ctx, request)
	if err != nil {
		return nil, err
	}

	output := &ChatOutput{
		Response:       response.Content,
		ConversationID: conversationID,
		Model:          firstNonEmpty(response.Model, request.Model),
		Usage:          response.Usage,
		FinishReason:   response.FinishReason,
		Timestamp:      g.now(),
	}

	assistantTurn := ai.Message{Role: ai.RoleAssistant, Content: response.Content, Timestamp: output.Timestamp}
	if err := g.store.AppendTurns(ctx, conversationID, userTurn, assistantTurn); err != nil {
		return output, err
	}
	return output, nil
}

// RespondStream generates a reply incrementally. Validation and pre-stream
// provider failures are returned directly. Once the sequence is returned,
// failures arrive as a terminal frame with Error set; the turns are persisted
// only when the provider completes. Breaking out of the loop early abandons
// the reply and stores nothing.
func (g *Gateway) RespondStream(ctx context.Context, input ChatInput) (iter.Seq[StreamFrame], error) {
	r, err := g.route(input.Provider)
	if err != nil {
		return nil, err
	}

	ctx, end := g.startSpan(ctx, observability.SpanGatewayStream, input.Provider)

	conversationID, request, userTurn, err := g.prepare(ctx, input)
	if err != nil {
		end(err)
		return nil, err
	}

	stream, err := r.stream(ctx, request)
	if err != nil {
		end(err)
		return nil, err
	}
	stream = stream.WithBackend(input.Provider)

	return func(yield func(StreamFrame) bool) {
		var content strings.Builder
		var spanErr error
		defer func() { end(spanErr) }()

		for event := range stream.Iter() {
			switch event.Type {
			case ai.StreamEventContent:
				content.WriteString(event.Content)
				if !yield(StreamFrame{Delta: event.Content}) {
					return
				}

			case ai.StreamEventError:
				spanErr = &ai.StreamError{Backend: input.Provider, Message: event.Error}
				yield(StreamFrame{Error: event.Error})
				return

			case ai.StreamEventDone:
				frame := StreamFrame{
					Done:           true,
					ConversationID: conversationID,
					Model:          firstNonEmpty(event.Model, request.Model),
					Usage:          event.Usage,
				}

				assistantTurn := ai.Message{Role: ai.RoleAssistant, Content: content.String(), Timestamp: g.now()}
				if err := g.store.AppendTurns(ctx, conversationID, userTurn, assistantTurn); err != nil {
					spanErr = err
					frame.StoreError = err.Error()
				}
				yield(frame)
				return
			}
		}
	}, nil
}

// Compare sends the same prompt to every named provider concurrently. Each
// branch gets its own copy of the request and no history; nothing is stored.
// Results follow the order of input.Providers with duplicates removed, and
// one provider's failure never affects another's result.
func (g *Gateway) Compare(ctx context.Context, input CompareInput) ([]CompareResult, error) {
	names := compactNames(input.Providers)
	if len(names) == 0 {
		return nil, &ai.ValidationError{Field: "providers", Reason: "at least one provider is required"}
	}

	routes := make([]route, len(names))
	for i, name := range names {
		r, err := g.route(name)
		if err != nil {
			return nil, err
		}
		routes[i] = r
	}

	base := ai.ChatRequest{
		Messages:         []ai.Message{{Role: ai.RoleUser, Content: input.Message, Timestamp: g.now()}},
		SystemPrompt:     input.SystemPrompt,
		GenerationConfig: generationConfig(input.Temperature, input.MaxTokens),
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}

	ctx, end := g.startSpan(ctx, observability.SpanGatewayCompare, strings.Join(names, ","))
	defer end(nil)

	results := make([]CompareResult, len(names))
	var group errgroup.Group
	for i, name := range names {
		request := base
		request.Messages = slices.Clone(base.Messages)
		request.Model = input.Models[name]

		group.Go(func() error {
			results[i] = compareBranch(ctx, name, routes[i], request)
			return nil
		})
	}
	_ = group.Wait()

	return results, nil
}

func compareBranch(ctx context.Context, name string, r route, request ai.ChatRequest) CompareResult {
	response, err := r.send(ctx, request)
	if err != nil {
		return CompareResult{Provider: name, Status: StatusRejected, Error: err.Error()}
	}

	usage := response.Usage
	return CompareResult{
		Provider: name,
		Status:   StatusFulfilled,
		Response: response.Content,
		Model:    firstNonEmpty(response.Model, request.Model),
		Usage:    &usage,
	}
}

// prepare validates input, resolves the conversation id and assembles the
// request from stored history and the new user turn.
func (g *Gateway) prepare(ctx context.Context, input ChatInput) (string, ai.ChatRequest, ai.Message, error) {
	if strings.TrimSpace(input.Message) == "" {
		return "", ai.ChatRequest{}, ai.Message{}, &ai.ValidationError{Field: "message", Reason: "must not be empty"}
	}

	userTurn := ai.Message{Role: ai.RoleUser, Content: input.Message, Timestamp: g.now()}
	request := ai.ChatRequest{
		Model:            input.Model,
		Messages:         []ai.Message{userTurn},
		SystemPrompt:     input.SystemPrompt,
		GenerationConfig: generationConfig(input.Temperature, input.MaxTokens),
	}
	if err := request.Validate(); err != nil {
		return "", ai.ChatRequest{}, ai.Message{}, err
	}

	conversationID := input.ConversationID
	if conversationID == "" {
		conversationID = g.newID()
	} else if input.includeHistory() {
		history, err := g.store.Messages(ctx, conversationID)
		if err != nil {
			return "", ai.ChatRequest{}, ai.Message{}, err
		}
		request.Messages = append(slices.Clone(history), userTurn)
	}

	return conversationID, request, userTurn, nil
}

func (g *Gateway) route(name string) (route, error) {
	if name == "" {
		return route{}, &ai.ValidationError{Field: "provider", Reason: "must not be empty"}
	}
	r, ok := g.routes[name]
	if !ok {
		return route{}, &ai.ValidationError{Field: "provider", Reason: "unknown provider " + name}
	}
	return r, nil
}

// startSpan opens a gateway span when an observer is configured. The returned
// function ends it, recording err when non-nil.
func (g *Gateway) startSpan(ctx context.Context, name, provider string) (context.Context, func(error)) {
	if g.observer == nil {
		return ctx, func(error) {}
	}

	ctx, span := g.observer.StartSpan(ctx, name, observability.String(observability.AttrLLMProvider, provider))
	ctx = observability.ContextWithObserver(ctx, g.observer)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(observability.StatusError, err.Error())
		} else {
			span.SetStatus(observability.StatusOK, "")
		}
		span.End()
	}
}

func generationConfig(temperature *float64, maxTokens int) *ai.GenerationConfig {
	if temperature == nil && maxTokens == 0 {
		return nil
	}
	return &ai.GenerationConfig{Temperature: temperature, MaxTokens: maxTokens}
}

func compactNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
