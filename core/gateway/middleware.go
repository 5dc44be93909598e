package gateway

import (
	"context"

	"github.com/leofalp/chatgate/providers/ai"
)

// SendFunc sends a chat request to a provider and returns the completed
// response. It is the unit threaded through the send middleware chain.
type SendFunc func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error)

// StreamFunc sends a chat request and returns a ChatStream for incremental
// delivery. It is the unit threaded through the stream middleware chain.
type StreamFunc func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error)

// Middleware wraps a SendFunc. Middlewares are applied outermost-first: the
// first middleware passed to WithMiddleware runs first on the way in.
type Middleware func(next SendFunc) SendFunc

// StreamMiddleware is the streaming counterpart of Middleware. It may wrap the
// returned ChatStream to observe or transform the event sequence.
type StreamMiddleware func(next StreamFunc) StreamFunc

// MiddlewareConfig pairs a send middleware with its optional streaming
// counterpart. Send is required; a nil Stream means streaming calls bypass
// this entry.
type MiddlewareConfig struct {
	Send   Middleware
	Stream StreamMiddleware
}

// buildSendChain wraps the provider call with middlewares so that
// middlewares[0] is the outermost.
func buildSendChain(provider ai.Provider, middlewares []MiddlewareConfig) SendFunc {
	var chain SendFunc = func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
		return provider.SendMessage(ctx, request)
	}

	for i := len(middlewares) - 1; i >= 0; i-- {
		chain = middlewares[i].Send(chain)
	}

	return chain
}

// buildStreamChain wraps the provider's native stream, or a single-event
// stream built from SendMessage when the provider cannot stream. Entries with
// a nil Stream are skipped.
func buildStreamChain(provider ai.Provider, middlewares []MiddlewareConfig) StreamFunc {
	var chain StreamFunc = func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
		if streamProvider, ok := provider.(ai.StreamProvider); ok {
			return streamProvider.StreamMessage(ctx, request)
		}

		response, err := provider.SendMessage(ctx, request)
		if err != nil {
			return nil, err
		}

		return ai.NewSingleEventStream(response), nil
	}

	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i].Stream != nil {
			chain = middlewares[i].Stream(chain)
		}
	}

	return chain
}
