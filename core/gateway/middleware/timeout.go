package middleware

import (
	"context"
	"time"

	"github.com/leofalp/chatgate/core/gateway"
	"github.com/leofalp/chatgate/providers/ai"
)

// NewTimeoutMiddleware enforces a per-request deadline on synchronous and
// streaming calls. For streams the deadline covers the whole lifetime of the
// stream: the context is cancelled once the stream ends or the caller stops
// reading, not when the first byte arrives. A shorter deadline already on the
// caller's context still wins.
func NewTimeoutMiddleware(timeout time.Duration) gateway.MiddlewareConfig {
	return gateway.MiddlewareConfig{
		Send:   buildSendTimeout(timeout),
		Stream: buildStreamTimeout(timeout),
	}
}

func buildSendTimeout(timeout time.Duration) gateway.Middleware {
	return func(next gateway.SendFunc) gateway.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return next(ctx, request)
		}
	}
}

func buildStreamTimeout(timeout time.Duration) gateway.StreamMiddleware {
	return func(next gateway.StreamFunc) gateway.StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)

			stream, err := next(ctx, request)
			if err != nil {
				cancel()
				return nil, err
			}

			return wrapStreamWithCancel(stream, cancel), nil
		}
	}
}

// wrapStreamWithCancel calls cancel after the terminal event or when the
// caller breaks out of the loop.
func wrapStreamWithCancel(stream *ai.ChatStream, cancel context.CancelFunc) *ai.ChatStream {
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		defer cancel()

		for event := range stream.Iter() {
			if !yield(event, nil) || event.IsTerminal() {
				return
			}
		}
	})
}
