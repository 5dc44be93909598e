package gateway

import (
	"context"
	"strings"
	"testing"

	"github.com/leofalp/chatgate/providers/ai"
)

// callRecorder records the order in which middlewares run.
type callRecorder struct {
	order *[]string
	name  string
}

func (rec *callRecorder) sendMiddleware() Middleware {
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			*rec.order = append(*rec.order, rec.name)
			return next(ctx, request)
		}
	}
}

func (rec *callRecorder) streamMiddleware() StreamMiddleware {
	return func(next StreamFunc) StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			*rec.order = append(*rec.order, rec.name+"-stream")
			return next(ctx, request)
		}
	}
}

func TestBuildSendChain_EmptyMiddlewares(t *testing.T) {
	chain := buildSendChain(&mockProvider{name: "p", reply: "direct"}, nil)

	resp, err := chain(context.Background(), ai.ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "direct" {
		t.Errorf("expected 'direct', got %q", resp.Content)
	}
}

// TestBuildSendChain_Order verifies the first middleware is the outermost.
func TestBuildSendChain_Order(t *testing.T) {
	order := []string{}
	first := &callRecorder{order: &order, name: "first"}
	second := &callRecorder{order: &order, name: "second"}

	chain := buildSendChain(&mockProvider{name: "p"}, []MiddlewareConfig{
		{Send: first.sendMiddleware()},
		{Send: second.sendMiddleware()},
	})
	if _, err := chain(context.Background(), ai.ChatRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Join(order, ",") != "first,second" {
		t.Errorf("unexpected order %v", order)
	}
}

// TestBuildStreamChain_SkipsNilStream verifies entries without a stream
// middleware are bypassed for streaming calls.
func TestBuildStreamChain_SkipsNilStream(t *testing.T) {
	order := []string{}
	sendOnly := &callRecorder{order: &order, name: "send-only"}
	both := &callRecorder{order: &order, name: "both"}

	provider := &mockStreamProvider{mockProvider: mockProvider{name: "p"}, deltas: []string{"x"}}
	chain := buildStreamChain(provider, []MiddlewareConfig{
		{Send: sendOnly.sendMiddleware()},
		{Send: both.sendMiddleware(), Stream: both.streamMiddleware()},
	})

	stream, err := chain(context.Background(), ai.ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	response, err := stream.Collect()
	if err != nil || response.Content != "x" {
		t.Errorf("unexpected stream result %+v (%v)", response, err)
	}

	if strings.Join(order, ",") != "both-stream" {
		t.Errorf("unexpected order %v", order)
	}
}

func TestBuildStreamChain_FallbackToSend(t *testing.T) {
	chain := buildStreamChain(&mockProvider{name: "p", reply: "sync"}, nil)

	stream, err := chain(context.Background(), ai.ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	response, _ := stream.Collect()
	if response.Content != "sync" || response.Usage.TotalTokens != 6 {
		t.Errorf("unexpected response %+v", response)
	}
}
