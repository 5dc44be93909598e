package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	openaiapi "github.com/sashabaranov/go-openai"

	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/observability"
)

// StreamMessage implements ai.StreamProvider. It re-tags the events of the
// go-openai stream iterator: choice deltas become content events, the trailing
// usage chunk becomes a usage event, and io.EOF ends the stream once a
// finish_reason has been seen.
func (p *OpenAIProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	span := observability.SpanFromContext(ctx)
	model := p.resolveModel(request)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(observability.LLMCall(ProviderName, model, true)...)
	}

	if p.apiKey == "" {
		return nil, ai.NewProviderError(ProviderName, 0, errMissingAPIKey)
	}

	apiReq := requestToOpenAI(request, model)
	apiReq.Stream = true
	apiReq.StreamOptions = &openaiapi.StreamOptions{IncludeUsage: true}

	vendorStream, err := p.api().CreateChatCompletionStream(ctx, apiReq)
	if err != nil {
		return nil, wrapError(err)
	}

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer func() { _ = vendorStream.Close() }()

		finishReason := ""

		for {
			chunk, recvErr := vendorStream.Recv()
			if errors.Is(recvErr, io.EOF) {
				// go-openai reports both [DONE] and a dropped body as io.EOF;
				// only a finish_reason proves the reply is complete.
				if finishReason == "" {
					yield(ai.StreamEvent{}, fmt.Errorf("body closed without a finish_reason: %w", ai.ErrIncompleteStream))
					return
				}
				yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: finishReason}, nil)
				return
			}
			if recvErr != nil {
				yield(ai.StreamEvent{}, recvErr)
				return
			}

			if len(chunk.Choices) > 0 {
				choice := chunk.Choices[0]
				if choice.FinishReason != "" {
					finishReason = string(choice.FinishReason)
				}
				if choice.Delta.Content != "" {
					if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: choice.Delta.Content, Model: chunk.Model}, nil) {
						return
					}
				}
			}

			if chunk.Usage != nil {
				usage := usageToGeneric(*chunk.Usage)
				if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: &usage, Model: chunk.Model}, nil) {
					return
				}
			}
		}
	}

	return ai.NewChatStream(iteratorFunc).WithBackend(ProviderName), nil
}
