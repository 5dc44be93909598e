package cohere

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/leofalp/chatgate/internal/utils"
	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/observability"
)

// StreamMessage implements [ai.StreamProvider]. The response body is a
// sequence of JSON objects decoded one at a time with a json.Decoder, which
// already yields structured events, so no line handling is needed here.
func (p *CohereProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	span := observability.SpanFromContext(ctx)
	model := p.resolveModel(request)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(observability.LLMCall(ProviderName, model, true)...)
	}

	if p.apiKey == "" {
		return nil, ai.NewProviderError(ProviderName, 0, errMissingAPIKey)
	}

	cohereReq := requestToCohere(request, model)
	cohereReq.Stream = true

	httpResponse, err := utils.DoPostStream(ctx, p.client, p.baseURL+chatEndpoint, p.apiKey, cohereReq,
		utils.HeaderOption{Key: "Accept", Value: "application/json"},
	)
	if err != nil {
		return nil, ai.NewProviderError(ProviderName, utils.StatusCodeOf(err), err)
	}

	decoder := json.NewDecoder(httpResponse.Body)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		for {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ctx.Err())
				return
			}

			var event streamEvent
			if decodeErr := decoder.Decode(&event); decodeErr != nil {
				if errors.Is(decodeErr, io.EOF) {
					yield(ai.StreamEvent{}, fmt.Errorf("body closed before stream-end: %w", ai.ErrIncompleteStream))
					return
				}
				yield(ai.StreamEvent{}, fmt.Errorf("failed to decode stream event: %w", decodeErr))
				return
			}

			switch event.EventType {
			case "text-generation":
				if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: event.Text, Model: model}, nil) {
					return
				}

			case "stream-end":
				if event.FinishReason != "" && event.FinishReason != finishComplete && event.FinishReason != finishMaxTokens {
					yield(ai.StreamEvent{Type: ai.StreamEventError, Error: "generation ended with " + event.FinishReason}, nil)
					return
				}
				usage := ai.Usage{}
				if event.Response != nil {
					usage = usageToGeneric(event.Response.Meta)
				}
				yield(ai.StreamEvent{Type: ai.StreamEventDone, Usage: &usage, Model: model, FinishReason: event.FinishReason}, nil)
				return
			}
		}
	}

	return ai.NewChatStream(iteratorFunc).WithBackend(ProviderName), nil
}
