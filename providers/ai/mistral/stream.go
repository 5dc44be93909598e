package mistral

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/leofalp/chatgate/internal/utils"
	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/observability"
)

const (
	eventPrefix    = "data:"
	streamSentinel = "[DONE]"
)

// StreamMessage implements [ai.StreamProvider] by reading the raw event feed.
//
// The feed is consumed in arbitrary chunks; [utils.EventStreamParser] only
// hands over payloads of complete lines, so a line split across two reads is
// decoded once it is whole. A payload that still fails to decode is dropped.
// Usage is recorded from the last chunk that carries it and attached once to
// the terminal event.
func (p *MistralProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	span := observability.SpanFromContext(ctx)
	observer := observability.ObserverFromContext(ctx)
	model := p.resolveModel(request)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(observability.LLMCall(ProviderName, model, true)...)
	}

	if p.apiKey == "" {
		return nil, ai.NewProviderError(ProviderName, 0, errMissingAPIKey)
	}

	mistralReq := requestToMistral(request, model)
	mistralReq.Stream = true

	httpResponse, err := utils.DoPostStream(ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey, mistralReq)
	if err != nil {
		return nil, ai.NewProviderError(ProviderName, utils.StatusCodeOf(err), err)
	}

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		responseModel := model
		var usage *ai.Usage
		var finishReason, vendorError string
		stopped := false

		handle := func(payload string) bool {
			var chunk chatCompletionChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				if observer != nil {
					observer.Debug(ctx, "dropping malformed stream payload",
						observability.String(observability.AttrLLMProvider, ProviderName),
						observability.Error(err),
					)
				}
				return true
			}

			if chunk.Object == "error" {
				vendorError = chunk.Message
				return false
			}
			if chunk.Model != "" {
				responseModel = chunk.Model
			}
			if chunk.Usage != nil {
				latest := usageToGeneric(chunk.Usage)
				usage = &latest
			}

			for _, c := range chunk.Choices {
				if c.Index != 0 {
					continue
				}
				if c.FinishReason != nil && *c.FinishReason != "" {
					finishReason = *c.FinishReason
				}
				if c.Delta.Content != "" {
					if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: c.Delta.Content, Model: responseModel}, nil) {
						stopped = true
						return false
					}
				}
			}
			return true
		}

		readErr := utils.ReadEventStream(ctx, httpResponse.Body, utils.NewEventStreamParser(eventPrefix, streamSentinel), handle)
		switch {
		case stopped:
			return
		case vendorError != "":
			yield(ai.StreamEvent{Type: ai.StreamEventError, Error: vendorError}, nil)
		case readErr != nil:
			yield(ai.StreamEvent{}, fmt.Errorf("stream read error: %w", readErr))
		default:
			yield(ai.StreamEvent{Type: ai.StreamEventDone, Usage: usage, Model: responseModel, FinishReason: finishReason}, nil)
		}
	}

	return ai.NewChatStream(iteratorFunc).WithBackend(ProviderName), nil
}
