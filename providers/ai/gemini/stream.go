package gemini

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

// StreamMessage implements ai.StreamProvider for the Gemini API.
// It uses the streamGenerateContent endpoint with alt=sse to receive
// incremental response chunks as SSE events.
//
// Each SSE event is a generateContentResponse whose candidate text is the next
// slice of the reply. usageMetadata is repeated on several chunks with
// cumulative counts, so it is forwarded as a usage snapshot and the last one
// wins. A body that ends before any candidate reports a finishReason is a
// truncated reply and ends with an error event.
func (p *GeminiProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	span := observability.SpanFromContext(ctx)
	model := p.resolveModel(request)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(observability.LLMCall(ProviderName, model, true)...)
	}

	if p.apiKey == "" {
		return nil, ai.NewProviderError(ProviderName, 0, errMissingAPIKey)
	}

	streamURL := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", p.baseURL, model)

	httpResponse, err := utils.DoPostStream(ctx, p.client, streamURL, "", requestToGemini(request), p.authHeader())
	if err != nil {
		return nil, ai.NewProviderError(ProviderName, utils.StatusCodeOf(err), err)
	}

	sseScanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		finishReason := ""

		for {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ctx.Err())
				return
			}

			payload, sseErr := sseScanner.Next()
			if errors.Is(sseErr, io.EOF) {
				// Gemini has no explicit stop event: the body must end after a
				// candidate carried a finishReason.
				if finishReason == "" {
					yield(ai.StreamEvent{}, fmt.Errorf("body closed without a finishReason: %w", ai.ErrIncompleteStream))
					return
				}
				yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: finishReason}, nil)
				return
			}
			if sseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("SSE read error: %w", sseErr))
				return
			}

			var chunk generateContentResponse
			if parseErr := json.Unmarshal([]byte(payload), &chunk); parseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("failed to parse Gemini streaming chunk: %w", parseErr))
				return
			}

			for _, event := range chunkToStreamEvents(chunk, model, &finishReason) {
				if !yield(event, nil) {
					return
				}
			}
		}
	}

	return ai.NewChatStream(iteratorFunc).WithBackend(ProviderName), nil
}

// chunkToStreamEvents converts one streamed generateContentResponse into
// stream events and records the latest finish reason.
func chunkToStreamEvents(chunk generateContentResponse, model string, finishReason *string) []ai.StreamEvent {
	responseModel := chunk.ModelVersion
	if responseModel == "" {
		responseModel = model
	}

	if len(chunk.Candidates) == 0 && chunk.PromptFeedback != nil && chunk.PromptFeedback.BlockReason != "" {
		return []ai.StreamEvent{{Type: ai.StreamEventError, Error: "prompt blocked: " + chunk.PromptFeedback.BlockReason}}
	}

	var events []ai.StreamEvent
	if len(chunk.Candidates) > 0 {
		first := chunk.Candidates[0]
		if text := candidateText(first); text != "" {
			events = append(events, ai.StreamEvent{Type: ai.StreamEventContent, Content: text, Model: responseModel})
		}
		if first.FinishReason != "" {
			*finishReason = mapFinishReason(first.FinishReason)
		}
	}

	if chunk.UsageMetadata != nil {
		usage := usageToGeneric(chunk.UsageMetadata)
		events = append(events, ai.StreamEvent{Type: ai.StreamEventUsage, Usage: &usage, Model: responseModel})
	}

	return events
}
