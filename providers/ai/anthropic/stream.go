package anthropic

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

// StreamMessage implements [ai.StreamProvider] for Anthropic's Messages API.
// It sends a streaming request (stream=true) and returns a [ai.ChatStream] that
// yields incremental deltas as SSE events arrive from the API.
//
// Pre-stream errors (missing API key, non-2xx HTTP response, network failure) are
// returned immediately as an [ai.ProviderError]. Mid-stream errors (an Anthropic
// "error" event, an SSE read failure) end the stream with a terminal error event.
//
// Anthropic SSE lifecycle:
//
//	message_start → content_block_start → content_block_delta(s) →
//	content_block_stop → message_delta → message_stop
func (p *AnthropicProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	span := observability.SpanFromContext(ctx)
	model := p.resolveModel(request)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(observability.LLMCall(ProviderName, model, true)...)
	}

	if p.apiKey == "" {
		return nil, ai.NewProviderError(ProviderName, 0, errMissingAPIKey)
	}

	anthropicReq := requestToAnthropic(request, model)
	anthropicReq.Stream = true

	httpResponse, err := utils.DoPostStream(ctx, p.client, p.baseURL+messagesEndpoint, "", anthropicReq, p.buildHeaders()...)
	if err != nil {
		return nil, ai.NewProviderError(ProviderName, utils.StatusCodeOf(err), err)
	}

	sseScanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		// Input tokens arrive on message_start, output tokens on message_delta.
		usage := anthropicUsage{}
		responseModel := model
		finishReason := ""

		for {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ctx.Err())
				return
			}

			payload, sseErr := sseScanner.Next()
			if errors.Is(sseErr, io.EOF) {
				yield(ai.StreamEvent{}, fmt.Errorf("body closed before message_stop: %w", ai.ErrIncompleteStream))
				return
			}
			if sseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("SSE read error: %w", sseErr))
				return
			}

			var event anthropicStreamEvent
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("failed to parse stream event: %w", err))
				return
			}

			switch event.Type {
			case "message_start":
				if event.Message != nil {
					if event.Message.Model != "" {
						responseModel = event.Message.Model
					}
					usage.InputTokens = event.Message.Usage.InputTokens
					usage.OutputTokens = event.Message.Usage.OutputTokens
				}
				snapshot := usageToGeneric(usage)
				if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: &snapshot, Model: responseModel}, nil) {
					return
				}

			case "content_block_delta":
				if event.Delta != nil && event.Delta.Type == "text_delta" {
					if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: event.Delta.Text, Model: responseModel}, nil) {
						return
					}
				}

			case "message_delta":
				if event.Delta != nil && event.Delta.StopReason != "" {
					finishReason = event.Delta.StopReason
				}
				// message_delta carries the cumulative output count.
				if event.Usage != nil {
					usage.OutputTokens = event.Usage.OutputTokens
				}

			case "message_stop":
				total := usageToGeneric(usage)
				yield(ai.StreamEvent{Type: ai.StreamEventDone, Usage: &total, Model: responseModel, FinishReason: finishReason}, nil)
				return

			case "error":
				message := "unknown error"
				if event.Error != nil {
					message = fmt.Sprintf("%s: %s", event.Error.Type, event.Error.Message)
				}
				yield(ai.StreamEvent{Type: ai.StreamEventError, Error: message}, nil)
				return
			}
		}
	}

	return ai.NewChatStream(iteratorFunc).WithBackend(ProviderName), nil
}
