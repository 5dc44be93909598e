package gateway

import (
	"context"
	"time"

	"github.com/leofalp/chatgate/internal/utils"
	"github.com/leofalp/chatgate/providers/ai"
	"github.com/leofalp/chatgate/providers/observability"
)

// NewObservabilityMiddleware records request metrics and logs for every
// provider call, and copies token counts onto the gateway span found in the
// context. [New] installs it as the outermost entry when [WithObserver] is
// given, so it observes the final outcome after retries and timeouts.
func NewObservabilityMiddleware(observer observability.Provider) MiddlewareConfig {
	return MiddlewareConfig{
		Send:   buildObsSend(observer),
		Stream: buildObsStream(observer),
	}
}

func buildObsSend(observer observability.Provider) Middleware {
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			observer.Debug(ctx, "llm send",
				observability.String(observability.AttrLLMModel, request.Model),
				observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
			)

			start := time.Now()
			response, err := next(ctx, request)
			elapsed := time.Since(start)

			if err != nil {
				recordObsFailure(ctx, observer, request.Model, elapsed, err)
				return nil, err
			}

			recordObsSuccess(ctx, observer, response, elapsed)
			return response, nil
		}
	}
}

func buildObsStream(observer observability.Provider) StreamMiddleware {
	return func(next StreamFunc) StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			observer.Debug(ctx, "llm stream",
				observability.String(observability.AttrLLMModel, request.Model),
				observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
			)

			start := time.Now()
			stream, err := next(ctx, request)
			if err != nil {
				recordObsFailure(ctx, observer, request.Model, time.Since(start), err)
				return nil, err
			}

			return wrapStreamWithObservability(ctx, stream, observer, request.Model, start), nil
		}
	}
}

// wrapStreamWithObservability forwards every event unchanged and records the
// outcome once the stream ends or the caller stops reading.
func wrapStreamWithObservability(ctx context.Context, stream *ai.ChatStream, observer observability.Provider, model string, start time.Time) *ai.ChatStream {
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		var content int

		for event := range stream.Iter() {
			if !yield(event, nil) {
				observer.Info(ctx, "llm stream abandoned",
					observability.String(observability.AttrLLMModel, model),
					observability.Duration(observability.AttrDuration, time.Since(start)),
				)
				return
			}

			switch event.Type {
			case ai.StreamEventContent:
				content += len(event.Content)

			case ai.StreamEventError:
				recordObsFailure(ctx, observer, model, time.Since(start), &ai.StreamError{Message: event.Error})
				return

			case ai.StreamEventDone:
				response := &ai.ChatResponse{Model: firstNonEmpty(event.Model, model), FinishReason: event.FinishReason}
				if event.Usage != nil {
					response.Usage = *event.Usage
				}
				recordObsSuccess(ctx, observer, response, time.Since(start),
					observability.Int("response.length", content),
				)
				return
			}
		}
	})
}

func recordObsFailure(ctx context.Context, observer observability.Provider, model string, elapsed time.Duration, err error) {
	observer.Error(ctx, "llm request failed",
		observability.Error(err),
		observability.Duration(observability.AttrDuration, elapsed),
		observability.String(observability.AttrLLMModel, model),
	)

	observer.Counter(observability.MetricGatewayRequestCount).Add(ctx, 1,
		observability.String(observability.AttrStatus, "error"),
		observability.String(observability.AttrLLMModel, model),
	)
}

// recordObsSuccess writes the duration histogram, request and token counters,
// span attributes and an INFO log.
func recordObsSuccess(ctx context.Context, observer observability.Provider, response *ai.ChatResponse, elapsed time.Duration, extra ...observability.Attribute) {
	model := response.Model

	observer.Histogram(observability.MetricGatewayRequestDuration).Record(ctx, elapsed.Seconds(),
		observability.String(observability.AttrLLMModel, model),
	)
	observer.Counter(observability.MetricGatewayRequestCount).Add(ctx, 1,
		observability.String(observability.AttrStatus, "success"),
		observability.String(observability.AttrLLMModel, model),
	)
	observer.Counter(observability.MetricGatewayTokensTotal).Add(ctx, int64(response.Usage.TotalTokens),
		observability.String(observability.AttrLLMModel, model),
	)

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(observability.String(observability.AttrLLMModel, model))
		span.SetAttributes(observability.TokenCounts(response.Usage.PromptTokens, response.Usage.CompletionTokens, response.Usage.TotalTokens)...)
	}

	logAttrs := []observability.Attribute{
		observability.String(observability.AttrLLMModel, model),
		observability.String(observability.AttrLLMFinishReason, response.FinishReason),
		observability.Duration(observability.AttrDuration, elapsed),
		observability.Int(observability.AttrLLMTokensTotal, response.Usage.TotalTokens),
	}
	if response.Content != "" {
		logAttrs = append(logAttrs, observability.String("response", utils.TruncateString(response.Content, 100, "...")))
	}
	observer.Info(ctx, "llm request completed", append(logAttrs, extra...)...)
}
