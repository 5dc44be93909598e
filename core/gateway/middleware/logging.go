package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/leofalp/chatgate/core/gateway"
	"github.com/leofalp/chatgate/internal/utils"
	"github.com/leofalp/chatgate/providers/ai"
)

// LogLevel controls how much detail the logging middleware emits.
type LogLevel int

const (
	// LogLevelMinimal logs the model, duration and token counts.
	LogLevelMinimal LogLevel = iota

	// LogLevelStandard adds the message count and finish reason.
	LogLevelStandard

	// LogLevelVerbose adds the last user message and the response content,
	// truncated to 500 characters.
	//
	// WARNING: do not use it in production. It logs raw prompt and response
	// text, which may contain personal data or secrets.
	LogLevelVerbose
)

const truncateLen = 500

// NewLoggingMiddleware emits slog entries before and after every provider
// call. For streams the completion entry is written once the stream ends.
func NewLoggingMiddleware(logger *slog.Logger, level LogLevel) gateway.MiddlewareConfig {
	if logger == nil {
		logger = slog.Default()
	}
	return gateway.MiddlewareConfig{
		Send:   buildSendLogging(logger, level),
		Stream: buildStreamLogging(logger, level),
	}
}

func buildSendLogging(logger *slog.Logger, level LogLevel) gateway.Middleware {
	return func(next gateway.SendFunc) gateway.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			logger.InfoContext(ctx, "llm send", buildRequestAttrs(request, level)...)

			start := time.Now()
			response, err := next(ctx, request)
			elapsed := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "llm send failed",
					slog.String("model", request.Model),
					slog.Duration("duration", elapsed),
					slog.String("error", err.Error()),
				)
				return nil, err
			}

			logger.InfoContext(ctx, "llm send completed", buildResponseAttrs(response, elapsed, level)...)
			return response, nil
		}
	}
}

func buildStreamLogging(logger *slog.Logger, level LogLevel) gateway.StreamMiddleware {
	return func(next gateway.StreamFunc) gateway.StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			logger.InfoContext(ctx, "llm stream", buildRequestAttrs(request, level)...)

			start := time.Now()
			stream, err := next(ctx, request)
			if err != nil {
				logger.ErrorContext(ctx, "llm stream failed",
					slog.String("model", request.Model),
					slog.Duration("duration", time.Since(start)),
					slog.String("error", err.Error()),
				)
				return nil, err
			}

			return wrapStreamWithLogging(ctx, stream, logger, request.Model, level, start), nil
		}
	}
}

// wrapStreamWithLogging logs a completion entry on the done event, an error
// entry on the error event, and an abandonment entry when the caller stops
// reading first.
func wrapStreamWithLogging(ctx context.Context, stream *ai.ChatStream, logger *slog.Logger, model string, level LogLevel, start time.Time) *ai.ChatStream {
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		for event := range stream.Iter() {
			if !yield(event, nil) {
				logger.InfoContext(ctx, "llm stream abandoned",
					slog.String("model", model),
					slog.Duration("duration", time.Since(start)),
				)
				return
			}

			switch event.Type {
			case ai.StreamEventError:
				logger.ErrorContext(ctx, "llm stream failed",
					slog.String("model", model),
					slog.Duration("duration", time.Since(start)),
					slog.String("error", event.Error),
				)
				return

			case ai.StreamEventDone:
				attrs := []any{
					slog.String("model", model),
					slog.Duration("duration", time.Since(start)),
				}
				if level >= LogLevelStandard && event.FinishReason != "" {
					attrs = append(attrs, slog.String("finish_reason", event.FinishReason))
				}
				if event.Usage != nil {
					attrs = append(attrs,
						slog.Int("prompt_tokens", event.Usage.PromptTokens),
						slog.Int("completion_tokens", event.Usage.CompletionTokens),
						slog.Int("total_tokens", event.Usage.TotalTokens),
					)
				}
				logger.InfoContext(ctx, "llm stream completed", attrs...)
				return
			}
		}
	})
}

func buildRequestAttrs(request ai.ChatRequest, level LogLevel) []any {
	attrs := []any{slog.String("model", request.Model)}

	if level >= LogLevelStandard {
		attrs = append(attrs, slog.Int("message_count", len(request.Messages)))
	}

	if level >= LogLevelVerbose {
		last := request.LastMessage()
		attrs = append(attrs, slog.String("last_message", utils.TruncateString(last.Content, truncateLen, "...")))
	}

	return attrs
}

func buildResponseAttrs(response *ai.ChatResponse, elapsed time.Duration, level LogLevel) []any {
	attrs := []any{
		slog.String("model", response.Model),
		slog.Duration("duration", elapsed),
		slog.Int("prompt_tokens", response.Usage.PromptTokens),
		slog.Int("completion_tokens", response.Usage.CompletionTokens),
		slog.Int("total_tokens", response.Usage.TotalTokens),
	}

	if level >= LogLevelStandard && response.FinishReason != "" {
		attrs = append(attrs, slog.String("finish_reason", response.FinishReason))
	}

	if level >= LogLevelVerbose && response.Content != "" {
		attrs = append(attrs, slog.String("response_content", utils.TruncateString(response.Content, truncateLen, "...")))
	}

	return attrs
}
