package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/leofalp/aigoflow/core/client"
	"github.com/leofalp/aigoflow/internal/utils"
	"github.com/leofalp/aigoflow/providers/ai"
)

// LogLevel selects how much of each call is logged.
type LogLevel int

const (
	// LogLevelMinimal logs model, duration and token usage.
	LogLevelMinimal LogLevel = iota

	// LogLevelStandard adds message and tool counts and the finish reason.
	LogLevelStandard

	// LogLevelVerbose adds the last prompt message and the reply, truncated.
	// Prompts and replies may contain personal data; keep this for local work.
	LogLevelVerbose
)

const truncateLen = 500

// NewLoggingMiddleware logs every send and stream. A stream's completion
// entry is written when the stream is drained.
func NewLoggingMiddleware(logger *slog.Logger, level LogLevel) client.MiddlewareConfig {
	if logger == nil {
		logger = slog.Default()
	}
	return client.MiddlewareConfig{
		Send:   sendLogging(logger, level),
		Stream: streamLogging(logger, level),
	}
}

func sendLogging(logger *slog.Logger, level LogLevel) client.Middleware {
	return func(next client.SendFunc) client.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			logger.InfoContext(ctx, "llm send", requestAttrs(request, level)...)

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

			logger.InfoContext(ctx, "llm send completed", responseAttrs(request.Model, response, elapsed, level)...)
			return response, nil
		}
	}
}

func streamLogging(logger *slog.Logger, level LogLevel) client.StreamMiddleware {
	return func(next client.StreamFunc) client.StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			logger.InfoContext(ctx, "llm stream", requestAttrs(request, level)...)

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

// wrapStreamWithLogging accumulates the stream as it passes through so the
// completion entry carries the same attributes as a send.
func wrapStreamWithLogging(ctx context.Context, stream *ai.ChatStream, logger *slog.Logger, model string, level LogLevel, start time.Time) *ai.ChatStream {
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		summary := &ai.ChatResponse{}

		for event, err := range stream.Iter() {
			if err != nil {
				logger.ErrorContext(ctx, "llm stream failed",
					slog.String("model", model),
					slog.Duration("duration", time.Since(start)),
					slog.String("error", err.Error()),
				)
				yield(event, err)
				return
			}

			switch event.Type {
			case ai.StreamEventContent:
				summary.Content += event.Content
			case ai.StreamEventUsage:
				summary.Usage = event.Usage
			case ai.StreamEventDone:
				summary.FinishReason = event.FinishReason
			}

			if !yield(event, nil) {
				logger.InfoContext(ctx, "llm stream abandoned",
					slog.String("model", model),
					slog.Duration("duration", time.Since(start)),
				)
				return
			}
			if event.Type == ai.StreamEventDone {
				break
			}
		}

		logger.InfoContext(ctx, "llm stream completed", responseAttrs(model, summary, time.Since(start), level)...)
	})
}

func requestAttrs(request ai.ChatRequest, level LogLevel) []any {
	attrs := []any{slog.String("model", request.Model)}

	if level >= LogLevelStandard {
		attrs = append(attrs,
			slog.Int("message_count", len(request.Messages)),
			slog.Int("tool_count", len(request.Tools)),
			slog.Bool("structured", request.ResponseFormat != nil),
		)
	}

	if level >= LogLevelVerbose && len(request.Messages) > 0 {
		last := request.Messages[len(request.Messages)-1]
		attrs = append(attrs,
			slog.String("last_message_role", string(last.Role)),
			slog.String("last_message_content", utils.TruncateString(last.Content, truncateLen)),
		)
	}
	return attrs
}

func responseAttrs(model string, response *ai.ChatResponse, elapsed time.Duration, level LogLevel) []any {
	if response.Model != "" {
		model = response.Model
	}
	attrs := []any{
		slog.String("model", model),
		slog.Duration("duration", elapsed),
	}

	if response.Usage != nil {
		attrs = append(attrs,
			slog.Int("prompt_tokens", response.Usage.PromptTokens),
			slog.Int("completion_tokens", response.Usage.CompletionTokens),
			slog.Int("total_tokens", response.Usage.TotalTokens),
		)
	}

	if level >= LogLevelStandard {
		if response.FinishReason != "" {
			attrs = append(attrs, slog.String("finish_reason", response.FinishReason))
		}
		if len(response.ToolCalls) > 0 {
			attrs = append(attrs, slog.Int("tool_calls", len(response.ToolCalls)))
		}
	}

	if level >= LogLevelVerbose && response.Content != "" {
		attrs = append(attrs, slog.String("response_content", utils.TruncateString(response.Content, truncateLen)))
	}
	return attrs
}
