package middleware

import (
	"context"
	"time"

	"github.com/leofalp/aigoflow/core/client"
	"github.com/leofalp/aigoflow/core/overview"
	"github.com/leofalp/aigoflow/providers/ai"
)

// NewOverviewMiddleware records every call into the overview.Overview carried
// by the request context. Calls without one pass through untouched. Placed
// outside the retry middleware, a retried call counts once.
func NewOverviewMiddleware() client.MiddlewareConfig {
	return client.MiddlewareConfig{
		Send: func(next client.SendFunc) client.SendFunc {
			return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
				o := overview.FromContext(ctx)
				if o == nil {
					return next(ctx, request)
				}

				start := time.Now()
				response, err := next(ctx, request)
				o.Record(request.Model, response, time.Since(start), err)
				return response, err
			}
		},
		Stream: func(next client.StreamFunc) client.StreamFunc {
			return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
				o := overview.FromContext(ctx)
				if o == nil {
					return next(ctx, request)
				}

				start := time.Now()
				stream, err := next(ctx, request)
				if err != nil {
					o.Record(request.Model, nil, time.Since(start), err)
					return nil, err
				}
				return recordStream(stream, o, request.Model, start), nil
			}
		},
	}
}

// recordStream records once the stream ends, with usage and tool calls
// gathered from its events. An abandoned stream is not recorded.
func recordStream(stream *ai.ChatStream, o *overview.Overview, model string, start time.Time) *ai.ChatStream {
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		summary := &ai.ChatResponse{}

		for event, err := range stream.Iter() {
			if err != nil {
				o.Record(model, nil, time.Since(start), err)
				yield(event, err)
				return
			}

			switch event.Type {
			case ai.StreamEventUsage:
				summary.Usage = event.Usage
			case ai.StreamEventToolCall:
				if event.ToolCall != nil && event.ToolCall.Name != "" {
					summary.ToolCalls = append(summary.ToolCalls, ai.ToolCall{Function: ai.ToolCallFunction{Name: event.ToolCall.Name}})
				}
			}

			if !yield(event, nil) {
				return
			}
			if event.Type == ai.StreamEventDone {
				break
			}
		}
		o.Record(model, summary, time.Since(start), nil)
	})
}
