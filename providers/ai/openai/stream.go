package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/leofalp/aigoflow/internal/utils"
	"github.com/leofalp/aigoflow/providers/ai"
)

// StreamMessage streams a chat completion. Usage arrives in a final chunk
// without choices, requested through stream_options.include_usage.
func (p *OpenAIProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	client, err := p.sdk()
	if err != nil {
		return nil, err
	}

	params := requestToParams(request)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	p.logger.DebugContext(ctx, "openai stream request", "base_url", p.baseURL, "model", params.Model)

	stream := client.Chat.Completions.NewStreaming(ctx, params)

	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(stream)

		finishReason := ""
		for stream.Next() {
			chunk := stream.Current()

			if usage := usageToGeneric(chunk.Usage); usage != nil {
				if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: usage}, nil) {
					return
				}
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: choice.Delta.Content}, nil) {
					return
				}
			}
			for _, call := range choice.Delta.ToolCalls {
				delta := &ai.ToolCallDelta{
					Index:     int(call.Index),
					ID:        call.ID,
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				}
				if !yield(ai.StreamEvent{Type: ai.StreamEventToolCall, ToolCall: delta}, nil) {
					return
				}
			}
			if choice.FinishReason != "" {
				finishReason = normalizeFinishReason(choice.FinishReason)
			}
		}

		if err := stream.Err(); err != nil {
			yield(ai.StreamEvent{}, fmt.Errorf("openai: stream: %w", err))
			return
		}
		yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: finishReason}, nil)
	}), nil
}
