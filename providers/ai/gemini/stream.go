package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/leofalp/aigoflow/providers/ai"
)

func (p *GeminiProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	client, err := p.sdk(ctx)
	if err != nil {
		return nil, err
	}

	model, contents, config, err := requestToGenai(request)
	if err != nil {
		return nil, err
	}
	p.logger.DebugContext(ctx, "gemini stream request", "model", model)

	chunks := client.Models.GenerateContentStream(ctx, model, contents, config)

	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		var (
			usage        *genai.GenerateContentResponseUsageMetadata
			finishReason genai.FinishReason
			toolCalls    int
		)

		for chunk, err := range chunks {
			if err != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("gemini: stream: %w", err))
				return
			}
			if chunk.UsageMetadata != nil {
				usage = chunk.UsageMetadata
			}
			if len(chunk.Candidates) == 0 {
				continue
			}

			candidate := chunk.Candidates[0]
			if candidate.FinishReason != "" {
				finishReason = candidate.FinishReason
			}
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				event := ai.StreamEvent{Type: ai.StreamEventContent, Content: part.Text}
				if call := toolCall(part); call != nil {
					event = ai.StreamEvent{Type: ai.StreamEventToolCall, ToolCall: &ai.ToolCallDelta{
						Index:     toolCalls,
						ID:        call.ID,
						Name:      call.Function.Name,
						Arguments: call.Function.Arguments,
					}}
					toolCalls++
				} else if part.Thought || part.Text == "" {
					continue
				}
				if !yield(event, nil) {
					return
				}
			}
		}

		if usage != nil {
			if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: usageToGeneric(usage)}, nil) {
				return
			}
		}
		yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: normalizeFinishReason(finishReason, toolCalls > 0)}, nil)
	}), nil
}
