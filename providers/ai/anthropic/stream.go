package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/leofalp/aigoflow/internal/utils"
	"github.com/leofalp/aigoflow/providers/ai"
)

// StreamMessage yields text deltas as they arrive. Tool calls and usage are
// emitted once the message is complete, from the accumulated message.
func (p *AnthropicProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	client, err := p.sdk()
	if err != nil {
		return nil, err
	}

	params, err := requestToParams(request)
	if err != nil {
		return nil, err
	}
	p.logger.DebugContext(ctx, "anthropic stream request", "model", params.Model)

	stream := client.Messages.NewStreaming(ctx, params)

	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(stream)

		message := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("anthropic: accumulate stream: %w", err))
				return
			}

			if event.Type != "content_block_delta" {
				continue
			}
			delta := event.AsContentBlockDeltaEvent().Delta
			if delta.Type == "text_delta" && delta.Text != "" {
				if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: delta.Text}, nil) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			yield(ai.StreamEvent{}, fmt.Errorf("anthropic: stream: %w", err))
			return
		}

		final := messageToGeneric(&message)
		for index, call := range final.ToolCalls {
			delta := &ai.ToolCallDelta{Index: index, ID: call.ID, Name: call.Function.Name, Arguments: call.Function.Arguments}
			if !yield(ai.StreamEvent{Type: ai.StreamEventToolCall, ToolCall: delta}, nil) {
				return
			}
		}
		if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: final.Usage}, nil) {
			return
		}
		yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: final.FinishReason}, nil)
	}), nil
}
