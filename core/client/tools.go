package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/leofalp/aigoflow/providers/ai"
)

// ToolRun is the outcome of RunTools.
type ToolRun struct {
	// Response is the final model turn, the one without tool calls.
	Response *ai.ChatResponse
	// Messages holds every turn produced during the run, in order: assistant
	// tool requests, tool results and the final assistant reply.
	Messages []ai.Message
	// Usage sums token usage across all model calls of the run.
	Usage ai.Usage
	// ToolCalls counts executed tool calls.
	ToolCalls int
}

// RunTools sends history and keeps executing requested tools, appending their
// results and asking again, until the model answers without tool calls. More
// than MaxToolIterations tool rounds fail with ErrMaxToolIterations.
func (c *Client) RunTools(ctx context.Context, history []ai.Message, opts ...SendMessageOption) (*ToolRun, error) {
	return c.runToolLoop(ctx, history, func(ctx context.Context, messages []ai.Message) (*ai.ChatResponse, error) {
		return c.Send(ctx, messages, opts...)
	})
}

// RunToolsStream is RunTools with every model turn streamed. onEvent sees each
// event as it arrives, including the deltas of turns that request tools.
func (c *Client) RunToolsStream(ctx context.Context, history []ai.Message, onEvent func(ai.StreamEvent), opts ...SendMessageOption) (*ToolRun, error) {
	return c.runToolLoop(ctx, history, func(ctx context.Context, messages []ai.Message) (*ai.ChatResponse, error) {
		stream, err := c.Stream(ctx, messages, opts...)
		if err != nil {
			return nil, err
		}
		return stream.Tee(onEvent)
	})
}

type turnFunc func(ctx context.Context, messages []ai.Message) (*ai.ChatResponse, error)

func (c *Client) runToolLoop(ctx context.Context, history []ai.Message, turn turnFunc) (*ToolRun, error) {
	logger := c.options.Logger
	run := &ToolRun{}
	messages := append([]ai.Message(nil), history...)

	for iteration := 0; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		response, err := turn(ctx, messages)
		if err != nil {
			return nil, err
		}
		run.Usage.Add(response.Usage)

		assistant := response.Message()
		messages = append(messages, assistant)
		run.Messages = append(run.Messages, assistant)

		if len(response.ToolCalls) == 0 {
			if !c.provider.IsStopMessage(response) {
				logger.WarnContext(ctx, "model turn ended without stop", "finish_reason", response.FinishReason)
			}
			run.Response = response
			return run, nil
		}

		if iteration >= c.options.MaxToolIterations {
			return nil, fmt.Errorf("%w: %d rounds", ErrMaxToolIterations, c.options.MaxToolIterations)
		}

		for _, call := range response.ToolCalls {
			result, err := c.executeToolCall(ctx, call)
			if err != nil {
				return nil, err
			}
			run.ToolCalls++

			toolMessage := ai.Message{
				Role:       ai.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
			}
			messages = append(messages, toolMessage)
			run.Messages = append(run.Messages, toolMessage)
		}
	}
}

// executeToolCall returns the JSON envelope to hand back to the model. Tool
// failures become error envelopes unless AbortOnToolError is set.
func (c *Client) executeToolCall(ctx context.Context, call ai.ToolCall) (string, error) {
	logger := c.options.Logger
	name := call.Function.Name

	var result ai.ToolResult
	found, ok := c.catalog.Get(name)
	if !ok {
		if c.options.AbortOnToolError {
			return "", &ToolError{Tool: name, ToolCallID: call.ID, Err: fmt.Errorf("tool not found")}
		}
		logger.WarnContext(ctx, "model requested unknown tool", "tool", name)
		result = ai.NewToolResultError("tool_not_found", fmt.Sprintf("no tool named %q is available", name))
	} else {
		logger.DebugContext(ctx, "executing tool", "tool", name, "call_id", call.ID)
		output, err := found.Call(ctx, call.Function.Arguments)
		switch {
		case err != nil && c.options.AbortOnToolError:
			return "", &ToolError{Tool: name, ToolCallID: call.ID, Err: err}
		case err != nil:
			logger.WarnContext(ctx, "tool call failed", "tool", name, "error", err)
			result = ai.NewToolResultError("tool_execution_failed", err.Error())
		default:
			result = ai.NewToolResultSuccess(rawJSON(output))
		}
	}

	encoded, err := result.ToJSON()
	if err != nil {
		return "", fmt.Errorf("client: encode result of tool %q: %w", name, err)
	}
	return encoded, nil
}

// rawJSON embeds valid JSON output verbatim and falls back to a string.
func rawJSON(output string) any {
	if json.Valid([]byte(output)) {
		return json.RawMessage(output)
	}
	return output
}
