package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/leofalp/aigoflow/providers/ai"
)

// requestToParams builds the Messages request. System turns found in the
// history are folded into the system prompt, and consecutive tool results are
// merged into one user turn as the API requires.
func requestToParams(request ai.ChatRequest) (anthropic.MessageNewParams, error) {
	model := request.Model
	if model == "" {
		model = DefaultModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: defaultMaxTokens,
	}

	system := []string{}
	if request.SystemPrompt != "" {
		system = append(system, request.SystemPrompt)
	}

	for _, message := range request.Messages {
		switch message.Role {
		case ai.RoleSystem:
			system = append(system, message.Content)
		case ai.RoleTool:
			block := anthropic.NewToolResultBlock(message.ToolCallID, message.Content, isToolError(message.Content))
			last := len(params.Messages) - 1
			if last >= 0 && params.Messages[last].Role == anthropic.MessageParamRoleUser && hasToolResult(params.Messages[last]) {
				params.Messages[last].Content = append(params.Messages[last].Content, block)
				continue
			}
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		case ai.RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(message.ToolCalls)+1)
			if message.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(message.Content))
			}
			for _, call := range message.ToolCalls {
				input := json.RawMessage(call.Function.Arguments)
				if !json.Valid(input) {
					return params, fmt.Errorf("anthropic: tool call %s has invalid arguments", call.ID)
				}
				blocks = append(blocks, anthropic.ContentBlockParamOfRequestToolUseBlock(call.ID, input, call.Function.Name))
			}
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(blocks...))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(message.Content)))
		}
	}

	if format := request.ResponseFormat; format != nil {
		system = append(system, jsonInstruction(format))
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	for _, tool := range request.Tools {
		schema := anthropic.ToolInputSchemaParam{Properties: map[string]any{}}
		if tool.Parameters != nil {
			if len(tool.Parameters.Properties) > 0 {
				schema.Properties = tool.Parameters.Properties
			}
			if len(tool.Parameters.Required) > 0 {
				schema.ExtraFields = map[string]any{"required": tool.Parameters.Required}
			}
		}
		union := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if tool.Description != "" {
			union.OfTool.Description = param.NewOpt(tool.Description)
		}
		params.Tools = append(params.Tools, union)
	}

	if config := request.GenerationConfig; config != nil {
		if config.MaxTokens > 0 {
			params.MaxTokens = int64(config.MaxTokens)
		}
		if config.Temperature > 0 {
			params.Temperature = anthropic.Float(float64(config.Temperature))
		}
		if config.TopP > 0 {
			params.TopP = anthropic.Float(float64(config.TopP))
		}
	}

	return params, nil
}

// jsonInstruction asks for JSON in the system prompt; the Messages API has no
// response format parameter.
func jsonInstruction(format *ai.ResponseFormat) string {
	if format.OutputSchema == nil {
		return "Respond with a single JSON object and nothing else."
	}
	return "Respond with a single JSON object and nothing else. It must match this JSON schema:\n" + format.OutputSchema.String()
}

func hasToolResult(message anthropic.MessageParam) bool {
	for _, block := range message.Content {
		if block.OfRequestToolResultBlock != nil {
			return true
		}
	}
	return false
}

// isToolError reads the success flag of an ai.ToolResult envelope.
func isToolError(content string) bool {
	var result ai.ToolResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return false
	}
	return !result.Success && result.Error != ""
}

func messageToGeneric(message *anthropic.Message) *ai.ChatResponse {
	response := &ai.ChatResponse{
		Id:           message.ID,
		Model:        string(message.Model),
		FinishReason: normalizeStopReason(message.StopReason),
		Usage: &ai.Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}

	var text strings.Builder
	for _, block := range message.Content {
		switch block := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(block.Text)
		case anthropic.ToolUseBlock:
			arguments := string(block.Input)
			if arguments == "" {
				arguments = "{}"
			}
			response.ToolCalls = append(response.ToolCalls, ai.ToolCall{
				ID:       block.ID,
				Type:     "function",
				Function: ai.ToolCallFunction{Name: block.Name, Arguments: arguments},
			})
		}
	}
	response.Content = text.String()
	return response
}

func normalizeStopReason(reason anthropic.StopReason) string {
	switch reason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		return ai.FinishReasonStop
	case anthropic.StopReasonToolUse:
		return ai.FinishReasonToolCalls
	case anthropic.StopReasonMaxTokens:
		return ai.FinishReasonLength
	default:
		return string(reason)
	}
}
