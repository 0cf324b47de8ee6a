package openai

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/leofalp/aigoflow/providers/ai"
)

func requestToParams(request ai.ChatRequest) openai.ChatCompletionNewParams {
	model := request.Model
	if model == "" {
		model = DefaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(request.Messages)+1),
	}

	if request.SystemPrompt != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(request.SystemPrompt))
	}
	for _, message := range request.Messages {
		params.Messages = append(params.Messages, messageToParam(message))
	}

	for _, tool := range request.Tools {
		parameters := shared.FunctionParameters{"type": "object", "properties": map[string]any{}}
		if tool.Parameters != nil {
			parameters = tool.Parameters.ToMap()
		}
		definition := shared.FunctionDefinitionParam{Name: tool.Name, Parameters: parameters}
		if tool.Description != "" {
			definition.Description = openai.String(tool.Description)
		}
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{Function: definition})
	}

	if format := request.ResponseFormat; format != nil {
		if format.OutputSchema != nil {
			name := format.Name
			if name == "" {
				name = "response"
			}
			schema := shared.ResponseFormatJSONSchemaJSONSchemaParam{Name: name, Schema: format.OutputSchema.ToMap()}
			if format.Strict {
				schema.Strict = openai.Bool(true)
			}
			params.ResponseFormat.OfJSONSchema = &shared.ResponseFormatJSONSchemaParam{JSONSchema: schema}
		} else {
			params.ResponseFormat.OfJSONObject = &shared.ResponseFormatJSONObjectParam{}
		}
	}

	if config := request.GenerationConfig; config != nil {
		if config.MaxTokens > 0 {
			params.MaxTokens = openai.Int(int64(config.MaxTokens))
		}
		if config.Temperature > 0 {
			params.Temperature = openai.Float(float64(config.Temperature))
		}
		if config.TopP > 0 {
			params.TopP = openai.Float(float64(config.TopP))
		}
	}

	return params
}

func messageToParam(message ai.Message) openai.ChatCompletionMessageParamUnion {
	switch message.Role {
	case ai.RoleSystem:
		return openai.SystemMessage(message.Content)
	case ai.RoleTool:
		return openai.ToolMessage(message.Content, message.ToolCallID)
	case ai.RoleAssistant:
		assistant := openai.ChatCompletionAssistantMessageParam{}
		if message.Content != "" {
			assistant.Content.OfString = openai.String(message.Content)
		}
		if message.Refusal != "" {
			assistant.Refusal = openai.String(message.Refusal)
		}
		for _, call := range message.ToolCalls {
			assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: call.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				},
			})
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
	default:
		return openai.UserMessage(message.Content)
	}
}

func responseToGeneric(completion *openai.ChatCompletion) *ai.ChatResponse {
	choice := completion.Choices[0]
	response := &ai.ChatResponse{
		Id:           completion.ID,
		Model:        completion.Model,
		Content:      choice.Message.Content,
		Refusal:      choice.Message.Refusal,
		FinishReason: normalizeFinishReason(choice.FinishReason),
		Usage:        usageToGeneric(completion.Usage),
	}
	for _, call := range choice.Message.ToolCalls {
		response.ToolCalls = append(response.ToolCalls, ai.ToolCall{
			ID:   call.ID,
			Type: "function",
			Function: ai.ToolCallFunction{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}
	return response
}

func usageToGeneric(usage openai.CompletionUsage) *ai.Usage {
	if usage.TotalTokens == 0 && usage.PromptTokens == 0 && usage.CompletionTokens == 0 {
		return nil
	}
	return &ai.Usage{
		PromptTokens:     int(usage.PromptTokens),
		CompletionTokens: int(usage.CompletionTokens),
		TotalTokens:      int(usage.TotalTokens),
	}
}

// normalizeFinishReason maps the legacy function_call reason onto tool_calls.
func normalizeFinishReason(reason string) string {
	if reason == "function_call" {
		return ai.FinishReasonToolCalls
	}
	return reason
}
