package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/leofalp/aigoflow/internal/jsonschema"
	"github.com/leofalp/aigoflow/providers/ai"
)

// maxSchemaDepth bounds $ref expansion; Gemini schemas cannot be recursive.
const maxSchemaDepth = 8

func requestToGenai(request ai.ChatRequest) (string, []*genai.Content, *genai.GenerateContentConfig, error) {
	model := request.Model
	if model == "" {
		model = DefaultModel
	}

	config := &genai.GenerateContentConfig{}
	system := []string{}
	if request.SystemPrompt != "" {
		system = append(system, request.SystemPrompt)
	}

	contents := make([]*genai.Content, 0, len(request.Messages))
	for _, message := range request.Messages {
		switch message.Role {
		case ai.RoleSystem:
			system = append(system, message.Content)
		case ai.RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       message.ToolCallID,
				Name:     message.Name,
				Response: toolResponse(message.Content),
			}}
			last := len(contents) - 1
			if last >= 0 && contents[last].Role == genai.RoleUser && contents[last].Parts[0].FunctionResponse != nil {
				contents[last].Parts = append(contents[last].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
		case ai.RoleAssistant:
			content := &genai.Content{Role: genai.RoleModel}
			if message.Content != "" {
				content.Parts = append(content.Parts, genai.NewPartFromText(message.Content))
			}
			for _, call := range message.ToolCalls {
				args := map[string]any{}
				if call.Function.Arguments != "" {
					if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
						return "", nil, nil, fmt.Errorf("gemini: tool call %s arguments: %w", call.ID, err)
					}
				}
				content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: call.ID, Name: call.Function.Name, Args: args}})
			}
			if len(content.Parts) > 0 {
				contents = append(contents, content)
			}
		default:
			contents = append(contents, genai.NewContentFromText(message.Content, genai.RoleUser))
		}
	}

	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	if len(request.Tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(request.Tools))
		for _, tool := range request.Tools {
			declaration := &genai.FunctionDeclaration{Name: tool.Name, Description: tool.Description}
			if tool.Parameters != nil && len(tool.Parameters.Properties) > 0 {
				declaration.Parameters = convertSchema(tool.Parameters, tool.Parameters, 0)
			}
			declarations = append(declarations, declaration)
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	if format := request.ResponseFormat; format != nil {
		config.ResponseMIMEType = "application/json"
		if format.OutputSchema != nil {
			config.ResponseSchema = convertSchema(format.OutputSchema, format.OutputSchema, 0)
		}
	}

	if generation := request.GenerationConfig; generation != nil {
		if generation.MaxTokens > 0 {
			config.MaxOutputTokens = int32(generation.MaxTokens)
		}
		if generation.Temperature > 0 {
			temperature := generation.Temperature
			config.Temperature = &temperature
		}
		if generation.TopP > 0 {
			topP := generation.TopP
			config.TopP = &topP
		}
	}

	return model, contents, config, nil
}

// toolResponse wraps tool output in the object Gemini expects.
func toolResponse(content string) map[string]any {
	var object map[string]any
	if err := json.Unmarshal([]byte(content), &object); err == nil {
		return object
	}
	return map[string]any{"result": content}
}

var schemaTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"array":   genai.TypeArray,
	"string":  genai.TypeString,
	"integer": genai.TypeInteger,
	"number":  genai.TypeNumber,
	"boolean": genai.TypeBoolean,
}

func convertSchema(schema, root *jsonschema.Schema, depth int) *genai.Schema {
	if schema.Ref != "" {
		name := strings.TrimPrefix(schema.Ref, "#/$defs/")
		definition, ok := root.Defs[name]
		if !ok || depth >= maxSchemaDepth {
			return &genai.Schema{Type: genai.TypeObject}
		}
		return convertSchema(definition, root, depth+1)
	}

	converted := &genai.Schema{
		Type:        schemaTypes[schema.Type],
		Description: schema.Description,
		Required:    schema.Required,
		Minimum:     schema.Minimum,
		Maximum:     schema.Maximum,
	}
	if converted.Type == "" {
		converted.Type = genai.TypeObject
	}
	for _, value := range schema.Enum {
		converted.Enum = append(converted.Enum, fmt.Sprint(value))
	}
	if schema.Items != nil {
		converted.Items = convertSchema(schema.Items, root, depth+1)
	}
	if len(schema.Properties) > 0 {
		converted.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, property := range schema.Properties {
			converted.Properties[name] = convertSchema(property, root, depth+1)
		}
	}
	return converted
}

func responseToGeneric(response *genai.GenerateContentResponse) *ai.ChatResponse {
	candidate := response.Candidates[0]
	result := &ai.ChatResponse{
		Id:    response.ResponseID,
		Model: response.ModelVersion,
		Usage: usageToGeneric(response.UsageMetadata),
	}

	var text strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if call := toolCall(part); call != nil {
				result.ToolCalls = append(result.ToolCalls, *call)
				continue
			}
			if !part.Thought {
				text.WriteString(part.Text)
			}
		}
	}
	result.Content = text.String()
	result.FinishReason = normalizeFinishReason(candidate.FinishReason, len(result.ToolCalls) > 0)
	return result
}

// toolCall converts a function call part. Gemini may omit call IDs, so one is
// generated to pair the later function response.
func toolCall(part *genai.Part) *ai.ToolCall {
	if part.FunctionCall == nil {
		return nil
	}
	id := part.FunctionCall.ID
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	arguments, err := json.Marshal(part.FunctionCall.Args)
	if err != nil || part.FunctionCall.Args == nil {
		arguments = []byte("{}")
	}
	return &ai.ToolCall{
		ID:       id,
		Type:     "function",
		Function: ai.ToolCallFunction{Name: part.FunctionCall.Name, Arguments: string(arguments)},
	}
}

func usageToGeneric(usage *genai.GenerateContentResponseUsageMetadata) *ai.Usage {
	if usage == nil {
		return nil
	}
	return &ai.Usage{
		PromptTokens:     int(usage.PromptTokenCount),
		CompletionTokens: int(usage.CandidatesTokenCount),
		TotalTokens:      int(usage.TotalTokenCount),
	}
}

func normalizeFinishReason(reason genai.FinishReason, hasToolCalls bool) string {
	switch {
	case hasToolCalls:
		return ai.FinishReasonToolCalls
	case reason == genai.FinishReasonStop:
		return ai.FinishReasonStop
	case reason == genai.FinishReasonMaxTokens:
		return ai.FinishReasonLength
	default:
		return strings.ToLower(string(reason))
	}
}
