package ai

import (
	"encoding/json"

	"github.com/leofalp/aigoflow/internal/jsonschema"
)

/*
	##### REQUEST #####
*/

// ChatRequest is a single completion request. SystemPrompt is carried apart
// from Messages because every backend places it differently on the wire.
type ChatRequest struct {
	Model            string            `json:"model,omitempty"`
	Messages         []Message         `json:"messages"`
	SystemPrompt     string            `json:"system_prompt,omitempty"`
	Tools            []ToolDescription `json:"tools,omitempty"`
	ResponseFormat   *ResponseFormat   `json:"response_format,omitempty"`
	GenerationConfig *GenerationConfig `json:"generation_config,omitempty"`
}

type ToolDescription struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// Message is one turn of a conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content,omitempty"`

	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // role=assistant
	ToolCallID string     `json:"tool_call_id,omitempty"` // role=tool
	Name       string     `json:"name,omitempty"`         // role=tool

	Refusal string `json:"refusal,omitempty"`
}

type GenerationConfig struct {
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"` // [0..2]
	TopP        float32 `json:"top_p,omitempty"`       // ignored by backends without nucleus sampling
}

// ResponseFormat asks the backend for JSON output. With a nil OutputSchema the
// backend is only asked for a JSON object.
type ResponseFormat struct {
	OutputSchema *jsonschema.Schema `json:"output_schema,omitempty"`
	Name         string             `json:"name,omitempty"`
	Strict       bool               `json:"strict,omitempty"`
}

/*
	##### RESPONSE #####
*/

type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Add accumulates other into u. A nil receiver is a no-op.
func (u *Usage) Add(other *Usage) {
	if u == nil || other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ChatResponse is the normalized result of a completion.
type ChatResponse struct {
	Id           string     `json:"id"`
	Model        string     `json:"model"`
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        *Usage     `json:"usage,omitempty"`
	Refusal      string     `json:"refusal,omitempty"`
}

// Message converts the response into the assistant turn to append to a history.
func (r *ChatResponse) Message() Message {
	return Message{
		Role:      RoleAssistant,
		Content:   r.Content,
		ToolCalls: r.ToolCalls,
		Refusal:   r.Refusal,
	}
}

// StructuredChatResponse pairs a raw response with its decoded payload.
type StructuredChatResponse[T any] struct {
	ChatResponse
	Data *T
}

// Normalized finish reasons. Backends map their own values onto these.
const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
	FinishReasonLength    = "length"
)

/*
	##### TOOLS #####
*/

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON
}

// ToolResult is the envelope sent back to the model after a tool ran, so a
// failure reads the same way regardless of which tool produced it.
type ToolResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"` // machine-readable code when Success is false
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func NewToolResultSuccess(data any) ToolResult {
	return ToolResult{Success: true, Data: data}
}

// NewToolResultError builds a failed result. errorType is a short code such as
// "tool_not_found"; message is shown to the model.
func NewToolResultError(errorType, message string) ToolResult {
	return ToolResult{Success: false, Error: errorType, Message: message}
}

func (tr ToolResult) ToJSON() (string, error) {
	bytes, err := json.Marshal(tr)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// MessageRole is the author of a Message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)
