package client

import (
	"errors"
	"fmt"
)

var (
	ErrNilProvider       = errors.New("client: provider is nil")
	ErrEmptyPrompt       = errors.New("client: prompt is empty")
	ErrMaxToolIterations = errors.New("client: tool iteration limit reached")
)

// ToolError reports a tool failure when the client is configured to abort on
// tool errors instead of reporting them back to the model.
type ToolError struct {
	Tool       string
	ToolCallID string
	Err        error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("client: tool %q (call %s): %v", e.Tool, e.ToolCallID, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
