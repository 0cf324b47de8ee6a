package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/leofalp/aigoflow/core/parse"
	"github.com/leofalp/aigoflow/internal/jsonschema"
	"github.com/leofalp/aigoflow/providers/ai"
)

// Tool binds a name and description to a typed function. The parameter schema
// sent to the model is generated from I.
type Tool[I, O any] struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Function    func(ctx context.Context, input I) (O, error)

	logger *slog.Logger
}

// GenericTool is the type-erased view of a Tool used by catalogs and clients.
type GenericTool interface {
	ToolInfo() ai.ToolDescription

	// Call decodes inputJson into the tool input, runs the tool and returns
	// its JSON-encoded output.
	Call(ctx context.Context, inputJson string) (string, error)
}

type funcToolOptions struct {
	Description string
	Logger      *slog.Logger
}

// WithDescription sets the description the model sees when choosing tools.
func WithDescription(description string) func(tool *funcToolOptions) {
	return func(s *funcToolOptions) {
		s.Description = description
	}
}

func WithLogger(logger *slog.Logger) func(tool *funcToolOptions) {
	return func(s *funcToolOptions) {
		s.Logger = logger
	}
}

func NewTool[I, O any](name string, function func(ctx context.Context, input I) (O, error), options ...func(tool *funcToolOptions)) *Tool[I, O] {
	toolOptions := &funcToolOptions{Logger: slog.Default()}
	for _, option := range options {
		option(toolOptions)
	}

	return &Tool[I, O]{
		Name:        name,
		Description: toolOptions.Description,
		Parameters:  jsonschema.GenerateJSONSchema[I](),
		Function:    function,
		logger:      toolOptions.Logger,
	}
}

func (t *Tool[I, O]) ToolInfo() ai.ToolDescription {
	return ai.ToolDescription{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
	}
}

// Call parses the model-supplied arguments leniently, since models often wrap
// or slightly malform JSON, then runs the function.
func (t *Tool[I, O]) Call(ctx context.Context, inputJson string) (string, error) {
	logger := t.logger
	if logger == nil {
		logger = slog.Default()
	}

	input, err := parse.ParseStringAs[I](inputJson)
	if err != nil {
		return "", fmt.Errorf("tool %s: parse input: %w", t.Name, err)
	}

	start := time.Now()
	output, err := t.Function(ctx, input)
	elapsed := time.Since(start)
	if err != nil {
		logger.DebugContext(ctx, "tool failed", "tool", t.Name, "duration", elapsed, "error", err)
		return "", fmt.Errorf("tool %s: %w", t.Name, err)
	}
	logger.DebugContext(ctx, "tool completed", "tool", t.Name, "duration", elapsed)

	encoded, err := json.Marshal(output)
	if err != nil {
		return "", fmt.Errorf("tool %s: encode output: %w", t.Name, err)
	}
	return string(encoded), nil
}
