package client

import (
	"log/slog"

	"github.com/leofalp/aigoflow/internal/jsonschema"
	"github.com/leofalp/aigoflow/providers/ai"
	"github.com/leofalp/aigoflow/providers/tool"
)

// DefaultMaxToolIterations bounds the tool loop when no limit is configured.
const DefaultMaxToolIterations = 5

// ClientOptions is filled by the With* functions passed to New.
type ClientOptions struct {
	DefaultModel        string
	SystemPrompt        string
	Tools               []tool.GenericTool
	Middlewares         []MiddlewareConfig
	GenerationConfig    *ai.GenerationConfig
	DefaultOutputSchema *jsonschema.Schema
	Logger              *slog.Logger
	MaxToolIterations   int
	AbortOnToolError    bool
}

func WithDefaultModel(model string) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.DefaultModel = model
	}
}

func WithSystemPrompt(prompt string) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.SystemPrompt = prompt
	}
}

// WithTools makes tools available to the model. Later calls add to the set.
func WithTools(tools ...tool.GenericTool) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Tools = append(o.Tools, tools...)
	}
}

// WithMiddleware appends middlewares; the first one given is the outermost.
func WithMiddleware(middlewares ...MiddlewareConfig) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Middlewares = append(o.Middlewares, middlewares...)
	}
}

func WithGenerationConfig(config ai.GenerationConfig) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.GenerationConfig = &config
	}
}

func WithLogger(logger *slog.Logger) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Logger = logger
	}
}

// WithMaxToolIterations bounds how many tool-calling rounds RunTools allows.
func WithMaxToolIterations(iterations int) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.MaxToolIterations = iterations
	}
}

// WithAbortOnToolError makes RunTools fail with a *ToolError instead of
// sending the failure back to the model.
func WithAbortOnToolError() func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.AbortOnToolError = true
	}
}

// SendMessageOption adjusts a single request.
type SendMessageOption func(*sendMessageOptions)

type sendMessageOptions struct {
	model        string
	outputSchema *jsonschema.Schema
	strict       bool
	noTools      bool
}

// WithOutputSchema asks for JSON output matching schema on this request only.
func WithOutputSchema(schema *jsonschema.Schema) SendMessageOption {
	return func(o *sendMessageOptions) {
		o.outputSchema = schema
	}
}

// WithStrictSchema asks the provider to enforce the output schema exactly.
// OpenAI's strict mode only accepts schemas whose objects all forbid
// additional properties and list every property as required.
func WithStrictSchema() SendMessageOption {
	return func(o *sendMessageOptions) {
		o.strict = true
	}
}

func WithModel(model string) SendMessageOption {
	return func(o *sendMessageOptions) {
		o.model = model
	}
}

// WithoutTools omits the client's tools from this request.
func WithoutTools() SendMessageOption {
	return func(o *sendMessageOptions) {
		o.noTools = true
	}
}
