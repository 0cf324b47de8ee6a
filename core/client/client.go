package client

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/leofalp/aigoflow/internal/jsonschema"
	"github.com/leofalp/aigoflow/providers/ai"
	"github.com/leofalp/aigoflow/providers/tool"
)

// Client sends requests to a provider through its middleware chain. It holds
// no conversation state and is safe for concurrent use.
type Client struct {
	provider ai.Provider
	options  ClientOptions
	catalog  *tool.Catalog
	send     SendFunc
	stream   StreamFunc
}

// New builds a Client. It fails on a nil provider, a middleware entry without
// a Send function, or a negative tool iteration limit.
func New(provider ai.Provider, opts ...func(*ClientOptions)) (*Client, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}

	options := ClientOptions{MaxToolIterations: DefaultMaxToolIterations}
	for _, opt := range opts {
		opt(&options)
	}

	if options.MaxToolIterations < 0 {
		return nil, fmt.Errorf("client: max tool iterations must not be negative, got %d", options.MaxToolIterations)
	}
	for i, middleware := range options.Middlewares {
		if middleware.Send == nil {
			return nil, fmt.Errorf("client: middleware at index %d has a nil Send function", i)
		}
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	return &Client{
		provider: provider,
		options:  options,
		catalog:  tool.NewCatalogWithTools(options.Tools...),
		send:     buildSendChain(provider, options.Middlewares),
		stream:   buildStreamChain(provider, options.Middlewares),
	}, nil
}

// Provider returns the backend the client was built with.
func (c *Client) Provider() ai.Provider {
	return c.provider
}

// SendMessage sends prompt as a single user turn.
func (c *Client) SendMessage(ctx context.Context, prompt string, opts ...SendMessageOption) (*ai.ChatResponse, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	return c.Send(ctx, []ai.Message{{Role: ai.RoleUser, Content: prompt}}, opts...)
}

// Send performs one completion over history. Tool calls in the response are
// returned, not executed; see RunTools.
func (c *Client) Send(ctx context.Context, history []ai.Message, opts ...SendMessageOption) (*ai.ChatResponse, error) {
	response, err := c.send(ctx, c.buildRequest(history, opts))
	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, fmt.Errorf("client: provider returned no response")
	}
	return response, nil
}

func (c *Client) StreamMessage(ctx context.Context, prompt string, opts ...SendMessageOption) (*ai.ChatStream, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	return c.Stream(ctx, []ai.Message{{Role: ai.RoleUser, Content: prompt}}, opts...)
}

// Stream is the streaming form of Send. The returned stream must be consumed.
func (c *Client) Stream(ctx context.Context, history []ai.Message, opts ...SendMessageOption) (*ai.ChatStream, error) {
	return c.stream(ctx, c.buildRequest(history, opts))
}

func (c *Client) buildRequest(history []ai.Message, opts []SendMessageOption) ai.ChatRequest {
	requestOptions := sendMessageOptions{
		model:        c.options.DefaultModel,
		outputSchema: c.options.DefaultOutputSchema,
	}
	for _, opt := range opts {
		opt(&requestOptions)
	}

	request := ai.ChatRequest{
		Model:            requestOptions.model,
		Messages:         slices.Clone(history),
		SystemPrompt:     c.options.SystemPrompt,
		GenerationConfig: c.options.GenerationConfig,
	}
	if !requestOptions.noTools && c.catalog.Size() > 0 {
		request.Tools = c.catalog.Descriptions()
	}
	if requestOptions.outputSchema != nil {
		request.ResponseFormat = &ai.ResponseFormat{
			OutputSchema: requestOptions.outputSchema,
			Name:         "response",
			Strict:       requestOptions.strict,
		}
	}
	return request
}

// withDefaultOutputSchema returns a copy of c that requests schema by default.
func (c *Client) withDefaultOutputSchema(schema *jsonschema.Schema) *Client {
	clone := *c
	clone.options.DefaultOutputSchema = schema
	return &clone
}
