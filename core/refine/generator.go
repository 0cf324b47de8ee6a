package refine

import (
	"context"

	"github.com/leofalp/aigoflow/core/client"
	"github.com/leofalp/aigoflow/internal/jsonschema"
)

// Request is one call to the model. A nil Schema asks for free text.
type Request struct {
	Prompt string
	Schema *jsonschema.Schema
}

// Generator is the text generation capability the loop depends on.
type Generator interface {
	Generate(ctx context.Context, request Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, request Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, request Request) (string, error) {
	return f(ctx, request)
}

// ClientGenerator sends every request as a single user message through a
// client, so the client's retry and logging middlewares apply.
type ClientGenerator struct {
	Client *client.Client
}

func (g ClientGenerator) Generate(ctx context.Context, request Request) (string, error) {
	var opts []client.SendMessageOption
	if request.Schema != nil {
		opts = append(opts, client.WithOutputSchema(request.Schema))
	}

	response, err := g.Client.SendMessage(ctx, request.Prompt, opts...)
	if err != nil {
		return "", err
	}
	return response.Content, nil
}
