package client

import (
	"context"
	"fmt"

	"github.com/leofalp/aigoflow/core/parse"
	"github.com/leofalp/aigoflow/internal/jsonschema"
	"github.com/leofalp/aigoflow/providers/ai"
)

// StructuredClient requests JSON matching the schema of T on every call and
// decodes the reply into T. It suits single-shot extraction; tool loops stay
// on the base Client.
//
//	type Fact struct {
//	    Fact   string `json:"fact" jsonschema:"required"`
//	    Rating int    `json:"rating" jsonschema:"required,minimum=0,maximum=10"`
//	}
//
//	facts, _ := client.NewStructured[Fact](provider)
//	resp, err := facts.SendMessage(ctx, "Tell me a fact about Semmelweis")
//	fmt.Println(resp.Data.Fact, resp.Data.Rating)
type StructuredClient[T any] struct {
	Client
	schema *jsonschema.Schema
}

// FromBaseClient wraps base. The schema is generated once here.
func FromBaseClient[T any](base *Client) *StructuredClient[T] {
	if base == nil {
		return nil
	}
	schema := jsonschema.GenerateJSONSchema[T]()
	return &StructuredClient[T]{
		Client: *base.withDefaultOutputSchema(schema),
		schema: schema,
	}
}

func NewStructured[T any](provider ai.Provider, opts ...func(*ClientOptions)) (*StructuredClient[T], error) {
	base, err := New(provider, opts...)
	if err != nil {
		return nil, err
	}
	return FromBaseClient[T](base), nil
}

func (sc *StructuredClient[T]) SendMessage(ctx context.Context, prompt string, opts ...SendMessageOption) (*ai.StructuredChatResponse[T], error) {
	resp, err := sc.Client.SendMessage(ctx, prompt, opts...)
	if err != nil {
		return nil, err
	}
	return sc.parseResponse(resp)
}

func (sc *StructuredClient[T]) Send(ctx context.Context, history []ai.Message, opts ...SendMessageOption) (*ai.StructuredChatResponse[T], error) {
	resp, err := sc.Client.Send(ctx, history, opts...)
	if err != nil {
		return nil, err
	}
	return sc.parseResponse(resp)
}

func (sc *StructuredClient[T]) Schema() *jsonschema.Schema {
	return sc.schema
}

func (sc *StructuredClient[T]) parseResponse(resp *ai.ChatResponse) (*ai.StructuredChatResponse[T], error) {
	data, err := parse.ParseStringAs[T](resp.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse structured output: %w", err)
	}

	return &ai.StructuredChatResponse[T]{
		ChatResponse: *resp,
		Data:         &data,
	}, nil
}
