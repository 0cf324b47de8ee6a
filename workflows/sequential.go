package workflows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/leofalp/aigoflow/core/client"
	"github.com/leofalp/aigoflow/patterns/graph"
)

// ErrEmptyInput is returned before any model call when the workflow input is blank.
var ErrEmptyInput = errors.New("workflows: input is empty")

// Chain is the state of a PromptChain run.
type Chain struct {
	Topic   string `json:"topic"`
	Outline string `json:"outline"`
	Post    string `json:"post"`
}

// complete is a graph node that fills a prompt template from the shared
// state and upstream outputs, then stores the reply under its own key.
func complete(key string, render func(ctx context.Context, input *graph.NodeInput) (string, error)) graph.NodeExecutorFunc {
	return func(ctx context.Context, input *graph.NodeInput) (*graph.NodeResult, error) {
		prompt, err := render(ctx, input)
		if err != nil {
			return nil, err
		}

		response, err := input.Client.SendMessage(ctx, prompt)
		if err != nil {
			return nil, err
		}
		content := strings.TrimSpace(response.Content)
		if err := input.SharedState.Set(ctx, key, content); err != nil {
			return nil, err
		}
		return &graph.NodeResult{Output: content, Usage: response.Usage}, nil
	}
}

func stateString(ctx context.Context, state graph.StateProvider, key string) (string, error) {
	value, exists, err := state.Get(ctx, key)
	if err != nil {
		return "", err
	}
	text, ok := value.(string)
	if !exists || !ok {
		return "", fmt.Errorf("state key %q is not set", key)
	}
	return text, nil
}

// Answer asks c a single question.
func Answer(ctx context.Context, c *client.Client, question string, opts ...graph.Option) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyInput
	}

	answer := complete("answer", func(ctx context.Context, input *graph.NodeInput) (string, error) {
		question, err := stateString(ctx, input.SharedState, "question")
		if err != nil {
			return "", err
		}
		return "Answer the following question, " + question, nil
	})

	g, err := graph.NewGraphBuilder[string](c, opts...).
		AddNode("answer", answer).
		Build()
	if err != nil {
		return "", err
	}

	result, err := g.Execute(ctx, map[string]any{"question": question})
	if err != nil {
		return "", err
	}
	return *result.Data, nil
}

// PromptChain writes an outline for topic and then a Twitter post from the
// topic and that outline.
func PromptChain(ctx context.Context, c *client.Client, topic string, opts ...graph.Option) (*Chain, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, ErrEmptyInput
	}

	outline := complete("outline", func(ctx context.Context, input *graph.NodeInput) (string, error) {
		topic, err := stateString(ctx, input.SharedState, "topic")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(
			"Generate a professional short description/outline for the given %s and create it in a manner that should be posted on Twitter.",
			topic,
		), nil
	})

	post := complete("post", func(ctx context.Context, input *graph.NodeInput) (string, error) {
		topic, err := stateString(ctx, input.SharedState, "topic")
		if err != nil {
			return "", err
		}
		outline, err := stateString(ctx, input.SharedState, "outline")
		if err != nil {
			return "", err
		}
		return heredoc.Docf(`
			Create a short and concise Twitter post based on the topic: %s
			and its outline/description: %s
		`, topic, outline), nil
	})

	state := graph.NewInMemoryStateProvider(nil)
	g, err := graph.NewGraphBuilder[string](c, append(opts, graph.WithStateProvider(state))...).
		AddNode("generate_outline", outline).
		AddNode("generate_post", post).
		AddEdge("generate_outline", "generate_post").
		Build()
	if err != nil {
		return nil, err
	}

	result, err := g.Execute(ctx, map[string]any{"topic": topic})
	if err != nil {
		return nil, err
	}

	chain := &Chain{Topic: topic, Post: *result.Data}
	if chain.Outline, err = stateString(ctx, state, "outline"); err != nil {
		return nil, err
	}
	return chain, nil
}
