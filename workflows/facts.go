package workflows

import (
	"context"
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/leofalp/aigoflow/core/client"
	"github.com/leofalp/aigoflow/patterns/graph"
)

// Fact is one rated fact about a person.
type Fact struct {
	Fact   string `json:"fact" jsonschema:"required,description=A fact for the given person."`
	Rating int    `json:"rating" jsonschema:"required,description=Give rating for that person out of 10.,minimum=0,maximum=10"`
}

// Validate rejects blank facts and ratings outside 0..10.
func (f Fact) Validate() error {
	if strings.TrimSpace(f.Fact) == "" {
		return fmt.Errorf("fact is empty")
	}
	if f.Rating < 0 || f.Rating > 10 {
		return fmt.Errorf("rating %d is outside 0..10", f.Rating)
	}
	return nil
}

// FactsReport collects the three facts of ScientistFacts. Ratings holds one
// rating per fact in completion order, since the facts are produced in
// parallel.
type FactsReport struct {
	Person            string `json:"person"`
	FamilyFact        string `json:"family_fact"`
	RandomFact        string `json:"random_fact"`
	BestInventionFact string `json:"best_invention_fact"`
	Ratings           []int  `json:"individual_ratings"`
}

const ratingsKey = "individual_ratings"

var factPrompts = map[string]string{
	"family_fact_with_rating":         "Give me a family fact for the given scientist mentioned & give me a rating based on the relations of that person with their family.",
	"random_fact_with_rating":         "Give me a random & surprising fact for the given scientist mentioned & give me a rating based on the sanity of that person in its later life.",
	"best_invention_fact_with_rating": "Give me a best invention fact that this person has invented for the given scientist mentioned & give me a rating based on how great the invention was in the history.",
}

// ratedFact asks for one Fact and appends its rating to the shared list.
func ratedFact(instruction string) graph.NodeExecutorFunc {
	return func(ctx context.Context, input *graph.NodeInput) (*graph.NodeResult, error) {
		person, err := stateString(ctx, input.SharedState, "person")
		if err != nil {
			return nil, err
		}

		facts := client.FromBaseClient[Fact](input.Client)
		response, err := facts.SendMessage(ctx, heredoc.Docf(`
			%s
			%s
			Reply with a JSON object with the fields "fact" and "rating" (an integer from 0 to 10).
		`, instruction, person))
		if err != nil {
			return nil, err
		}
		if err := response.Data.Validate(); err != nil {
			return nil, err
		}

		if err := input.SharedState.Append(ctx, ratingsKey, response.Data.Rating); err != nil {
			return nil, err
		}
		return &graph.NodeResult{Output: *response.Data, Usage: response.Usage}, nil
	}
}

// ScientistFacts asks for three rated facts about person in parallel.
func ScientistFacts(ctx context.Context, c *client.Client, person string, opts ...graph.Option) (*FactsReport, error) {
	if strings.TrimSpace(person) == "" {
		return nil, ErrEmptyInput
	}

	collect := graph.NodeExecutorFunc(func(ctx context.Context, input *graph.NodeInput) (*graph.NodeResult, error) {
		ratings, err := graph.ListOf[int](ctx, input.SharedState, ratingsKey)
		if err != nil {
			return nil, err
		}

		report := FactsReport{Person: person, Ratings: ratings}
		for nodeID, target := range map[string]*string{
			"family_fact_with_rating":         &report.FamilyFact,
			"random_fact_with_rating":         &report.RandomFact,
			"best_invention_fact_with_rating": &report.BestInventionFact,
		} {
			upstream := input.UpstreamResults[nodeID]
			if upstream == nil {
				return nil, fmt.Errorf("node %s has no result", nodeID)
			}
			fact, ok := upstream.Output.(Fact)
			if !ok {
				return nil, fmt.Errorf("node %s produced %T", nodeID, upstream.Output)
			}
			*target = fact.Fact
		}
		return &graph.NodeResult{Output: report}, nil
	})

	builder := graph.NewGraphBuilder[FactsReport](c, opts...)
	for _, nodeID := range []string{"family_fact_with_rating", "random_fact_with_rating", "best_invention_fact_with_rating"} {
		builder.AddNode(nodeID, ratedFact(factPrompts[nodeID])).AddEdge(nodeID, "collect")
	}
	g, err := builder.AddNode("collect", collect).Build()
	if err != nil {
		return nil, err
	}

	// A fresh ratings list per run; Append would otherwise extend the last one.
	result, err := g.Execute(ctx, map[string]any{"person": person, ratingsKey: []any{}})
	if err != nil {
		return nil, err
	}
	return result.Data, nil
}
