package workflows

import (
	"context"
	"log/slog"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/leofalp/aigoflow/core/client"
	"github.com/leofalp/aigoflow/core/refine"
)

const (
	DefaultStartIteration = 1
	DefaultMaxIterations  = 5
)

// Outreach renders the prompts of the campaign email loop. The evaluator is
// asked to auto-reject Q&A emails, emails over 100 words and weak closings.
type Outreach struct{}

var _ refine.Prompts = Outreach{}

func (Outreach) Generate(campaign string) string {
	return heredoc.Docf(`
		Generate a 100 words professional email after considering the campaign details provided below.

		%s
	`, campaign)
}

func (Outreach) Evaluate(state refine.WorkflowState) string {
	return heredoc.Docf(`
		Evaluate the following email.
		%s

		Use the criteria below to evaluate the email:

		1. Originality: Is this fresh, or have you seen it a hundred times before?
		2. Punchiness: Is it short, sharp, and scroll-stopping?
		3. Virality Potential: Would people respond or open it?
		4. Format: Is it a well-formed email (not a setup-punchline email, not a Q&A email, and under 100 words)?

		Auto-reject if:
		- It's written in question-answer format (e.g., "Why did..." or "What happens when...")
		- It exceeds 100 words
		- It reads like a traditional setup email
		- It ends with generic, throwaway, or deflating lines that weaken the professionalism.

		Respond ONLY with a JSON object:
		- "verdict": "accepted" or "needs_revision"
		- "feedback": one paragraph explaining the strengths and weaknesses
	`, state.Artifact)
}

func (Outreach) Optimize(state refine.WorkflowState) string {
	return heredoc.Docf(`
		Optimize and improve the email based on the feedback.
		feedback: %s

		campaign_details: %s
		original email: %s

		Re-write it as a concise, viral-worthy email that people tend to read and open. Avoid Q&A style and stay under 100 words.
	`, state.Feedback, state.TaskInput, state.Artifact)
}

func (Outreach) Correct(evaluatePrompt, raw string, reason error) string {
	return refine.CorrectionPrompt(evaluatePrompt, raw, reason)
}

// EmailOptions tunes RefineEmail.
type EmailOptions struct {
	StartIteration int
	MaxIterations  int
	ParseRetries   int
	Logger         *slog.Logger
	// LoopOptions are passed to refine.New after the options above, for
	// example refine.WithCheckpointer.
	LoopOptions []refine.Option
}

// EmailOption configures RefineEmail.
type EmailOption func(*EmailOptions)

func WithIterations(start, limit int) EmailOption {
	return func(o *EmailOptions) {
		o.StartIteration = start
		o.MaxIterations = limit
	}
}

func WithParseRetries(retries int) EmailOption {
	return func(o *EmailOptions) {
		o.ParseRetries = retries
	}
}

func WithEmailLogger(logger *slog.Logger) EmailOption {
	return func(o *EmailOptions) {
		o.Logger = logger
	}
}

func WithLoopOptions(opts ...refine.Option) EmailOption {
	return func(o *EmailOptions) {
		o.LoopOptions = append(o.LoopOptions, opts...)
	}
}

// RefineEmail drafts, evaluates and rewrites a campaign email until the
// evaluator accepts it or the iteration budget runs out. By default the run
// starts at iteration 1 with a limit of 5.
func RefineEmail(ctx context.Context, c *client.Client, campaign string, opts ...EmailOption) (*refine.WorkflowState, error) {
	options := EmailOptions{
		StartIteration: DefaultStartIteration,
		MaxIterations:  DefaultMaxIterations,
		ParseRetries:   refine.DefaultParseRetries,
		Logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	loopOptions := append([]refine.Option{
		refine.WithParseRetries(options.ParseRetries),
		refine.WithLogger(options.Logger),
	}, options.LoopOptions...)

	loop, err := refine.New(refine.ClientGenerator{Client: c}, Outreach{}, loopOptions...)
	if err != nil {
		return nil, err
	}
	return loop.Run(ctx, refine.NewState(campaign, options.StartIteration, options.MaxIterations))
}
