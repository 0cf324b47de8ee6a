package refine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/leofalp/aigoflow/providers/memory"
)

// Stage is a node of the loop's state machine.
type Stage string

const (
	StageStart      Stage = "start"
	StageGenerated  Stage = "generated"
	StageEvaluated  Stage = "evaluated"
	StageOptimized  Stage = "optimized"
	StageTerminated Stage = "terminated"
)

// transitions lists the legal successors of each stage.
var transitions = map[Stage][]Stage{
	StageStart:     {StageGenerated},
	StageGenerated: {StageEvaluated},
	StageEvaluated: {StageTerminated, StageOptimized},
	StageOptimized: {StageEvaluated},
}

// CanTransition reports whether the loop may move from one stage to another.
func CanTransition(from, to Stage) bool {
	return slices.Contains(transitions[from], to)
}

// Transition describes one executed step, with the state after it.
type Transition struct {
	From  Stage
	To    Stage
	State WorkflowState
}

// Snapshot is what the loop checkpoints after every transition.
type Snapshot struct {
	Stage Stage         `json:"stage"`
	State WorkflowState `json:"state"`
}

// DefaultParseRetries is the number of corrective re-prompts after an
// evaluation response fails to parse.
const DefaultParseRetries = 2

// Loop drives runs. It keeps no per-run state and may be reused, though two
// runs sharing a checkpoint thread would interleave their checkpoints.
type Loop struct {
	generator    Generator
	prompts      Prompts
	logger       *slog.Logger
	parseRetries int
	saver        memory.Saver
	threadID     string
	observer     func(Transition)
}

type Option func(*Loop)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithParseRetries sets how many corrective re-prompts an evaluation gets.
// Zero disables them.
func WithParseRetries(retries int) Option {
	return func(l *Loop) {
		l.parseRetries = retries
	}
}

// WithCheckpointer stores a Snapshot under threadID after every transition,
// which makes the run resumable with Resume.
func WithCheckpointer(saver memory.Saver, threadID string) Option {
	return func(l *Loop) {
		l.saver = saver
		l.threadID = threadID
	}
}

// WithObserver calls fn synchronously after every transition.
func WithObserver(fn func(Transition)) Option {
	return func(l *Loop) {
		l.observer = fn
	}
}

func New(generator Generator, prompts Prompts, opts ...Option) (*Loop, error) {
	if generator == nil {
		return nil, errors.New("refine: generator is nil")
	}
	if prompts == nil {
		return nil, errors.New("refine: prompts are nil")
	}

	loop := &Loop{
		generator:    generator,
		prompts:      prompts,
		logger:       slog.Default(),
		parseRetries: DefaultParseRetries,
	}
	for _, opt := range opts {
		opt(loop)
	}

	if loop.parseRetries < 0 {
		return nil, fmt.Errorf("refine: parse retries must not be negative, got %d", loop.parseRetries)
	}
	if loop.saver != nil && loop.threadID == "" {
		return nil, errors.New("refine: checkpointer needs a thread id")
	}
	if loop.logger == nil {
		loop.logger = slog.Default()
	}
	return loop, nil
}

// Run executes the loop from initial until it terminates. On failure the
// state is nil and the error wraps one of the package sentinels or the
// context error.
func (l *Loop) Run(ctx context.Context, initial WorkflowState) (*WorkflowState, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	initial.Artifact, initial.Feedback, initial.Verdict = "", "", ""

	return l.drive(ctx, StageStart, initial)
}

// Resume continues the run stored under the checkpoint thread. A finished
// run returns its final state without calling the model.
func (l *Loop) Resume(ctx context.Context) (*WorkflowState, error) {
	if l.saver == nil {
		return nil, errors.New("refine: resume needs a checkpointer")
	}

	snapshot, _, err := memory.Load[Snapshot](ctx, l.saver, l.threadID)
	if err != nil {
		return nil, fmt.Errorf("refine: load checkpoint: %w", err)
	}
	if _, known := transitions[snapshot.Stage]; !known && snapshot.Stage != StageTerminated {
		return nil, fmt.Errorf("%w: checkpoint has unknown stage %q", ErrInvalidState, snapshot.Stage)
	}
	if err := snapshot.State.Validate(); err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "resuming refinement", "thread_id", l.threadID, "stage", snapshot.Stage)
	return l.drive(ctx, snapshot.Stage, snapshot.State)
}

type stageFunc func(ctx context.Context, state WorkflowState) (Stage, Update, error)

func (l *Loop) drive(ctx context.Context, stage Stage, state WorkflowState) (*WorkflowState, error) {
	handlers := map[Stage]stageFunc{
		StageStart:     l.generate,
		StageGenerated: l.evaluate,
		StageOptimized: l.evaluate,
		StageEvaluated: l.route,
	}

	for stage != StageTerminated {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, update, err := handlers[stage](ctx, state)
		if err != nil {
			l.logger.ErrorContext(ctx, "refinement failed", "stage", stage, "error", err)
			return nil, err
		}
		if !CanTransition(stage, next) {
			return nil, fmt.Errorf("%w: illegal transition %s -> %s", ErrInvalidState, stage, next)
		}

		state = state.Apply(update)
		l.logger.DebugContext(ctx, "refinement transition",
			"from", stage,
			"to", next,
			"iteration", state.IterationCount,
			"verdict", state.Verdict,
		)

		if err := l.checkpoint(ctx, next, state); err != nil {
			return nil, err
		}
		if l.observer != nil {
			l.observer(Transition{From: stage, To: next, State: state})
		}
		stage = next
	}

	l.logger.InfoContext(ctx, "refinement finished",
		"verdict", state.Verdict,
		"iteration", state.IterationCount,
		"limit", state.IterationLimit,
	)
	return &state, nil
}

func (l *Loop) checkpoint(ctx context.Context, stage Stage, state WorkflowState) error {
	if l.saver == nil {
		return nil
	}
	if _, err := memory.Save(ctx, l.saver, l.threadID, Snapshot{Stage: stage, State: state}); err != nil {
		return fmt.Errorf("refine: checkpoint %s: %w", stage, err)
	}
	return nil
}

func (l *Loop) generate(ctx context.Context, state WorkflowState) (Stage, Update, error) {
	artifact, err := l.complete(ctx, l.prompts.Generate(state.TaskInput))
	if err != nil {
		return "", Update{}, fmt.Errorf("generate: %w", err)
	}
	return StageGenerated, Update{Artifact: &artifact}, nil
}

// route takes the revise branch through optimize so the table never holds a
// stage between deciding and rewriting.
func (l *Loop) route(ctx context.Context, state WorkflowState) (Stage, Update, error) {
	if Route(state) == DecisionTerminate {
		return StageTerminated, Update{}, nil
	}

	artifact, err := l.complete(ctx, l.prompts.Optimize(state))
	if err != nil {
		return "", Update{}, fmt.Errorf("optimize: %w", err)
	}
	next := state.IterationCount + 1
	return StageOptimized, Update{Artifact: &artifact, IterationCount: &next}, nil
}

// complete runs a free-text call and rejects blank output.
func (l *Loop) complete(ctx context.Context, prompt string) (string, error) {
	output, err := l.generator.Generate(ctx, Request{Prompt: prompt})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	output = strings.TrimSpace(output)
	if output == "" {
		return "", fmt.Errorf("%w: model returned empty content", ErrGeneration)
	}
	return output, nil
}

// evaluate asks for a schema-constrained verdict, re-prompting with the
// parse failure up to parseRetries times.
func (l *Loop) evaluate(ctx context.Context, state WorkflowState) (Stage, Update, error) {
	basePrompt := l.prompts.Evaluate(state)
	prompt := basePrompt

	var parseErr *EvaluationParseError
	for attempt := 1; attempt <= l.parseRetries+1; attempt++ {
		raw, err := l.generator.Generate(ctx, Request{Prompt: prompt, Schema: EvaluationSchema()})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", Update{}, ctxErr
			}
			return "", Update{}, fmt.Errorf("%w: %w", ErrEvaluation, err)
		}

		evaluation, err := ParseEvaluation(raw)
		if err == nil {
			return StageEvaluated, Update{Feedback: &evaluation.Feedback, Verdict: &evaluation.Verdict}, nil
		}

		parseErr = &EvaluationParseError{Raw: raw, Reason: err, Attempts: attempt}
		l.logger.WarnContext(ctx, "evaluation response rejected", "attempt", attempt, "error", err)
		prompt = l.prompts.Correct(basePrompt, raw, err)
	}
	return "", Update{}, parseErr
}
