package refine

import (
	"fmt"
	"strings"
)

// Verdict is the outcome of one evaluation.
type Verdict string

const (
	VerdictAccepted      Verdict = "accepted"
	VerdictNeedsRevision Verdict = "needs_revision"
)

// ParseVerdict normalizes the spellings models commonly produce, such as
// "Approved" or "re-iterate", onto the two verdicts.
func ParseVerdict(raw string) (Verdict, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	switch normalized {
	case "accepted", "accept", "approved", "approve":
		return VerdictAccepted, nil
	case "needs_revision", "needs_revisions", "revise", "revision", "re_iterate", "reiterate", "rejected":
		return VerdictNeedsRevision, nil
	default:
		return "", fmt.Errorf("unknown verdict %q", raw)
	}
}

func (v Verdict) Valid() bool {
	return v == VerdictAccepted || v == VerdictNeedsRevision
}

// WorkflowState is the data threaded through one loop run.
type WorkflowState struct {
	TaskInput      string  `json:"task_input"`
	Artifact       string  `json:"artifact,omitempty"`
	Feedback       string  `json:"feedback,omitempty"`
	Verdict        Verdict `json:"verdict,omitempty"` // empty until the first evaluation
	IterationCount int     `json:"iteration_count"`
	IterationLimit int     `json:"iteration_limit"`
}

// NewState returns the initial state for a run.
func NewState(task string, iterationCount, iterationLimit int) WorkflowState {
	return WorkflowState{
		TaskInput:      task,
		IterationCount: iterationCount,
		IterationLimit: iterationLimit,
	}
}

// Validate checks the preconditions of a run. A blank task yields
// ErrEmptyTask; anything else yields ErrInvalidState.
func (s WorkflowState) Validate() error {
	if strings.TrimSpace(s.TaskInput) == "" {
		return ErrEmptyTask
	}
	if s.IterationCount < 0 {
		return fmt.Errorf("%w: iteration count %d is negative", ErrInvalidState, s.IterationCount)
	}
	if s.IterationLimit < s.IterationCount {
		return fmt.Errorf("%w: iteration limit %d is below iteration count %d", ErrInvalidState, s.IterationLimit, s.IterationCount)
	}
	if s.Verdict != "" && !s.Verdict.Valid() {
		return fmt.Errorf("%w: unknown verdict %q", ErrInvalidState, s.Verdict)
	}
	return nil
}

// Update is the partial result of one stage. Nil fields leave the state as is.
type Update struct {
	Artifact       *string
	Feedback       *string
	Verdict        *Verdict
	IterationCount *int
}

// Apply returns s with u merged in.
func (s WorkflowState) Apply(u Update) WorkflowState {
	if u.Artifact != nil {
		s.Artifact = *u.Artifact
	}
	if u.Feedback != nil {
		s.Feedback = *u.Feedback
	}
	if u.Verdict != nil {
		s.Verdict = *u.Verdict
	}
	if u.IterationCount != nil {
		s.IterationCount = *u.IterationCount
	}
	return s
}

// Decision is the outcome of Route.
type Decision int

const (
	DecisionRevise Decision = iota
	DecisionTerminate
)

func (d Decision) String() string {
	if d == DecisionTerminate {
		return "terminate"
	}
	return "revise"
}

// Route decides what follows an evaluation. It depends only on s.
func Route(s WorkflowState) Decision {
	if s.Verdict == VerdictAccepted || s.IterationCount >= s.IterationLimit {
		return DecisionTerminate
	}
	return DecisionRevise
}
