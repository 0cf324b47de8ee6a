package refine

import (
	"errors"
	"fmt"
)

var (
	// ErrGeneration covers a failed or empty generate or optimize call.
	ErrGeneration = errors.New("refine: generation failed")

	// ErrEmptyTask is returned before any model call when the task is blank.
	ErrEmptyTask = fmt.Errorf("%w: task input is empty", ErrGeneration)

	// ErrEvaluation covers a failed evaluation call.
	ErrEvaluation = errors.New("refine: evaluation failed")

	// ErrEvaluationParse is matched by *EvaluationParseError.
	ErrEvaluationParse = errors.New("refine: evaluation response does not match schema")

	ErrInvalidState = errors.New("refine: invalid workflow state")
)

// EvaluationParseError is returned when no evaluation attempt produced a
// response matching the evaluation schema.
type EvaluationParseError struct {
	// Raw is the last response received.
	Raw string
	// Reason is why Raw was rejected.
	Reason error
	// Attempts counts evaluation calls, corrective ones included.
	Attempts int
}

func (e *EvaluationParseError) Error() string {
	return fmt.Sprintf("%v after %d attempt(s): %v", ErrEvaluationParse, e.Attempts, e.Reason)
}

func (e *EvaluationParseError) Unwrap() []error {
	return []error{ErrEvaluationParse, e.Reason}
}
