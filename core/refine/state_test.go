package refine

import (
	"errors"
	"testing"
)

func TestParseVerdict(t *testing.T) {
	testCases := []struct {
		raw      string
		expected Verdict
		wantErr  bool
	}{
		{raw: "accepted", expected: VerdictAccepted},
		{raw: "  Approved ", expected: VerdictAccepted},
		{raw: "needs_revision", expected: VerdictNeedsRevision},
		{raw: "Needs Revision", expected: VerdictNeedsRevision},
		{raw: "re-iterate", expected: VerdictNeedsRevision},
		{raw: "REJECTED", expected: VerdictNeedsRevision},
		{raw: "maybe", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.raw, func(t *testing.T) {
			verdict, err := ParseVerdict(testCase.raw)
			if testCase.wantErr {
				if err == nil {
					t.Fatalf("expected error, got verdict %q", verdict)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if verdict != testCase.expected {
				t.Errorf("expected %q, got %q", testCase.expected, verdict)
			}
		})
	}
}

func TestWorkflowState_Validate(t *testing.T) {
	testCases := []struct {
		name     string
		state    WorkflowState
		expected error
	}{
		{name: "valid", state: NewState("write an email", 1, 5)},
		{name: "limit equals count", state: NewState("task", 3, 3)},
		{name: "empty task", state: NewState("", 1, 3), expected: ErrEmptyTask},
		{name: "blank task", state: NewState(" \n\t", 1, 3), expected: ErrEmptyTask},
		{name: "negative count", state: NewState("task", -1, 3), expected: ErrInvalidState},
		{name: "limit below count", state: NewState("task", 4, 3), expected: ErrInvalidState},
		{name: "unknown verdict", state: WorkflowState{TaskInput: "task", IterationLimit: 1, Verdict: "maybe"}, expected: ErrInvalidState},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := testCase.state.Validate()
			if testCase.expected == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, testCase.expected) {
				t.Errorf("expected %v, got %v", testCase.expected, err)
			}
		})
	}
}

func TestErrEmptyTask_IsGenerationError(t *testing.T) {
	if !errors.Is(ErrEmptyTask, ErrGeneration) {
		t.Error("ErrEmptyTask should match ErrGeneration")
	}
}

func TestWorkflowState_Apply(t *testing.T) {
	artifact := "draft"
	verdict := VerdictAccepted

	state := NewState("task", 1, 3)
	updated := state.Apply(Update{Artifact: &artifact, Verdict: &verdict})

	if updated.Artifact != "draft" || updated.Verdict != VerdictAccepted {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.IterationCount != 1 || updated.Feedback != "" {
		t.Errorf("nil fields should be left alone: %+v", updated)
	}
	if state.Artifact != "" {
		t.Error("Apply must not modify the receiver")
	}
}

func TestRoute(t *testing.T) {
	testCases := []struct {
		name     string
		state    WorkflowState
		expected Decision
	}{
		{name: "accepted below limit", state: WorkflowState{Verdict: VerdictAccepted, IterationCount: 1, IterationLimit: 3}, expected: DecisionTerminate},
		{name: "accepted at limit", state: WorkflowState{Verdict: VerdictAccepted, IterationCount: 3, IterationLimit: 3}, expected: DecisionTerminate},
		{name: "revision below limit", state: WorkflowState{Verdict: VerdictNeedsRevision, IterationCount: 1, IterationLimit: 3}, expected: DecisionRevise},
		{name: "revision at limit", state: WorkflowState{Verdict: VerdictNeedsRevision, IterationCount: 3, IterationLimit: 3}, expected: DecisionTerminate},
		{name: "single iteration budget", state: WorkflowState{Verdict: VerdictNeedsRevision, IterationCount: 1, IterationLimit: 1}, expected: DecisionTerminate},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			first := Route(testCase.state)
			if first != testCase.expected {
				t.Errorf("expected %s, got %s", testCase.expected, first)
			}
			if second := Route(testCase.state); second != first {
				t.Errorf("Route is not stable: %s then %s", first, second)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	legal := [][2]Stage{
		{StageStart, StageGenerated},
		{StageGenerated, StageEvaluated},
		{StageEvaluated, StageTerminated},
		{StageEvaluated, StageOptimized},
		{StageOptimized, StageEvaluated},
	}
	for _, pair := range legal {
		if !CanTransition(pair[0], pair[1]) {
			t.Errorf("expected %s -> %s to be legal", pair[0], pair[1])
		}
	}

	illegal := [][2]Stage{
		{StageStart, StageEvaluated},
		{StageGenerated, StageOptimized},
		{StageOptimized, StageTerminated},
		{StageTerminated, StageStart},
	}
	for _, pair := range illegal {
		if CanTransition(pair[0], pair[1]) {
			t.Errorf("expected %s -> %s to be illegal", pair[0], pair[1])
		}
	}
}
