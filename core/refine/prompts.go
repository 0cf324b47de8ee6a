package refine

import "fmt"

// Prompts renders the prompt of each stage. Implementations carry the task
// specific instructions and acceptance criteria.
type Prompts interface {
	Generate(task string) string
	Evaluate(state WorkflowState) string
	Optimize(state WorkflowState) string
	// Correct asks again after an evaluate response failed to parse.
	Correct(evaluatePrompt, raw string, reason error) string
}

// CorrectionPrompt is a task-neutral Correct implementation.
func CorrectionPrompt(evaluatePrompt, raw string, reason error) string {
	return fmt.Sprintf(`%s

Your previous reply could not be used (%v):
%s

Reply again with only a JSON object of the form {"feedback": "<one paragraph>", "verdict": "accepted" | "needs_revision"}.`,
		evaluatePrompt, reason, raw)
}
