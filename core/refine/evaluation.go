package refine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leofalp/aigoflow/core/parse"
	"github.com/leofalp/aigoflow/internal/jsonschema"
)

// Evaluation is the typed result of one evaluate call.
type Evaluation struct {
	Feedback string  `json:"feedback" jsonschema:"required,description=One paragraph on the strengths and weaknesses of the draft"`
	Verdict  Verdict `json:"verdict" jsonschema:"required,enum=accepted,enum=needs_revision"`
}

var evaluationSchema = jsonschema.GenerateJSONSchema[Evaluation]()

// EvaluationSchema is the schema sent with every evaluate call.
func EvaluationSchema() *jsonschema.Schema {
	return evaluationSchema
}

// wireEvaluation keeps the verdict as text so aliases can be normalized.
type wireEvaluation struct {
	Feedback string `json:"feedback"`
	Verdict  string `json:"verdict"`
}

// ParseEvaluation decodes a raw evaluate response. Fenced or slightly
// malformed JSON is accepted; a missing field or unknown verdict is not.
func ParseEvaluation(raw string) (Evaluation, error) {
	if strings.TrimSpace(raw) == "" {
		return Evaluation{}, errors.New("response is empty")
	}

	decoded, err := parse.ParseStringAs[wireEvaluation](raw)
	if err != nil {
		return Evaluation{}, fmt.Errorf("decode: %w", err)
	}

	verdict, err := ParseVerdict(decoded.Verdict)
	if err != nil {
		return Evaluation{}, err
	}

	feedback := strings.TrimSpace(decoded.Feedback)
	if feedback == "" {
		return Evaluation{}, errors.New("feedback is missing")
	}

	return Evaluation{Feedback: feedback, Verdict: verdict}, nil
}
