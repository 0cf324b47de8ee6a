// Package jsonschema derives JSON Schema documents from Go types using reflection.
//
// Schemas are used in two places: to describe tool parameters to a provider, and
// to constrain structured model output (for example the evaluation verdict of the
// refinement loop). Field names follow `json` tags; extra constraints come from the
// `jsonschema` tag:
//
//	type Evaluation struct {
//	    Feedback string `json:"feedback" jsonschema:"required,description=One paragraph of strengths and weaknesses"`
//	    Verdict  string `json:"verdict" jsonschema:"required,enum=accepted,enum=needs_revision"`
//	    Rating   int    `json:"rating" jsonschema:"minimum=0,maximum=10"`
//	}
//
// The main entry point is [GenerateJSONSchema].
package jsonschema
