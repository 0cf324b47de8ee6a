// Package parse converts raw model output into typed Go values.
//
// Models frequently wrap JSON in Markdown code fences, surround it with prose,
// emit single quotes or trailing commas, or confuse a schema with data
// ({"type": "string", "value": "..."}). [ParseStringAs] handles all of these:
// it extracts the JSON payload, repairs it with jsonrepair when needed, and
// unwraps schema-shaped values before decoding into T.
package parse
