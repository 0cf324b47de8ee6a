package parse

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseStringAs parses content into T.
//
// Primitive kinds (string, bool, integers, floats) are converted directly after
// trimming whitespace, falling back to a schema-wrapped {"type","value"} object.
// Every other kind is decoded as JSON: the payload is first extracted from code
// fences or surrounding text, then repaired with jsonrepair if plain decoding
// fails, and finally unwrapped if the model echoed schema wrappers.
//
// Example:
//
//	type Fact struct {
//	    Fact   string `json:"fact"`
//	    Rating int    `json:"rating"`
//	}
//
//	fact, err := parse.ParseStringAs[Fact]("```json\n{fact: 'Semmelweis', rating: 9,}\n```")
func ParseStringAs[T any](content string) (T, error) {
	var result T
	target := reflect.ValueOf(&result).Elem()
	trimmed := strings.TrimSpace(content)

	switch target.Kind() {
	case reflect.String:
		if strings.HasPrefix(trimmed, "{") {
			if unwrapped, err := unwrapPrimitive(trimmed); err == nil {
				target.SetString(unwrapped)
				return result, nil
			}
		}
		target.SetString(content)
		return result, nil

	case reflect.Bool:
		err := parsePrimitive(trimmed, func(raw string) error {
			parsed, err := strconv.ParseBool(raw)
			if err == nil {
				target.SetBool(parsed)
			}
			return err
		})
		if err != nil {
			return result, fmt.Errorf("failed to parse content as bool: %w", err)
		}
		return result, nil

	case reflect.Float32, reflect.Float64:
		err := parsePrimitive(trimmed, func(raw string) error {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err == nil {
				target.SetFloat(parsed)
			}
			return err
		})
		if err != nil {
			return result, fmt.Errorf("failed to parse content as float: %w", err)
		}
		return result, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		err := parsePrimitive(trimmed, func(raw string) error {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err == nil {
				target.SetInt(parsed)
			}
			return err
		})
		if err != nil {
			return result, fmt.Errorf("failed to parse content as int: %w", err)
		}
		return result, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		err := parsePrimitive(trimmed, func(raw string) error {
			parsed, err := strconv.ParseUint(raw, 10, 64)
			if err == nil {
				target.SetUint(parsed)
			}
			return err
		})
		if err != nil {
			return result, fmt.Errorf("failed to parse content as uint: %w", err)
		}
		return result, nil

	default:
		if err := decodeJSON(ExtractJSON(content), &result); err != nil {
			return result, err
		}
		return result, nil
	}
}

// parsePrimitive applies set to raw, retrying once on the unwrapped value of a
// {"type","value"} object.
func parsePrimitive(raw string, set func(string) error) error {
	err := set(raw)
	if err == nil {
		return nil
	}

	unwrapped, unwrapErr := unwrapPrimitive(raw)
	if unwrapErr != nil {
		return err
	}
	return set(unwrapped)
}

// decodeJSON decodes payload into target, repairing and unwrapping as needed.
func decodeJSON(payload string, target any) error {
	if err := json.Unmarshal([]byte(payload), target); err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(payload)
	if repairErr != nil {
		return fmt.Errorf("failed to unmarshal content as %T and failed to repair JSON: %w", target, repairErr)
	}

	err := json.Unmarshal([]byte(repaired), target)
	if err == nil {
		return nil
	}

	if unwrapped, unwrapErr := unwrapSchemaValues(repaired); unwrapErr == nil {
		if retryErr := json.Unmarshal([]byte(unwrapped), target); retryErr == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to unmarshal repaired JSON as %T: %w (repaired: %s)", target, err, repaired)
}

// ExtractJSON returns the JSON payload embedded in content. It prefers the
// body of a Markdown code fence, then the outermost {...} or [...] span, and
// otherwise returns the trimmed content unchanged.
func ExtractJSON(content string) string {
	trimmed := strings.TrimSpace(content)

	if start := strings.Index(trimmed, "```"); start != -1 {
		rest := trimmed[start+3:]
		// Drop the language hint on the opening fence line.
		if newline := strings.IndexByte(rest, '\n'); newline != -1 {
			rest = rest[newline+1:]
		}
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return trimmed
	}

	open := strings.IndexAny(trimmed, "{[")
	if open == -1 {
		return trimmed
	}
	closer := byte('}')
	if trimmed[open] == '[' {
		closer = ']'
	}
	if end := strings.LastIndexByte(trimmed, closer); end > open {
		return trimmed[open : end+1]
	}
	return trimmed[open:]
}

// unwrapPrimitive returns the value of a {"type": ..., "value": ...} object as a string.
func unwrapPrimitive(content string) (string, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return "", err
	}

	value, ok := schemaWrappedValue(data)
	if !ok {
		return "", fmt.Errorf("not a schema-wrapped value")
	}

	switch typed := value.(type) {
	case string:
		return typed, nil
	case float64, bool:
		return fmt.Sprintf("%v", typed), nil
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}

// unwrapSchemaValues rewrites {"name": {"type": "string", "value": "x"}} into {"name": "x"}.
func unwrapSchemaValues(jsonString string) (string, error) {
	var data any
	if err := json.Unmarshal([]byte(jsonString), &data); err != nil {
		return "", err
	}

	encoded, err := json.Marshal(recursiveUnwrap(data))
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func recursiveUnwrap(data any) any {
	switch typed := data.(type) {
	case map[string]any:
		if value, ok := schemaWrappedValue(typed); ok {
			return recursiveUnwrap(value)
		}
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			out[key] = recursiveUnwrap(value)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for index, value := range typed {
			out[index] = recursiveUnwrap(value)
		}
		return out
	default:
		return data
	}
}

func schemaWrappedValue(data map[string]any) (any, bool) {
	if len(data) != 2 {
		return nil, false
	}
	if _, hasType := data["type"]; !hasType {
		return nil, false
	}
	value, hasValue := data["value"]
	return value, hasValue
}
