package jsonschema

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
)

// Schema is the subset of JSON Schema understood by the providers: object
// properties, arrays, enums, numeric bounds and local $ref definitions.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Description          string             `json:"description,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties any                `json:"additionalProperties,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Minimum              *float64           `json:"minimum,omitempty"`
	Maximum              *float64           `json:"maximum,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
	Defs                 map[string]*Schema `json:"$defs,omitempty"`
}

// GenerateJSONSchema builds the schema for T. Recursive struct types are
// emitted once under $defs and referenced with $ref everywhere else.
func GenerateJSONSchema[T any]() *Schema {
	generator := &schemaGenerator{
		building: make(map[reflect.Type]bool),
		needsDef: make(map[reflect.Type]bool),
		defs:     make(map[string]*Schema),
	}

	schema := generator.generate(reflect.TypeFor[T]())
	if len(generator.defs) > 0 {
		schema.Defs = generator.defs
	}
	return schema
}

// schemaGenerator carries recursion bookkeeping for a single GenerateJSONSchema call.
type schemaGenerator struct {
	building map[reflect.Type]bool // struct types currently on the stack
	needsDef map[reflect.Type]bool // struct types referenced while on the stack
	defs     map[string]*Schema
}

func (generator *schemaGenerator) generate(t reflect.Type) *Schema {
	switch t.Kind() {
	case reflect.Ptr:
		return generator.generate(t.Elem())
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: generator.generate(t.Elem())}
	case reflect.Map:
		return &Schema{Type: "object", AdditionalProperties: generator.generate(t.Elem())}
	case reflect.Struct:
		return generator.generateStruct(t)
	default:
		return &Schema{Type: "object"}
	}
}

func (generator *schemaGenerator) generateStruct(t reflect.Type) *Schema {
	if generator.building[t] {
		generator.needsDef[t] = true
		return &Schema{Ref: "#/$defs/" + defName(t)}
	}

	generator.building[t] = true
	defer delete(generator.building, t)

	schema := &Schema{Type: "object", Properties: make(map[string]*Schema)}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldName, omitEmpty, skip := jsonFieldName(field)
		if skip {
			continue
		}

		fieldSchema := generator.generate(field.Type)
		requiredByTag := false
		if fieldSchema.Ref == "" {
			var err error
			requiredByTag, err = applyTag(field.Type, field.Tag.Get("jsonschema"), fieldSchema)
			if err != nil {
				slog.Warn("invalid jsonschema tag", "type", t.String(), "field", fieldName, "error", err)
			}
		}

		schema.Properties[fieldName] = fieldSchema
		if requiredByTag || (field.Type.Kind() != reflect.Ptr && !omitEmpty) {
			schema.Required = append(schema.Required, fieldName)
		}
	}

	if generator.needsDef[t] {
		// Copy so the root schema never contains itself through Defs.
		definition := *schema
		generator.defs[defName(t)] = &definition
	}
	return schema
}

// jsonFieldName resolves the serialized name of a struct field.
func jsonFieldName(field reflect.StructField) (name string, omitEmpty bool, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}

	name = field.Name
	if tag == "" {
		return name, false, false
	}

	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, option := range parts[1:] {
		if option == "omitempty" || option == "omitzero" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

func defName(t reflect.Type) string {
	if t.Name() != "" {
		return strings.ToLower(t.Name())
	}
	return "anonymous"
}

// applyTag applies a `jsonschema` struct tag to schema and reports whether the
// field was marked required. Supported keys: required, description=, enum=,
// minimum=, maximum=. A description may contain commas: segments without a key
// are appended to the preceding description.
func applyTag(fieldType reflect.Type, tag string, schema *Schema) (bool, error) {
	if tag == "" {
		return false, nil
	}

	required := false
	lastKey := ""
	for _, segment := range strings.Split(tag, ",") {
		key, value, hasValue := strings.Cut(segment, "=")
		if !hasValue {
			switch {
			case key == "required":
				required = true
				lastKey = key
			case lastKey == "description":
				schema.Description += "," + segment
			}
			continue
		}

		previousKey := lastKey
		lastKey = key
		switch key {
		case "description":
			schema.Description = value
		case "enum":
			enumValue, err := convertEnumValue(fieldType, value)
			if err != nil {
				return required, err
			}
			schema.Enum = append(schema.Enum, enumValue)
		case "minimum", "maximum":
			bound, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return required, fmt.Errorf("parse %s %q: %w", key, value, err)
			}
			if key == "minimum" {
				schema.Minimum = &bound
			} else {
				schema.Maximum = &bound
			}
		default:
			if previousKey == "description" {
				schema.Description += "," + segment
				lastKey = previousKey
			}
		}
	}

	return required, nil
}

func convertEnumValue(fieldType reflect.Type, value string) (any, error) {
	for fieldType.Kind() == reflect.Ptr {
		fieldType = fieldType.Elem()
	}

	switch fieldType.Kind() {
	case reflect.String:
		return value, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %q as integer: %w", value, err)
		}
		return parsed, nil
	case reflect.Float32, reflect.Float64:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %q as number: %w", value, err)
		}
		return parsed, nil
	case reflect.Bool:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %q as bool: %w", value, err)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("enum tag unsupported for field type %v", fieldType)
	}
}

// ToMap returns the schema as a generic JSON object, the shape most provider
// SDKs accept for tool parameters and response formats.
func (s *Schema) ToMap() map[string]any {
	if s == nil {
		return nil
	}

	encoded, err := json.Marshal(s)
	if err != nil {
		return nil
	}

	var out map[string]any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil
	}
	return out
}

// String returns the compact JSON encoding of the schema.
func (s *Schema) String() string {
	encoded, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(encoded)
}
