package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type lookupInput struct {
	Name string `json:"name" jsonschema:"required,description=Name to look up"`
}

type lookupOutput struct {
	Matches []string `json:"matches"`
}

func newLookupTool() *Tool[lookupInput, lookupOutput] {
	return NewTool("lookup", func(ctx context.Context, input lookupInput) (lookupOutput, error) {
		if input.Name == "" {
			return lookupOutput{}, errors.New("name is required")
		}
		return lookupOutput{Matches: []string{strings.ToUpper(input.Name)}}, nil
	}, WithDescription("Looks a name up."))
}

// ========== NewTool ==========

func TestNewTool_ToolInfo(t *testing.T) {
	info := newLookupTool().ToolInfo()

	if info.Name != "lookup" || info.Description != "Looks a name up." {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.Parameters == nil || info.Parameters.Properties["name"] == nil {
		t.Fatalf("expected generated parameter schema, got %+v", info.Parameters)
	}
	if info.Parameters.Properties["name"].Description != "Name to look up" {
		t.Errorf("unexpected property description: %q", info.Parameters.Properties["name"].Description)
	}
}

// ========== Call ==========

func TestTool_Call(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "valid JSON", input: `{"name":"luna"}`, want: `{"matches":["LUNA"]}`},
		{name: "fenced JSON", input: "```json\n{\"name\":\"neville\"}\n```", want: `{"matches":["NEVILLE"]}`},
		{name: "function error", input: `{"name":""}`, wantErr: true},
		{name: "not JSON", input: `nothing useful`, wantErr: true},
	}

	lookup := newLookupTool()
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got, err := lookup.Call(context.Background(), testCase.input)
			if testCase.wantErr {
				if err == nil {
					t.Fatalf("expected error, got output %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != testCase.want {
				t.Errorf("expected %s, got %s", testCase.want, got)
			}
		})
	}
}

func TestTool_CallErrorNamesTool(t *testing.T) {
	_, err := newLookupTool().Call(context.Background(), `{"name":""}`)
	if err == nil || !strings.Contains(err.Error(), "tool lookup") {
		t.Errorf("expected error to name the tool, got %v", err)
	}
}
