package hogwarts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const (
	studentsBody = `[
		{"name": "Harry Potter", "alternate_names": ["The Boy Who Lived"], "house": "Gryffindor", "wand": {"wood": "holly", "core": "phoenix tail feather", "length": 11}, "alive": true},
		{"name": "Hermione Granger", "house": "Gryffindor", "wand": {"wood": "vine", "core": "dragon heartstring", "length": null}, "alive": true},
		{"name": "Draco Malfoy", "house": "Slytherin", "wand": {}, "alive": true}
	]`
	staffBody  = `[{"name": "Minerva McGonagall", "house": "Gryffindor", "patronus": "tabby cat", "wand": {}, "alive": true}]`
	spellsBody = `[
		{"name": "Expelliarmus", "description": "Disarms your opponent"},
		{"name": "Expecto Patronum", "description": "Conjures a spirit guardian"},
		{"name": "Lumos", "description": "Creates a small light"}
	]`
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	bodies := map[string]string{
		"/api/characters/students": studentsBody,
		"/api/characters/staff":    staffBody,
		"/api/spells":              spellsBody,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return NewAPI(WithBaseURL(server.URL+"/api/"), WithHTTPClient(server.Client()))
}

// ========== Characters ==========

func TestStudents(t *testing.T) {
	api := newTestAPI(t)

	testCases := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "exact name", query: "Harry Potter", expected: []string{"Harry Potter"}},
		{name: "case insensitive partial", query: "GRANGER", expected: []string{"Hermione Granger"}},
		{name: "alternate name", query: "boy who lived", expected: []string{"Harry Potter"}},
		{name: "shared fragment", query: "r", expected: []string{"Harry Potter", "Hermione Granger", "Draco Malfoy"}},
		{name: "no match", query: "Voldemort", expected: []string{}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			output, err := api.Students(context.Background(), CharacterInput{Name: testCase.query})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(output.Matches) != len(testCase.expected) {
				t.Fatalf("expected %d matches, got %d: %+v", len(testCase.expected), len(output.Matches), output.Matches)
			}
			for i, name := range testCase.expected {
				if output.Matches[i].Name != name {
					t.Errorf("match %d: expected %q, got %q", i, name, output.Matches[i].Name)
				}
			}
		})
	}
}

func TestStudents_WandDetails(t *testing.T) {
	output, err := newTestAPI(t).Students(context.Background(), CharacterInput{Name: "harry"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wand := output.Matches[0].Wand
	if wand.Wood != "holly" || wand.Length == nil || *wand.Length != 11 {
		t.Errorf("unexpected wand %+v", wand)
	}
}

func TestStaff(t *testing.T) {
	output, err := newTestAPI(t).Staff(context.Background(), CharacterInput{Name: "mcgonagall"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Matches) != 1 || output.Matches[0].Patronus != "tabby cat" {
		t.Errorf("unexpected matches %+v", output.Matches)
	}
}

// ========== Spells ==========

func TestSpells(t *testing.T) {
	output, err := newTestAPI(t).Spells(context.Background(), SpellInput{Spell: "expe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Matches) != 2 {
		t.Fatalf("expected 2 spells, got %+v", output.Matches)
	}
	if output.Matches[0].Description != "Disarms your opponent" {
		t.Errorf("unexpected description %q", output.Matches[0].Description)
	}
}

func TestAPI_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	api := NewAPI(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	if _, err := api.Staff(context.Background(), CharacterInput{Name: "snape"}); err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected 502 error, got %v", err)
	}
}

// ========== Tools ==========

func TestTools(t *testing.T) {
	tools := Tools()
	names := []string{"hogwarts_student_info", "hogwarts_staff_info", "hogwarts_spell_info"}
	if len(tools) != len(names) {
		t.Fatalf("expected %d tools, got %d", len(names), len(tools))
	}
	for i, name := range names {
		info := tools[i].ToolInfo()
		if info.Name != name {
			t.Errorf("tool %d: expected %q, got %q", i, name, info.Name)
		}
		if info.Description == "" {
			t.Errorf("tool %s has no description", name)
		}
	}
}

func TestSpellsTool_Call(t *testing.T) {
	api := newTestAPI(t)
	spellTool := NewSpellsTool(WithBaseURL(api.baseURL), WithHTTPClient(api.httpClient))

	encoded, err := spellTool.Call(context.Background(), `{"spell": "lumos"}`)
	if err != nil {
		t.Fatalf("Call() unexpected error: %v", err)
	}
	if !strings.Contains(encoded, "Creates a small light") {
		t.Errorf("unexpected output %s", encoded)
	}
}
