package duckduckgo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestSearcher(t *testing.T, handler http.HandlerFunc) *Searcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewSearcher(WithBaseURL(server.URL+"/"), WithHTTPClient(server.Client()))
}

func TestNewSearchTool(t *testing.T) {
	searchTool := NewSearchTool()
	if searchTool.Name != "duckduckgo_search" {
		t.Errorf("Tool name = %v, want duckduckgo_search", searchTool.Name)
	}
	if searchTool.Description == "" {
		t.Error("Tool description is empty")
	}
	if _, ok := searchTool.Parameters.Properties["query"]; !ok {
		t.Error("expected query parameter in schema")
	}
}

func TestSearch_HappyPath(t *testing.T) {
	searcher := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "golang" || r.URL.Query().Get("format") != "json" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Heading": "Go",
			"AbstractText": "Go is an open-source programming language.",
			"AbstractURL": "https://en.wikipedia.org/wiki/Go_(programming_language)",
			"RelatedTopics": [
				{"Text": "Go concurrency", "FirstURL": "/Go_concurrency"},
				{"Name": "Tools", "Topics": [{"Text": "Go modules", "FirstURL": "https://duckduckgo.com/Go_modules"}]}
			]
		}`))
	})

	output, err := searcher.Search(context.Background(), Input{Query: "golang"})
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if output.Heading != "Go" {
		t.Errorf("Heading = %q, want Go", output.Heading)
	}
	if !strings.Contains(output.Summary, "Go is an open-source programming language.") {
		t.Errorf("Summary missing abstract text: %q", output.Summary)
	}
	if !strings.Contains(output.Summary, "Go concurrency; Go modules") {
		t.Errorf("Summary missing flattened topics: %q", output.Summary)
	}
	if len(output.Sources) != 3 || output.Sources[1] != "https://duckduckgo.com/Go_concurrency" {
		t.Errorf("unexpected sources: %v", output.Sources)
	}
}

func TestSearch_NumericAnswer(t *testing.T) {
	searcher := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Answer": 42}`))
	})

	output, err := searcher.Search(context.Background(), Input{Query: "6*7"})
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if output.Summary != "Answer: 42" {
		t.Errorf("Summary = %q", output.Summary)
	}
}

func TestSearch_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		query   string
		status  int
		wantErr string
	}{
		{name: "server error", query: "golang", status: http.StatusInternalServerError, wantErr: "500"},
		{name: "empty query", query: "  ", status: http.StatusOK, wantErr: "empty query"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			searcher := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(testCase.status)
			})

			_, err := searcher.Search(context.Background(), Input{Query: testCase.query})
			if err == nil || !strings.Contains(err.Error(), testCase.wantErr) {
				t.Errorf("expected error containing %q, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestSearch_EmptyResponse(t *testing.T) {
	searcher := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	output, err := searcher.Search(context.Background(), Input{Query: "xyznotfound"})
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if output.Summary != noResults {
		t.Errorf("expected no results fallback, got: %q", output.Summary)
	}
}

func TestSearchTool_Call(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Definition": "A board game."}`))
	}))
	defer server.Close()

	searchTool := NewSearchTool(WithBaseURL(server.URL+"/"), WithHTTPClient(server.Client()))
	encoded, err := searchTool.Call(context.Background(), `{"query": "go game"}`)
	if err != nil {
		t.Fatalf("Call() unexpected error: %v", err)
	}

	var output Output
	if err := json.Unmarshal([]byte(encoded), &output); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if output.Summary != "Definition: A board game." {
		t.Errorf("Summary = %q", output.Summary)
	}
}
