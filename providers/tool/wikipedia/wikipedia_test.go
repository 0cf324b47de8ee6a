package wikipedia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, extracts string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/w/api.php" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")

		query := r.URL.Query()
		switch {
		case query.Get("list") == "search":
			if query.Get("srsearch") != "Marie Curie" {
				t.Errorf("unexpected search %q", query.Get("srsearch"))
			}
			_, _ = w.Write([]byte(`{"query": {"search": [{"title": "Marie Curie"}, {"title": "Curie (unit)"}, {"title": "Gone"}]}}`))
		case query.Get("prop") == "extracts":
			if query.Get("titles") != "Marie Curie|Curie (unit)|Gone" {
				t.Errorf("unexpected titles %q", query.Get("titles"))
			}
			_, _ = w.Write([]byte(extracts))
		default:
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

const extractsBody = `{"query": {"pages": {
	"1": {"title": "Curie (unit)", "extract": "<p>The <b>curie</b> is a unit of radioactivity.</p>"},
	"2": {"title": "Marie Curie", "extract": "<p><b>Marie Curie</b> was a physicist and chemist.</p>"},
	"-1": {"title": "Gone", "missing": ""}
}}}`

func TestSearch(t *testing.T) {
	server := newTestServer(t, extractsBody)
	searcher := NewSearcher(WithBaseURL(server.URL+"/"), WithHTTPClient(server.Client()))

	output, err := searcher.Search(context.Background(), Input{Query: "Marie Curie"})
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}

	if len(output.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d: %+v", len(output.Pages), output.Pages)
	}
	first := output.Pages[0]
	if first.Title != "Marie Curie" {
		t.Errorf("expected search order to be kept, got %q first", first.Title)
	}
	if first.Summary != "**Marie Curie** was a physicist and chemist." {
		t.Errorf("unexpected markdown summary %q", first.Summary)
	}
	if first.URL != server.URL+"/wiki/Marie_Curie" {
		t.Errorf("unexpected url %q", first.URL)
	}
}

func TestSearch_TruncatesSummary(t *testing.T) {
	server := newTestServer(t, extractsBody)
	searcher := NewSearcher(WithBaseURL(server.URL), WithHTTPClient(server.Client()), WithMaxChars(10))

	output, err := searcher.Search(context.Background(), Input{Query: "Marie Curie"})
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if !strings.HasPrefix(output.Pages[0].Summary, "**Marie Cu...") {
		t.Errorf("expected truncated summary, got %q", output.Pages[0].Summary)
	}
}

func TestSearch_Redirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("list") == "search" {
			_, _ = w.Write([]byte(`{"query": {"search": [{"title": "Einstein"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"query": {
			"redirects": [{"from": "Einstein", "to": "Albert Einstein"}],
			"pages": {"736": {"title": "Albert Einstein", "extract": "<p>Physicist.</p>"}}
		}}`))
	}))
	defer server.Close()

	output, err := NewSearcher(WithBaseURL(server.URL), WithHTTPClient(server.Client())).Search(context.Background(), Input{Query: "einstein"})
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(output.Pages) != 1 || output.Pages[0].Title != "Albert Einstein" {
		t.Errorf("expected redirect target, got %+v", output.Pages)
	}
}

func TestSearch_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("list") != "search" {
			t.Error("extracts must not be fetched without titles")
		}
		_, _ = w.Write([]byte(`{"query": {"search": []}}`))
	}))
	defer server.Close()

	output, err := NewSearcher(WithBaseURL(server.URL), WithHTTPClient(server.Client())).Search(context.Background(), Input{Query: "qwxz"})
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if output.Pages == nil || len(output.Pages) != 0 {
		t.Errorf("expected empty page list, got %v", output.Pages)
	}
}

func TestSearch_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	searcher := NewSearcher(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	if _, err := searcher.Search(context.Background(), Input{Query: "go"}); err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected 429 error, got %v", err)
	}
	if _, err := searcher.Search(context.Background(), Input{Query: ""}); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestNewSearchTool(t *testing.T) {
	searchTool := NewSearchTool()
	if searchTool.Name != "wikipedia" || searchTool.Description == "" {
		t.Errorf("unexpected tool info %+v", searchTool.ToolInfo())
	}
}
