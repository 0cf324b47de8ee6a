package duckduckgo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/leofalp/aigoflow/internal/utils"
	"github.com/leofalp/aigoflow/providers/tool"
)

const (
	DefaultBaseURL   = "https://api.duckduckgo.com/"
	maxRelatedTopics = 5
	noResults        = "No results found for this query."
)

type Input struct {
	Query string `json:"query" jsonschema:"description=The search query to look up on DuckDuckGo,required"`
}

type Output struct {
	Query   string   `json:"query"`
	Heading string   `json:"heading,omitempty"`
	Summary string   `json:"summary"`
	Sources []string `json:"sources,omitempty"`
}

type Searcher struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Searcher)

func WithBaseURL(baseURL string) Option {
	return func(s *Searcher) {
		s.baseURL = baseURL
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(s *Searcher) {
		s.httpClient = client
	}
}

func NewSearcher(opts ...Option) *Searcher {
	searcher := &Searcher{baseURL: DefaultBaseURL, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(searcher)
	}
	return searcher
}

func NewSearchTool(opts ...Option) *tool.Tool[Input, Output] {
	return tool.NewTool[Input, Output](
		"duckduckgo_search",
		NewSearcher(opts...).Search,
		tool.WithDescription("Search the web with DuckDuckGo. Returns instant answers, abstracts and related topics for a query."),
	)
}

func (s *Searcher) Search(ctx context.Context, input Input) (Output, error) {
	if strings.TrimSpace(input.Query) == "" {
		return Output{}, fmt.Errorf("duckduckgo: empty query")
	}

	params := url.Values{}
	params.Set("q", input.Query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	response, err := utils.DoGetJSON[instantAnswer](ctx, s.httpClient, s.baseURL+"?"+params.Encode(), map[string]string{
		"User-Agent": "aigoflow-duckduckgo/1.0",
	})
	if err != nil {
		return Output{}, fmt.Errorf("duckduckgo: %w", err)
	}

	return response.summarize(input.Query), nil
}

type instantAnswer struct {
	Heading        string         `json:"Heading"`
	AbstractText   string         `json:"AbstractText"`
	AbstractSource string         `json:"AbstractSource"`
	AbstractURL    string         `json:"AbstractURL"`
	Answer         flexibleString `json:"Answer"`
	Definition     string         `json:"Definition"`
	DefinitionURL  string         `json:"DefinitionURL"`
	RelatedTopics  []relatedTopic `json:"RelatedTopics"`
}

type relatedTopic struct {
	FirstURL string         `json:"FirstURL"`
	Text     string         `json:"Text"`
	Topics   []relatedTopic `json:"Topics"`
}

func (a *instantAnswer) summarize(query string) Output {
	output := Output{Query: query, Heading: a.Heading}

	var sections []string
	if a.AbstractText != "" {
		sections = append(sections, "Abstract: "+a.AbstractText)
		output.Sources = appendSource(output.Sources, a.AbstractURL)
	}
	if a.Answer != "" {
		sections = append(sections, "Answer: "+string(a.Answer))
	}
	if a.Definition != "" {
		sections = append(sections, "Definition: "+a.Definition)
		output.Sources = appendSource(output.Sources, a.DefinitionURL)
	}

	var topics []string
	for _, topic := range flattenTopics(a.RelatedTopics) {
		if len(topics) == maxRelatedTopics {
			break
		}
		if topic.Text == "" {
			continue
		}
		topics = append(topics, topic.Text)
		output.Sources = appendSource(output.Sources, makeAbsoluteURL(topic.FirstURL))
	}
	if len(topics) > 0 {
		sections = append(sections, "Related topics: "+strings.Join(topics, "; "))
	}

	output.Summary = strings.Join(sections, "\n\n")
	if output.Summary == "" {
		output.Summary = noResults
	}
	return output
}

// flattenTopics expands disambiguation groups, which nest their entries under Topics.
func flattenTopics(topics []relatedTopic) []relatedTopic {
	var flat []relatedTopic
	for _, topic := range topics {
		if len(topic.Topics) > 0 {
			flat = append(flat, flattenTopics(topic.Topics)...)
			continue
		}
		flat = append(flat, topic)
	}
	return flat
}

func appendSource(sources []string, source string) []string {
	if source == "" {
		return sources
	}
	return append(sources, source)
}

// makeAbsoluteURL converts relative DuckDuckGo URLs to absolute URLs
func makeAbsoluteURL(path string) string {
	if strings.HasPrefix(path, "/") {
		return "https://duckduckgo.com" + path
	}
	return path
}

// flexibleString accepts both JSON strings and numbers; calculator answers
// come back as numbers.
type flexibleString string

func (f *flexibleString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleString(s)
		return nil
	}

	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		*f = flexibleString(strconv.FormatFloat(number, 'f', -1, 64))
		return nil
	}

	*f = ""
	return nil
}
