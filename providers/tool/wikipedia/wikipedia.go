package wikipedia

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/leofalp/aigoflow/internal/utils"
	"github.com/leofalp/aigoflow/providers/tool"
)

const (
	DefaultBaseURL    = "https://en.wikipedia.org"
	DefaultMaxResults = 3
	// DefaultMaxChars bounds each page summary handed back to the model.
	DefaultMaxChars = 4000
)

type Input struct {
	Query string `json:"query" jsonschema:"description=Topic, person or term to look up on Wikipedia,required"`
}

type Page struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Summary string `json:"summary"`
}

type Output struct {
	Query string `json:"query"`
	Pages []Page `json:"pages"`
}

type Searcher struct {
	baseURL    string
	httpClient *http.Client
	maxResults int
	maxChars   int
}

type Option func(*Searcher)

func WithBaseURL(baseURL string) Option {
	return func(s *Searcher) {
		s.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(s *Searcher) {
		s.httpClient = client
	}
}

func WithMaxResults(maxResults int) Option {
	return func(s *Searcher) {
		s.maxResults = maxResults
	}
}

func WithMaxChars(maxChars int) Option {
	return func(s *Searcher) {
		s.maxChars = maxChars
	}
}

func NewSearcher(opts ...Option) *Searcher {
	searcher := &Searcher{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		maxResults: DefaultMaxResults,
		maxChars:   DefaultMaxChars,
	}
	for _, opt := range opts {
		opt(searcher)
	}
	return searcher
}

func NewSearchTool(opts ...Option) *tool.Tool[Input, Output] {
	return tool.NewTool[Input, Output](
		"wikipedia",
		NewSearcher(opts...).Search,
		tool.WithDescription("Look up a topic on Wikipedia. Returns the introduction of the most relevant articles."),
	)
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type extractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string  `json:"title"`
			Extract string  `json:"extract"`
			Missing *string `json:"missing,omitempty"`
		} `json:"pages"`
		Redirects []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"redirects"`
	} `json:"query"`
}

// Search finds matching titles, then fetches their intro extracts in one call.
// Pages keep the relevance order of the search.
func (s *Searcher) Search(ctx context.Context, input Input) (Output, error) {
	if strings.TrimSpace(input.Query) == "" {
		return Output{}, fmt.Errorf("wikipedia: empty query")
	}

	titles, err := s.searchTitles(ctx, input.Query)
	if err != nil {
		return Output{}, err
	}
	output := Output{Query: input.Query, Pages: []Page{}}
	if len(titles) == 0 {
		return output, nil
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("redirects", "1")
	params.Set("format", "json")
	params.Set("titles", strings.Join(titles, "|"))

	extracts, err := utils.DoGetJSON[extractResponse](ctx, s.httpClient, s.apiURL(params), nil)
	if err != nil {
		return Output{}, fmt.Errorf("wikipedia: fetch extracts: %w", err)
	}

	byTitle := make(map[string]string, len(extracts.Query.Pages))
	for _, page := range extracts.Query.Pages {
		if page.Missing == nil {
			byTitle[page.Title] = page.Extract
		}
	}
	redirects := make(map[string]string, len(extracts.Query.Redirects))
	for _, redirect := range extracts.Query.Redirects {
		redirects[redirect.From] = redirect.To
	}

	for _, title := range titles {
		if target, ok := redirects[title]; ok {
			title = target
		}
		extract, ok := byTitle[title]
		if !ok {
			continue
		}
		summary, err := htmltomarkdown.ConvertString(extract)
		if err != nil {
			return Output{}, fmt.Errorf("wikipedia: convert %q: %w", title, err)
		}
		output.Pages = append(output.Pages, Page{
			Title:   title,
			URL:     s.baseURL + "/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_")),
			Summary: utils.TruncateString(strings.TrimSpace(summary), s.maxChars),
		})
	}
	return output, nil
}

func (s *Searcher) searchTitles(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(s.maxResults))
	params.Set("format", "json")

	response, err := utils.DoGetJSON[searchResponse](ctx, s.httpClient, s.apiURL(params), nil)
	if err != nil {
		return nil, fmt.Errorf("wikipedia: search: %w", err)
	}

	titles := make([]string, 0, len(response.Query.Search))
	for _, result := range response.Query.Search {
		titles = append(titles, result.Title)
	}
	return titles, nil
}

func (s *Searcher) apiURL(params url.Values) string {
	return s.baseURL + "/w/api.php?" + params.Encode()
}
