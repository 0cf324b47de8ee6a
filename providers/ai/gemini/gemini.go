package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"google.golang.org/genai"

	"github.com/leofalp/aigoflow/providers/ai"
)

const DefaultModel = "gemini-2.0-flash"

var ErrMissingAPIKey = errors.New("gemini: API key is not set")

type GeminiProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ ai.Provider       = (*GeminiProvider)(nil)
	_ ai.StreamProvider = (*GeminiProvider)(nil)
)

// NewGeminiProvider reads GEMINI_API_KEY, then GOOGLE_API_KEY. An empty base
// URL keeps the SDK default endpoint.
func NewGeminiProvider() *GeminiProvider {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	return &GeminiProvider{
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
}

func (p *GeminiProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

func (p *GeminiProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

func (p *GeminiProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.httpClient = httpClient
	return p
}

func (p *GeminiProvider) WithLogger(logger *slog.Logger) *GeminiProvider {
	p.logger = logger
	return p
}

func (p *GeminiProvider) sdk(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      p.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  p.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: p.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return client, nil
}

func (p *GeminiProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	client, err := p.sdk(ctx)
	if err != nil {
		return nil, err
	}

	model, contents, config, err := requestToGenai(request)
	if err != nil {
		return nil, err
	}
	p.logger.DebugContext(ctx, "gemini request", "model", model, "contents", len(contents), "tools", len(request.Tools))

	response, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(response.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: response %s has no candidates", response.ResponseID)
	}
	return responseToGeneric(response), nil
}

func (p *GeminiProvider) IsStopMessage(message *ai.ChatResponse) bool {
	if message == nil {
		return true
	}
	return len(message.ToolCalls) == 0
}
