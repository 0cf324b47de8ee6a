package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/leofalp/aigoflow/providers/ai"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-haiku-latest"

	// defaultMaxTokens is sent when the request has no limit, since the API
	// requires one.
	defaultMaxTokens = 4096
)

var ErrMissingAPIKey = errors.New("anthropic: API key is not set")

type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ ai.Provider       = (*AnthropicProvider)(nil)
	_ ai.StreamProvider = (*AnthropicProvider)(nil)
)

// NewAnthropicProvider reads ANTHROPIC_API_KEY and ANTHROPIC_BASE_URL.
func NewAnthropicProvider() *AnthropicProvider {
	baseURL := os.Getenv("ANTHROPIC_BASE_URL")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &AnthropicProvider{
		apiKey:     os.Getenv("ANTHROPIC_API_KEY"),
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
}

func (p *AnthropicProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

func (p *AnthropicProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

func (p *AnthropicProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.httpClient = httpClient
	return p
}

func (p *AnthropicProvider) WithLogger(logger *slog.Logger) *AnthropicProvider {
	p.logger = logger
	return p
}

func (p *AnthropicProvider) sdk() (anthropic.Client, error) {
	if p.apiKey == "" {
		return anthropic.Client{}, ErrMissingAPIKey
	}
	return anthropic.NewClient(
		option.WithAPIKey(p.apiKey),
		option.WithBaseURL(p.baseURL),
		option.WithHTTPClient(p.httpClient),
		option.WithMaxRetries(0),
	), nil
}

func (p *AnthropicProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	client, err := p.sdk()
	if err != nil {
		return nil, err
	}

	params, err := requestToParams(request)
	if err != nil {
		return nil, err
	}
	p.logger.DebugContext(ctx, "anthropic request", "model", params.Model, "messages", len(params.Messages), "tools", len(params.Tools))

	message, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: messages: %w", err)
	}
	return messageToGeneric(message), nil
}

func (p *AnthropicProvider) IsStopMessage(message *ai.ChatResponse) bool {
	if message == nil {
		return true
	}
	return len(message.ToolCalls) == 0
}
