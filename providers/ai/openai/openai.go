package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/leofalp/aigoflow/providers/ai"
)

const (
	DefaultBaseURL = "https://router.huggingface.co/v1"
	DefaultModel   = "meta-llama/Llama-3.1-8B-Instruct"
)

var ErrMissingAPIKey = errors.New("openai: API key is not set")

// OpenAIProvider talks to any chat completions endpoint. SDK retries are
// disabled; retry policy belongs to the client middleware.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ ai.Provider       = (*OpenAIProvider)(nil)
	_ ai.StreamProvider = (*OpenAIProvider)(nil)
)

// NewOpenAIProvider reads the key from HF_TOKEN, then OPENAI_API_KEY, and the
// endpoint from OPENAI_API_BASE_URL, defaulting to DefaultBaseURL.
func NewOpenAIProvider() *OpenAIProvider {
	apiKey := os.Getenv("HF_TOKEN")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	baseURL := os.Getenv("OPENAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &OpenAIProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
}

func (p *OpenAIProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

func (p *OpenAIProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

func (p *OpenAIProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.httpClient = httpClient
	return p
}

func (p *OpenAIProvider) WithLogger(logger *slog.Logger) *OpenAIProvider {
	p.logger = logger
	return p
}

func (p *OpenAIProvider) sdk() (openai.Client, error) {
	if p.apiKey == "" {
		return openai.Client{}, ErrMissingAPIKey
	}
	return openai.NewClient(
		option.WithAPIKey(p.apiKey),
		option.WithBaseURL(p.baseURL),
		option.WithHTTPClient(p.httpClient),
		option.WithMaxRetries(0),
	), nil
}

func (p *OpenAIProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	client, err := p.sdk()
	if err != nil {
		return nil, err
	}

	params := requestToParams(request)
	p.logger.DebugContext(ctx, "openai request", "base_url", p.baseURL, "model", params.Model, "messages", len(params.Messages), "tools", len(params.Tools))

	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai: response %s has no choices", completion.ID)
	}
	return responseToGeneric(completion), nil
}

// IsStopMessage treats any turn without tool calls as final.
func (p *OpenAIProvider) IsStopMessage(message *ai.ChatResponse) bool {
	if message == nil {
		return true
	}
	switch message.FinishReason {
	case ai.FinishReasonStop, ai.FinishReasonLength, "content_filter":
		return true
	}
	return len(message.ToolCalls) == 0
}
