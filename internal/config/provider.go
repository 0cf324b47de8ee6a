package config

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/leofalp/aigoflow/core/client"
	"github.com/leofalp/aigoflow/core/client/middleware"
	"github.com/leofalp/aigoflow/providers/ai"
	"github.com/leofalp/aigoflow/providers/ai/anthropic"
	"github.com/leofalp/aigoflow/providers/ai/gemini"
	"github.com/leofalp/aigoflow/providers/ai/openai"
	"github.com/leofalp/aigoflow/providers/observability/slogobs"
)

// NewProvider builds the ai.Provider for cfg.Provider. The key from APIKeyEnv
// and BaseURL override what the provider reads from its own variables.
func NewProvider(cfg *Config) (ai.Provider, error) {
	var provider ai.Provider
	switch cfg.Provider {
	case ProviderOpenAI:
		provider = openai.NewOpenAIProvider()
	case ProviderAnthropic:
		provider = anthropic.NewAnthropicProvider()
	case ProviderGemini:
		provider = gemini.NewGeminiProvider()
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}

	if key := cfg.APIKey(); key != "" {
		provider = provider.WithAPIKey(key)
	}
	if cfg.BaseURL != "" {
		provider = provider.WithBaseURL(cfg.BaseURL)
	}
	return provider, nil
}

// NewProviderWithHTTPClient is NewProvider with a custom transport, used by tests and
// proxies.
func NewProviderWithHTTPClient(cfg *Config, httpClient *http.Client) (ai.Provider, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return provider.WithHttpClient(httpClient), nil
}

// ClientOptions turns the model, generation and retry settings into client
// options. The overview middleware is outermost so a retried call counts once;
// retry wraps timeout so each attempt gets the full request timeout. A zero
// max_retries or request_timeout leaves the matching middleware out.
func (c *Config) ClientOptions(logger *slog.Logger) []func(*client.ClientOptions) {
	if logger == nil {
		logger = slog.Default()
	}

	middlewares := []client.MiddlewareConfig{middleware.NewOverviewMiddleware()}
	if c.Retry.MaxRetries > 0 {
		middlewares = append(middlewares, middleware.NewRetryMiddleware(middleware.RetryConfig{
			MaxRetries:     c.Retry.MaxRetries,
			InitialBackoff: c.Retry.InitialBackoff,
			MaxBackoff:     c.Retry.MaxBackoff,
			Logger:         logger,
		}))
	}
	if c.RequestTimeout > 0 {
		middlewares = append(middlewares, middleware.NewTimeoutMiddleware(c.RequestTimeout))
	}
	middlewares = append(middlewares, middleware.NewLoggingMiddleware(logger, middleware.LogLevelStandard))

	options := []func(*client.ClientOptions){
		client.WithDefaultModel(c.Model),
		client.WithLogger(logger),
		client.WithMaxToolIterations(c.Chat.MaxToolIterations),
		client.WithMiddleware(middlewares...),
	}

	if c.Temperature > 0 || c.MaxTokens > 0 {
		options = append(options, client.WithGenerationConfig(ai.GenerationConfig{
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
		}))
	}
	return options
}

// NewClient builds the provider and wraps it in a client configured by cfg.
// Extra options are applied after the configured ones.
func NewClient(cfg *Config, logger *slog.Logger, extra ...func(*client.ClientOptions)) (*client.Client, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return client.New(provider, append(cfg.ClientOptions(logger), extra...)...)
}

// Logger builds the process logger from the log section. Unknown levels fall
// back to info.
func (c *Config) Logger() *slog.Logger {
	level, ok := slogobs.ParseLevel(c.Log.Level)
	if !ok {
		level = slog.LevelInfo
	}
	return slogobs.New(
		slogobs.WithLevel(level),
		slogobs.WithFormat(slogobs.ParseFormat(c.Log.Format)),
	)
}
