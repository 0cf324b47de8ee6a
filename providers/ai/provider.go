package ai

import (
	"context"
	"net/http"
)

// Provider is a chat completion backend.
type Provider interface {
	// SendMessage performs one completion. Transport and decoding failures are
	// returned as errors; model refusals are reported on the response.
	SendMessage(ctx context.Context, request ChatRequest) (*ChatResponse, error)

	// IsStopMessage reports whether the model finished its turn without
	// asking for tool calls.
	IsStopMessage(message *ChatResponse) bool

	WithAPIKey(apiKey string) Provider
	WithBaseURL(baseURL string) Provider
	WithHttpClient(httpClient *http.Client) Provider
}

// StreamProvider is implemented by backends that can stream tokens. Callers
// detect it with a type assertion and fall back to SendMessage otherwise.
type StreamProvider interface {
	Provider

	// StreamMessage returns a stream of deltas. Errors raised before the first
	// byte are returned directly; later ones surface through the iterator.
	StreamMessage(ctx context.Context, request ChatRequest) (*ChatStream, error)
}
