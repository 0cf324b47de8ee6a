package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/leofalp/aigoflow/core/client"
	"github.com/leofalp/aigoflow/providers/ai"
)

// RetryConfig tunes NewRetryMiddleware. Zero fields take the defaults noted.
type RetryConfig struct {
	// MaxRetries counts attempts after the first one. Default 3.
	MaxRetries int

	// InitialBackoff is the wait before the first retry. Default 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps every wait. Default 30s.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the wait after each retry. Default 2.
	BackoffFactor float64

	// JitterFraction adds up to this share of the wait as random noise.
	// Default 0.1.
	JitterFraction float64

	// RetryableFunc decides whether an error is transient. The default retries
	// HTTP 429, 500, 502, 503 and 529 and network timeouts.
	RetryableFunc func(error) bool

	// Logger receives one Warn entry per retry. Default slog.Default().
	Logger *slog.Logger
}

var retryableStatusCodes = []string{"429", "500", "502", "503", "529"}

// defaultRetryableFunc matches status codes in the error text, since the
// provider SDKs report them that way.
func defaultRetryableFunc(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()
	for _, code := range retryableStatusCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

func applyRetryDefaults(config *RetryConfig) {
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = 2.0
	}
	if config.JitterFraction == 0 {
		config.JitterFraction = 0.1
	}
	if config.RetryableFunc == nil {
		config.RetryableFunc = defaultRetryableFunc
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
}

// computeBackoff returns min(InitialBackoff * BackoffFactor^attempt, MaxBackoff)
// plus jitter, for a zero-based attempt.
func computeBackoff(config RetryConfig, attempt int) time.Duration {
	base := float64(config.InitialBackoff) * math.Pow(config.BackoffFactor, float64(attempt))
	if base > float64(config.MaxBackoff) {
		base = float64(config.MaxBackoff)
	}

	jitter := base * config.JitterFraction * rand.Float64() //nolint:gosec // jitter needs no crypto randomness
	return time.Duration(base + jitter)
}

// NewRetryMiddleware retries failed sends. Streams are not retried because a
// partially consumed stream cannot be replayed, so Stream is nil.
func NewRetryMiddleware(config RetryConfig) client.MiddlewareConfig {
	applyRetryDefaults(&config)

	send := func(next client.SendFunc) client.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			var lastErr error

			for attempt := 0; attempt <= config.MaxRetries; attempt++ {
				if attempt > 0 {
					backoff := computeBackoff(config, attempt-1)
					config.Logger.WarnContext(ctx, "retrying llm call",
						slog.Int("attempt", attempt),
						slog.Duration("backoff", backoff),
						slog.String("error", lastErr.Error()),
					)

					timer := time.NewTimer(backoff)
					select {
					case <-ctx.Done():
						timer.Stop()
						return nil, ctx.Err()
					case <-timer.C:
					}
				}

				response, err := next(ctx, request)
				if err == nil {
					return response, nil
				}

				lastErr = err
				if !config.RetryableFunc(err) {
					return nil, err
				}
			}

			return nil, fmt.Errorf("%w after %d retries: %w", ErrRetryExhausted, config.MaxRetries, lastErr)
		}
	}

	return client.MiddlewareConfig{Send: send}
}
