// Package middleware provides the stock client middlewares: retry with
// exponential backoff, per-request timeouts and slog request logging.
//
//	c, err := client.New(provider,
//	    client.WithMiddleware(
//	        middleware.NewTimeoutMiddleware(30*time.Second),
//	        middleware.NewRetryMiddleware(middleware.RetryConfig{MaxRetries: 3}),
//	        middleware.NewLoggingMiddleware(slog.Default(), middleware.LogLevelStandard),
//	    ),
//	)
//
// The first middleware is the outermost, so above a request passes through
// Timeout, then Retry, then Logging before reaching the provider. Each retry
// attempt is therefore logged, and the timeout bounds all attempts together.
package middleware
