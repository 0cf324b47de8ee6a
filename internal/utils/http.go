package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// MaxResponseBodySize bounds how much of a response body DoGet reads.
const MaxResponseBodySize = 10 * 1024 * 1024

// CloseWithLog closes closer and logs a warning on failure. It is meant for
// deferred cleanup where the primary error must not be overridden.
func CloseWithLog(closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close resource", "error", err.Error())
	}
}

// DoGet performs an HTTP GET and returns the response body. Non-2xx statuses
// are returned as errors that include a truncated body preview.
func DoGet(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer CloseWithLog(response.Body)

	body, err := io.ReadAll(io.LimitReader(response.Body, MaxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("non-2xx status %d: %s", response.StatusCode, TruncateString(string(body), 200))
	}

	return body, nil
}

// DoGetJSON performs DoGet and decodes the body into OutputStruct.
func DoGetJSON[OutputStruct any](ctx context.Context, client *http.Client, url string, headers map[string]string) (*OutputStruct, error) {
	body, err := DoGet(ctx, client, url, headers)
	if err != nil {
		return nil, err
	}

	var decoded OutputStruct
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("error unmarshaling response body: %w\nResponse preview: %s", err, TruncateString(string(body), 200))
	}
	return &decoded, nil
}
