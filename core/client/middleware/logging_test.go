package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/leofalp/aigoflow/providers/ai"
)

// ========== Test logger helpers ==========

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func okSend(_ context.Context, _ ai.ChatRequest) (*ai.ChatResponse, error) {
	return &ai.ChatResponse{
		Model:        "test-model",
		Content:      "Dear team, meet our AI database.",
		FinishReason: "stop",
		Usage:        &ai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

var logRequest = ai.ChatRequest{
	Model:    "test-model",
	Messages: []ai.Message{{Role: ai.RoleUser, Content: "write an email"}},
}

// ========== Send ==========

func TestLoggingMiddleware_SendLevels(t *testing.T) {
	testCases := []struct {
		name    string
		level   LogLevel
		present []string
		absent  []string
	}{
		{
			name:    "minimal",
			level:   LogLevelMinimal,
			present: []string{"test-model", "prompt_tokens", "duration"},
			absent:  []string{"message_count", "finish_reason", "response_content"},
		},
		{
			name:    "standard",
			level:   LogLevelStandard,
			present: []string{"message_count=1", "tool_count=0", "finish_reason=stop"},
			absent:  []string{"response_content", "last_message_content"},
		},
		{
			name:    "verbose",
			level:   LogLevelVerbose,
			present: []string{"last_message_content=\"write an email\"", "response_content"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			chain := NewLoggingMiddleware(testLogger(buf), testCase.level).Send(okSend)

			if _, err := chain(context.Background(), logRequest); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			output := buf.String()
			for _, want := range testCase.present {
				if !strings.Contains(output, want) {
					t.Errorf("expected %q in log:\n%s", want, output)
				}
			}
			for _, unwanted := range testCase.absent {
				if strings.Contains(output, unwanted) {
					t.Errorf("did not expect %q in log:\n%s", unwanted, output)
				}
			}
		})
	}
}

func TestLoggingMiddleware_SendError(t *testing.T) {
	buf := &bytes.Buffer{}
	failure := errors.New("503 unavailable")
	chain := NewLoggingMiddleware(testLogger(buf), LogLevelMinimal).Send(
		func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) { return nil, failure },
	)

	if _, err := chain(context.Background(), logRequest); !errors.Is(err, failure) {
		t.Fatalf("expected error to pass through, got %v", err)
	}
	if !strings.Contains(buf.String(), "llm send failed") || !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("expected error entry, got:\n%s", buf.String())
	}
}

// ========== Stream ==========

func TestLoggingMiddleware_StreamCompletion(t *testing.T) {
	buf := &bytes.Buffer{}
	next := func(context.Context, ai.ChatRequest) (*ai.ChatStream, error) {
		return ai.NewSingleEventStream(&ai.ChatResponse{
			Content:      "streamed",
			FinishReason: "stop",
			Usage:        &ai.Usage{TotalTokens: 9},
		}), nil
	}

	stream, err := NewLoggingMiddleware(testLogger(buf), LogLevelStandard).Stream(next)(context.Background(), logRequest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), "llm stream completed") {
		t.Fatal("completion must not be logged before the stream is consumed")
	}

	response, _ := stream.Collect()
	if response.Content != "streamed" {
		t.Errorf("events must pass through unchanged, got %q", response.Content)
	}

	output := buf.String()
	if !strings.Contains(output, "llm stream completed") || !strings.Contains(output, "total_tokens=9") {
		t.Errorf("expected completion entry with usage, got:\n%s", output)
	}
}

func TestLoggingMiddleware_StreamMidError(t *testing.T) {
	buf := &bytes.Buffer{}
	failure := errors.New("connection reset")
	next := func(context.Context, ai.ChatRequest) (*ai.ChatStream, error) {
		return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
			if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: "par"}, nil) {
				return
			}
			yield(ai.StreamEvent{}, failure)
		}), nil
	}

	stream, _ := NewLoggingMiddleware(testLogger(buf), LogLevelMinimal).Stream(next)(context.Background(), logRequest)
	if _, err := stream.Collect(); !errors.Is(err, failure) {
		t.Fatalf("expected mid-stream error, got %v", err)
	}
	if !strings.Contains(buf.String(), "llm stream failed") {
		t.Errorf("expected failure entry, got:\n%s", buf.String())
	}
}

func TestNewLoggingMiddleware_NilLogger(t *testing.T) {
	config := NewLoggingMiddleware(nil, LogLevelMinimal)
	if _, err := config.Send(okSend)(context.Background(), logRequest); err != nil {
		t.Fatalf("unexpected error with default logger: %v", err)
	}
}
