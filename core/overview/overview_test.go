package overview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/leofalp/aigoflow/providers/ai"
)

// ========== Context ==========

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("expected nil overview in a bare context")
	}

	original := New()
	ctx := original.ToContext(context.Background())
	if FromContext(ctx) != original {
		t.Error("expected the stored overview pointer")
	}
}

// ========== Record ==========

func TestRecord(t *testing.T) {
	o := New()
	o.Record("llama", &ai.ChatResponse{
		Usage: &ai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		ToolCalls: []ai.ToolCall{
			{Function: ai.ToolCallFunction{Name: "wikipedia"}},
			{Function: ai.ToolCallFunction{Name: "wikipedia"}},
		},
	}, 2*time.Second, nil)
	o.Record("llama", &ai.ChatResponse{Usage: &ai.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}}, time.Second, nil)
	o.Record("claude", nil, 500*time.Millisecond, errors.New("503"))

	expected := Summary{
		Calls:     3,
		Failures:  1,
		Usage:     ai.Usage{PromptTokens: 11, CompletionTokens: 6, TotalTokens: 17},
		Models:    map[string]int{"llama": 2, "claude": 1},
		ToolCalls: map[string]int{"wikipedia": 2},
		Duration:  3500 * time.Millisecond,
	}
	if diff := cmp.Diff(expected, o.Summary()); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestSummary_IsACopy(t *testing.T) {
	o := New()
	o.Record("m", &ai.ChatResponse{}, 0, nil)

	summary := o.Summary()
	summary.Models["m"] = 99

	if o.Summary().Models["m"] != 1 {
		t.Error("mutating a summary must not change the overview")
	}
}

func TestRecord_Concurrent(t *testing.T) {
	o := New()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Record("m", &ai.ChatResponse{Usage: &ai.Usage{TotalTokens: 2}}, time.Millisecond, nil)
		}()
	}
	wg.Wait()

	summary := o.Summary()
	if summary.Calls != 50 || summary.Usage.TotalTokens != 100 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestSummary_String(t *testing.T) {
	summary := Summary{
		Calls:     2,
		Failures:  1,
		Usage:     ai.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
		ToolCalls: map[string]int{"wikipedia": 1, "duckduckgo_search": 2},
		Duration:  1500 * time.Millisecond,
	}

	expected := "calls: 2 (1 failed), tokens: 3 prompt + 4 completion = 7, time: 1.5s, tools: duckduckgo_search=2 wikipedia=1"
	if got := summary.String(); got != expected {
		t.Errorf("String() = %q, want %q", got, expected)
	}
}
