package overview

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/leofalp/aigoflow/providers/ai"
)

type contextKey struct{}

// Summary is a point-in-time copy of an Overview.
type Summary struct {
	Calls     int            `json:"calls"`
	Failures  int            `json:"failures,omitempty"`
	Usage     ai.Usage       `json:"usage"`
	Models    map[string]int `json:"models,omitempty"`
	ToolCalls map[string]int `json:"tool_calls,omitempty"`
	// Duration sums the wall time of every call, so parallel calls overlap.
	Duration time.Duration `json:"duration"`
}

// Overview is safe for concurrent use.
type Overview struct {
	mu      sync.Mutex
	summary Summary
}

func New() *Overview {
	return &Overview{summary: Summary{
		Models:    make(map[string]int),
		ToolCalls: make(map[string]int),
	}}
}

func (o *Overview) ToContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, o)
}

// FromContext returns the Overview stored in ctx, or nil.
func FromContext(ctx context.Context) *Overview {
	o, _ := ctx.Value(contextKey{}).(*Overview)
	return o
}

// Record adds one finished call. A non-nil err counts as a failure and
// response is ignored.
func (o *Overview) Record(model string, response *ai.ChatResponse, elapsed time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.summary.Calls++
	o.summary.Duration += elapsed
	if model != "" {
		o.summary.Models[model]++
	}
	if err != nil {
		o.summary.Failures++
		return
	}
	if response == nil {
		return
	}
	o.summary.Usage.Add(response.Usage)
	for _, call := range response.ToolCalls {
		o.summary.ToolCalls[call.Function.Name]++
	}
}

func (o *Overview) Summary() Summary {
	o.mu.Lock()
	defer o.mu.Unlock()

	summary := o.summary
	summary.Models = maps.Clone(o.summary.Models)
	summary.ToolCalls = maps.Clone(o.summary.ToolCalls)
	return summary
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "calls: %d", s.Calls)
	if s.Failures > 0 {
		fmt.Fprintf(&b, " (%d failed)", s.Failures)
	}
	fmt.Fprintf(&b, ", tokens: %d prompt + %d completion = %d, time: %s",
		s.Usage.PromptTokens, s.Usage.CompletionTokens, s.Usage.TotalTokens, s.Duration.Round(time.Millisecond))

	if len(s.ToolCalls) > 0 {
		names := slices.Sorted(maps.Keys(s.ToolCalls))
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%d", name, s.ToolCalls[name]))
		}
		fmt.Fprintf(&b, ", tools: %s", strings.Join(parts, " "))
	}
	return b.String()
}
