package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/leofalp/aigoflow/core/client"
	"github.com/leofalp/aigoflow/providers/ai"
	"github.com/leofalp/aigoflow/providers/memory/inmemory"
	"github.com/leofalp/aigoflow/providers/memory/sqlitememory"
	"github.com/leofalp/aigoflow/providers/tool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ========== Test Provider ==========

// scriptProvider replays responses in order and streams each response in
// two-character chunks.
type scriptProvider struct {
	mu        sync.Mutex
	responses []*ai.ChatResponse
	requests  []ai.ChatRequest
	streamErr error
}

func (p *scriptProvider) next(request ai.ChatRequest) *ai.ChatResponse {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, request)
	index := len(p.requests) - 1
	if index < len(p.responses) {
		return p.responses[index]
	}
	return &ai.ChatResponse{Content: "fallback", FinishReason: ai.FinishReasonStop}
}

func (p *scriptProvider) SendMessage(_ context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	return p.next(request), nil
}

func (p *scriptProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	response := p.next(request)
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		content := response.Content
		for len(content) > 0 {
			if err := ctx.Err(); err != nil {
				yield(ai.StreamEvent{}, err)
				return
			}
			n := min(2, len(content))
			if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: content[:n]}, nil) {
				return
			}
			content = content[n:]
		}
		if p.streamErr != nil {
			yield(ai.StreamEvent{}, p.streamErr)
			return
		}
		for index, call := range response.ToolCalls {
			delta := &ai.ToolCallDelta{Index: index, ID: call.ID, Name: call.Function.Name, Arguments: call.Function.Arguments}
			if !yield(ai.StreamEvent{Type: ai.StreamEventToolCall, ToolCall: delta}, nil) {
				return
			}
		}
		yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: response.FinishReason}, nil)
	}), nil
}

func (p *scriptProvider) IsStopMessage(response *ai.ChatResponse) bool {
	return response.FinishReason == ai.FinishReasonStop
}

func (p *scriptProvider) WithAPIKey(string) ai.Provider           { return p }
func (p *scriptProvider) WithBaseURL(string) ai.Provider          { return p }
func (p *scriptProvider) WithHttpClient(*http.Client) ai.Provider { return p }

func reply(content string) *ai.ChatResponse {
	return &ai.ChatResponse{Content: content, FinishReason: ai.FinishReasonStop}
}

func newAgent(t *testing.T, provider ai.Provider, clientOpts ...func(*client.ClientOptions)) (*Agent, *inmemory.Saver) {
	t.Helper()
	c, err := client.New(provider, clientOpts...)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	saver := inmemory.New()
	agent, err := New(c, saver)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return agent, saver
}

// ========== Send ==========

func TestNew_Validation(t *testing.T) {
	c, _ := client.New(&scriptProvider{})

	if _, err := New(nil, inmemory.New()); err == nil {
		t.Error("expected error for nil client")
	}
	if _, err := New(c, nil); err == nil {
		t.Error("expected error for nil saver")
	}
	if _, err := New(c, inmemory.New(), WithHistoryLimit(-1)); err == nil {
		t.Error("expected error for negative history limit")
	}
}

func TestSend_AccumulatesHistory(t *testing.T) {
	provider := &scriptProvider{responses: []*ai.ChatResponse{reply("Hi Harry!"), reply("You said your name is Harry.")}}
	agent, saver := newAgent(t, provider)
	ctx := context.Background()

	if _, err := agent.Send(ctx, "t1", "Hello, I am Harry"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	answer, err := agent.Send(ctx, "t1", "What is my name?")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if answer != "You said your name is Harry." {
		t.Errorf("unexpected answer %q", answer)
	}

	// The second request carries the whole conversation so far.
	if got := len(provider.requests[1].Messages); got != 3 {
		t.Errorf("expected 3 messages in second request, got %d", got)
	}

	history, err := agent.History(ctx, "t1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	var roles []ai.MessageRole
	for _, message := range history {
		roles = append(roles, message.Role)
	}
	expected := []ai.MessageRole{ai.RoleUser, ai.RoleAssistant, ai.RoleUser, ai.RoleAssistant}
	if diff := cmp.Diff(expected, roles); diff != "" {
		t.Errorf("roles mismatch (-want +got):\n%s", diff)
	}

	checkpoints, _ := saver.List(ctx, "t1")
	if len(checkpoints) != 2 {
		t.Errorf("expected one checkpoint per turn, got %d", len(checkpoints))
	}
}

func TestSend_ThreadsAreIsolated(t *testing.T) {
	provider := &scriptProvider{}
	agent, _ := newAgent(t, provider)
	ctx := context.Background()

	first, second := NewThreadID(), NewThreadID()
	if first == second {
		t.Fatal("thread ids should be unique")
	}

	if _, err := agent.Send(ctx, first, "one"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, err := agent.Send(ctx, second, "two"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got := len(provider.requests[1].Messages); got != 1 {
		t.Errorf("second thread should start empty, got %d messages", got)
	}

	threads, err := agent.Threads(ctx)
	if err != nil {
		t.Fatalf("Threads() error = %v", err)
	}
	if diff := cmp.Diff([]string{second, first}, threads); diff != "" {
		t.Errorf("threads mismatch (-want +got):\n%s", diff)
	}
}

func TestSend_WithTools(t *testing.T) {
	lookups := 0
	spells := tool.NewTool("get_that_spell_info", func(ctx context.Context, input struct {
		Spell string `json:"spell"`
	}) (string, error) {
		lookups++
		return input.Spell + ": produces light", nil
	})

	provider := &scriptProvider{responses: []*ai.ChatResponse{
		{
			ToolCalls: []ai.ToolCall{{
				ID:       "call_1",
				Type:     "function",
				Function: ai.ToolCallFunction{Name: "get_that_spell_info", Arguments: `{"spell": "Lumos"}`},
			}},
			FinishReason: ai.FinishReasonToolCalls,
		},
		reply("Lumos produces light."),
	}}
	agent, _ := newAgent(t, provider, client.WithTools(spells))

	answer, err := agent.Send(context.Background(), "t", "What does Lumos do?")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if answer != "Lumos produces light." || lookups != 1 {
		t.Errorf("unexpected answer %q after %d lookups", answer, lookups)
	}

	history, _ := agent.History(context.Background(), "t")
	if len(history) != 4 || history[2].Role != ai.RoleTool {
		t.Errorf("expected user, tool request, tool result, reply; got %+v", history)
	}
}

func TestSend_Validation(t *testing.T) {
	provider := &scriptProvider{}
	agent, _ := newAgent(t, provider)

	if _, err := agent.Send(context.Background(), "t", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := agent.Send(context.Background(), "", "hello"); !errors.Is(err, ErrEmptyThread) {
		t.Errorf("expected ErrEmptyThread, got %v", err)
	}
	if len(provider.requests) != 0 {
		t.Errorf("expected no requests, got %d", len(provider.requests))
	}
}

func TestSend_HistoryLimit(t *testing.T) {
	provider := &scriptProvider{}
	c, _ := client.New(provider)
	agent, err := New(c, inmemory.New(), WithHistoryLimit(3))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, text := range []string{"one", "two", "three"} {
		if _, err := agent.Send(context.Background(), "t", text); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	last := provider.requests[2].Messages
	if len(last) != 3 || last[len(last)-1].Content != "three" {
		t.Errorf("expected the last 3 messages, got %+v", last)
	}

	history, _ := agent.History(context.Background(), "t")
	if len(history) != 6 {
		t.Errorf("full history should be stored, got %d messages", len(history))
	}
}

func TestWindow_SkipsLeadingToolResults(t *testing.T) {
	agent := &Agent{maxKept: 2}
	messages := []ai.Message{
		{Role: ai.RoleUser, Content: "q"},
		{Role: ai.RoleAssistant, ToolCalls: []ai.ToolCall{{ID: "1"}}},
		{Role: ai.RoleTool, ToolCallID: "1"},
		{Role: ai.RoleUser, Content: "next"},
	}

	window := agent.window(messages[:3])
	if len(window) != 2 || window[0].Role != ai.RoleAssistant {
		t.Errorf("unexpected window: %+v", window)
	}

	// keep 3 of 5 would start on the tool result
	agent.maxKept = 3
	window = agent.window(append(messages, ai.Message{Role: ai.RoleAssistant, Content: "a"}))
	if len(window) != 2 || window[0].Content != "next" {
		t.Errorf("unexpected window: %+v", window)
	}
}

func TestSend_PersistsAcrossAgents(t *testing.T) {
	saver, err := sqlitememory.Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer saver.Close()

	ctx := context.Background()
	for i, answer := range []string{"first answer", "second answer"} {
		c, _ := client.New(&scriptProvider{responses: []*ai.ChatResponse{reply(answer)}})
		agent, err := New(c, saver)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if _, err := agent.Send(ctx, "shared", "message"); err != nil {
			t.Fatalf("Send() %d error = %v", i, err)
		}
	}

	c, _ := client.New(&scriptProvider{})
	agent, _ := New(c, saver)
	history, err := agent.History(ctx, "shared")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 4 || history[3].Content != "second answer" {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestLoadHistory(t *testing.T) {
	saver := inmemory.New()
	ctx := context.Background()

	c, _ := client.New(&scriptProvider{responses: []*ai.ChatResponse{reply("Lumos lights the wand tip.")}})
	agent, _ := New(c, saver)
	if _, err := agent.Send(ctx, "spells", "what does lumos do?"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	history, err := LoadHistory(ctx, saver, "spells")
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	want := []ai.Message{
		{Role: ai.RoleUser, Content: "what does lumos do?"},
		{Role: ai.RoleAssistant, Content: "Lumos lights the wand tip."},
	}
	if diff := cmp.Diff(want, history); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}

	unknown, err := LoadHistory(ctx, saver, "missing")
	if err != nil || len(unknown) != 0 {
		t.Errorf("expected empty history for unknown thread, got %v, %v", unknown, err)
	}
	if _, err := LoadHistory(ctx, saver, ""); !errors.Is(err, ErrEmptyThread) {
		t.Errorf("expected ErrEmptyThread, got %v", err)
	}
}

// ========== Stream ==========

func TestStream_StoresTurnWhenConsumed(t *testing.T) {
	provider := &scriptProvider{responses: []*ai.ChatResponse{reply("Hello there")}}
	agent, saver := newAgent(t, provider)
	ctx := context.Background()

	var received strings.Builder
	for chunk, err := range agent.Stream(ctx, "s", "hi") {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		received.WriteString(chunk)
	}

	if received.String() != "Hello there" {
		t.Errorf("unexpected streamed text %q", received.String())
	}

	history, _ := agent.History(ctx, "s")
	if len(history) != 2 || history[1].Content != "Hello there" {
		t.Errorf("unexpected history: %+v", history)
	}
	if checkpoints, _ := saver.List(ctx, "s"); len(checkpoints) != 1 {
		t.Errorf("expected one checkpoint, got %d", len(checkpoints))
	}
}

func TestStream_BreakDiscardsTurn(t *testing.T) {
	provider := &scriptProvider{responses: []*ai.ChatResponse{reply("a long streamed answer")}}
	agent, _ := newAgent(t, provider)
	ctx := context.Background()

	for chunk, err := range agent.Stream(ctx, "s", "hi") {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		if chunk != "" {
			break
		}
	}

	history, _ := agent.History(ctx, "s")
	if len(history) != 0 {
		t.Errorf("abandoned turn should not be stored, got %+v", history)
	}
}

func TestStream_ErrorEndsSequence(t *testing.T) {
	provider := &scriptProvider{
		responses: []*ai.ChatResponse{reply("partial")},
		streamErr: errors.New("connection reset"),
	}
	agent, _ := newAgent(t, provider)

	var streamErr error
	for _, err := range agent.Stream(context.Background(), "s", "hi") {
		if err != nil {
			streamErr = err
		}
	}
	if streamErr == nil || !strings.Contains(streamErr.Error(), "connection reset") {
		t.Fatalf("expected stream error, got %v", streamErr)
	}

	history, _ := agent.History(context.Background(), "s")
	if len(history) != 0 {
		t.Errorf("failed turn should not be stored, got %+v", history)
	}
}

func TestStream_EmptyMessage(t *testing.T) {
	agent, _ := newAgent(t, &scriptProvider{})

	for _, err := range agent.Stream(context.Background(), "s", "") {
		if !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("expected ErrEmptyMessage, got %v", err)
		}
	}
}

func TestDelete(t *testing.T) {
	agent, _ := newAgent(t, &scriptProvider{})
	ctx := context.Background()

	if _, err := agent.Send(ctx, "gone", "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := agent.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	threads, _ := agent.Threads(ctx)
	if len(threads) != 0 {
		t.Errorf("expected no threads, got %v", threads)
	}
	if err := agent.Delete(ctx, ""); !errors.Is(err, ErrEmptyThread) {
		t.Errorf("expected ErrEmptyThread, got %v", err)
	}
}
