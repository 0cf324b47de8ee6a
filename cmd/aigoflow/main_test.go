package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/aigoflow/core/refine"
	"github.com/leofalp/aigoflow/internal/config"
	"github.com/leofalp/aigoflow/providers/ai"
	"github.com/leofalp/aigoflow/workflows"
)

// echoProvider answers structured requests with fixed JSON and echoes the last
// user message otherwise.
type echoProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *echoProvider) SendMessage(_ context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	content := "echo"
	for i := len(request.Messages) - 1; i >= 0; i-- {
		if request.Messages[i].Role == ai.RoleUser {
			content = "echo: " + request.Messages[i].Content
			break
		}
	}

	if format := request.ResponseFormat; format != nil && format.OutputSchema != nil {
		switch {
		case format.OutputSchema.Properties["verdict"] != nil:
			content = `{"verdict": "accepted", "feedback": "Clear and short."}`
		case format.OutputSchema.Properties["rating"] != nil:
			content = `{"fact": "A fact.", "rating": 7}`
		}
	}
	return &ai.ChatResponse{Content: content, FinishReason: ai.FinishReasonStop}, nil
}

func (p *echoProvider) IsStopMessage(*ai.ChatResponse) bool     { return true }
func (p *echoProvider) WithAPIKey(string) ai.Provider           { return p }
func (p *echoProvider) WithBaseURL(string) ai.Provider          { return p }
func (p *echoProvider) WithHttpClient(*http.Client) ai.Provider { return p }

func (p *echoProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// run executes the CLI in an empty working directory with no AIGOFLOW_*
// settings from the host.
func run(t *testing.T, provider ai.Provider, stdin string, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runCapture(t, provider, stdin, args...)
	return stdout, err
}

func runCapture(t *testing.T, provider ai.Provider, stdin string, args ...string) (string, string, error) {
	t.Helper()
	for _, key := range []string{"AIGOFLOW_PROVIDER", "AIGOFLOW_MODEL", "AIGOFLOW_MAX_ITERATIONS", "AIGOFLOW_START_ITERATION", "AIGOFLOW_CHAT_DB", "AIGOFLOW_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	t.Setenv("AIGOFLOW_LOG_LEVEL", "error")
	t.Chdir(t.TempDir())

	var stdout, stderr bytes.Buffer
	root := newRootCommand(provider)
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// ========== Workflows ==========

func TestAsk(t *testing.T) {
	provider := &echoProvider{}
	out, err := run(t, provider, "", "ask", "what", "is", "go?")
	require.NoError(t, err)

	assert.Contains(t, out, "Answer the following question, what is go?")
	assert.Equal(t, 1, provider.callCount())
}

func TestChain_JSON(t *testing.T) {
	out, err := run(t, &echoProvider{}, "", "chain", "--json", "Go generics")
	require.NoError(t, err)

	var chain workflows.Chain
	require.NoError(t, json.Unmarshal([]byte(out), &chain))
	assert.Equal(t, "Go generics", chain.Topic)
	assert.NotEmpty(t, chain.Outline)
	assert.NotEmpty(t, chain.Post)
}

func TestFacts(t *testing.T) {
	provider := &echoProvider{}
	out, err := run(t, provider, "", "facts", "--json", "Marie", "Curie")
	require.NoError(t, err)

	var report workflows.FactsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "Marie Curie", report.Person)
	assert.Equal(t, []int{7, 7, 7}, report.Ratings)
	assert.Equal(t, 3, provider.callCount())
}

func TestRefine(t *testing.T) {
	provider := &echoProvider{}
	out, err := run(t, provider, "", "refine", "--json", "--max-iterations", "3", "spring sale")
	require.NoError(t, err)

	var final refine.WorkflowState
	require.NoError(t, json.Unmarshal([]byte(out), &final))
	assert.Equal(t, refine.VerdictAccepted, final.Verdict)
	assert.Equal(t, 1, final.IterationCount)
	assert.Equal(t, 3, final.IterationLimit)
	assert.Equal(t, 2, provider.callCount(), "one generation and one evaluation")
}

func TestRefine_ResumeFinishedRun(t *testing.T) {
	dir := t.TempDir()
	database := filepath.Join(dir, "refine.db")
	provider := &echoProvider{}

	_, err := run(t, provider, "", "refine", "--checkpoint-db", database, "--thread", "campaign-1", "spring sale")
	require.NoError(t, err)
	calls := provider.callCount()

	out, err := run(t, provider, "", "refine", "--json", "--checkpoint-db", database, "--thread", "campaign-1", "--resume")
	require.NoError(t, err)

	var final refine.WorkflowState
	require.NoError(t, json.Unmarshal([]byte(out), &final))
	assert.Equal(t, "spring sale", final.TaskInput)
	assert.Equal(t, calls, provider.callCount(), "a finished run must not call the model again")
}

func TestRefine_FlagErrors(t *testing.T) {
	_, err := run(t, &echoProvider{}, "", "refine", "--resume")
	require.Error(t, err)

	_, err = run(t, &echoProvider{}, "", "refine")
	require.Error(t, err, "campaign argument is required")

	_, err = run(t, &echoProvider{}, "", "refine", "--start-iteration", "6", "sale")
	assert.ErrorIs(t, err, refine.ErrInvalidState)
}

// ========== Chat ==========

func TestChat_PersistsThread(t *testing.T) {
	database := filepath.Join(t.TempDir(), "chat.db")

	out, err := run(t, &echoProvider{}, "hello\n\n/exit\nignored\n", "chat", "--db", database, "--thread", "t-1")
	require.NoError(t, err)
	assert.Contains(t, out, "thread t-1")
	assert.Contains(t, out, "echo: hello")
	assert.NotContains(t, out, "ignored")

	out, err = run(t, &echoProvider{}, "again\n", "chat", "--stream", "--db", database, "--thread", "t-1")
	require.NoError(t, err)
	assert.Contains(t, out, "user: hello\nassistant: echo: hello\n")
	assert.Contains(t, out, "echo: again")
	assert.Less(t, strings.Index(out, "assistant: echo: hello"), strings.Index(out, "> "), "history is replayed before the prompt")

	out, err = run(t, &echoProvider{}, "", "threads", "--json", "--db", database)
	require.NoError(t, err)
	var threads []string
	require.NoError(t, json.Unmarshal([]byte(out), &threads))
	assert.Equal(t, []string{"t-1"}, threads)
}

func TestChat_NewThreadReplaysNothing(t *testing.T) {
	database := filepath.Join(t.TempDir(), "chat.db")

	out, err := run(t, &echoProvider{}, "/exit\n", "chat", "--db", database, "--thread", "fresh")
	require.NoError(t, err)
	assert.Equal(t, "thread fresh\n> ", out)
}

func TestHistory(t *testing.T) {
	database := filepath.Join(t.TempDir(), "chat.db")
	_, err := run(t, &echoProvider{}, "hello\nagain\n", "chat", "--db", database, "--thread", "t-1")
	require.NoError(t, err)

	provider := &echoProvider{}
	out, err := run(t, provider, "", "history", "--db", database, "--thread", "t-1")
	require.NoError(t, err)
	assert.Equal(t, "user: hello\nassistant: echo: hello\nuser: again\nassistant: echo: again\n", out)
	assert.Zero(t, provider.callCount())

	out, err = run(t, &echoProvider{}, "", "history", "--json", "--db", database, "--thread", "t-1")
	require.NoError(t, err)
	var entries []transcriptEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 4)
	assert.Equal(t, transcriptEntry{Role: ai.RoleAssistant, Content: "echo: again"}, entries[3])

	_, err = run(t, &echoProvider{}, "", "history", "--db", database)
	assert.Error(t, err)
}

func TestTranscript_SkipsToolTurns(t *testing.T) {
	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: "be brief"},
		{Role: ai.RoleUser, Content: "who is Hermione?"},
		{Role: ai.RoleAssistant, ToolCalls: []ai.ToolCall{{ID: "call_1", Type: "function"}}},
		{Role: ai.RoleTool, Content: `{"name":"Hermione Granger"}`, ToolCallID: "call_1"},
		{Role: ai.RoleAssistant, Content: "A Gryffindor student."},
	}

	assert.Equal(t, []transcriptEntry{
		{Role: ai.RoleUser, Content: "who is Hermione?"},
		{Role: ai.RoleAssistant, Content: "A Gryffindor student."},
	}, transcript(messages))
}

// ========== Flags ==========

func TestUsageFlag(t *testing.T) {
	_, stderr, err := runCapture(t, &echoProvider{}, "", "--usage", "facts", "Ada Lovelace")
	require.NoError(t, err)
	assert.Contains(t, stderr, "usage: calls: 3,")
}

func TestProviderFlag_Unknown(t *testing.T) {
	_, err := run(t, &echoProvider{}, "", "--provider", "llamacpp", "ask", "hi")
	assert.True(t, errors.Is(err, config.ErrInvalidConfig), "got %v", err)
}

func TestModelFlag(t *testing.T) {
	provider := &modelRecorder{}
	_, err := run(t, provider, "", "--model", "custom-model", "ask", "hi")
	require.NoError(t, err)
	assert.Equal(t, "custom-model", provider.model)
}

type modelRecorder struct {
	echoProvider
	model string
}

func (p *modelRecorder) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	p.model = request.Model
	return p.echoProvider.SendMessage(ctx, request)
}
