package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/leofalp/aigoflow/core/client"
	"github.com/leofalp/aigoflow/providers/ai"
	"github.com/leofalp/aigoflow/providers/memory"
)

var (
	ErrEmptyMessage = errors.New("chat: message is empty")
	ErrEmptyThread  = errors.New("chat: thread id is empty")
)

// Conversation is the checkpointed state of a thread.
type Conversation struct {
	Messages []ai.Message `json:"messages"`
}

// Agent answers messages within threads. It holds no per-thread state of its
// own; two concurrent turns on one thread race and the later checkpoint wins.
type Agent struct {
	client  *client.Client
	saver   memory.Saver
	logger  *slog.Logger
	maxKept int
}

type Option func(*Agent)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithHistoryLimit sends only the last n stored messages to the model. The
// full history is still stored. Zero keeps everything.
func WithHistoryLimit(n int) Option {
	return func(a *Agent) {
		a.maxKept = n
	}
}

func New(c *client.Client, saver memory.Saver, opts ...Option) (*Agent, error) {
	if c == nil {
		return nil, errors.New("chat: client is nil")
	}
	if saver == nil {
		return nil, errors.New("chat: saver is nil")
	}

	agent := &Agent{client: c, saver: saver, logger: slog.Default()}
	for _, opt := range opts {
		opt(agent)
	}
	if agent.maxKept < 0 {
		return nil, fmt.Errorf("chat: history limit must not be negative, got %d", agent.maxKept)
	}
	if agent.logger == nil {
		agent.logger = slog.Default()
	}
	return agent, nil
}

// NewThreadID returns a random thread identifier.
func NewThreadID() string {
	return uuid.NewString()
}

// Send appends text to the thread, runs one model turn including any tool
// calls, stores the new messages and returns the reply.
func (a *Agent) Send(ctx context.Context, threadID, text string) (string, error) {
	conversation, err := a.begin(ctx, threadID, text)
	if err != nil {
		return "", err
	}

	run, err := a.client.RunTools(ctx, a.window(conversation.Messages))
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	if err := a.commit(ctx, threadID, conversation, run); err != nil {
		return "", err
	}
	return run.Response.Content, nil
}

// Stream is Send with the reply streamed as text deltas. The turn is stored
// only once the iteration finishes; breaking out of the loop early cancels the
// request and discards the turn. An error ends the sequence.
func (a *Agent) Stream(ctx context.Context, threadID, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		conversation, err := a.begin(ctx, threadID, text)
		if err != nil {
			yield("", err)
			return
		}

		stopped := false
		run, err := a.client.RunToolsStream(ctx, a.window(conversation.Messages), func(event ai.StreamEvent) {
			if stopped || event.Type != ai.StreamEventContent || event.Content == "" {
				return
			}
			if !yield(event.Content, nil) {
				stopped = true
				cancel()
			}
		})
		if stopped {
			a.logger.DebugContext(ctx, "chat stream abandoned", "thread_id", threadID)
			return
		}
		if err != nil {
			yield("", fmt.Errorf("chat: %w", err))
			return
		}
		if err := a.commit(ctx, threadID, conversation, run); err != nil {
			yield("", err)
		}
	}
}

// History returns the stored messages of a thread, empty for unknown threads.
func (a *Agent) History(ctx context.Context, threadID string) ([]ai.Message, error) {
	return LoadHistory(ctx, a.saver, threadID)
}

// LoadHistory reads a thread's messages straight from saver, without an
// agent or a model client.
func LoadHistory(ctx context.Context, saver memory.Saver, threadID string) ([]ai.Message, error) {
	conversation, err := loadConversation(ctx, saver, threadID)
	if err != nil {
		return nil, err
	}
	return conversation.Messages, nil
}

// Threads lists the stored thread IDs, most recently active first.
func (a *Agent) Threads(ctx context.Context) ([]string, error) {
	threads, err := a.saver.Threads(ctx)
	if err != nil {
		return nil, fmt.Errorf("chat: list threads: %w", err)
	}
	return threads, nil
}

func (a *Agent) Delete(ctx context.Context, threadID string) error {
	if threadID == "" {
		return ErrEmptyThread
	}
	return a.saver.Delete(ctx, threadID)
}

func (a *Agent) load(ctx context.Context, threadID string) (Conversation, error) {
	return loadConversation(ctx, a.saver, threadID)
}

func loadConversation(ctx context.Context, saver memory.Saver, threadID string) (Conversation, error) {
	if threadID == "" {
		return Conversation{}, ErrEmptyThread
	}

	conversation, _, err := memory.Load[Conversation](ctx, saver, threadID)
	if errors.Is(err, memory.ErrNotFound) {
		return Conversation{Messages: []ai.Message{}}, nil
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("chat: load thread %s: %w", threadID, err)
	}
	return conversation, nil
}

// begin loads the thread and appends the user message to it.
func (a *Agent) begin(ctx context.Context, threadID, text string) (Conversation, error) {
	if strings.TrimSpace(text) == "" {
		return Conversation{}, ErrEmptyMessage
	}

	conversation, err := a.load(ctx, threadID)
	if err != nil {
		return Conversation{}, err
	}
	conversation.Messages = append(conversation.Messages, ai.Message{Role: ai.RoleUser, Content: text})
	return conversation, nil
}

func (a *Agent) commit(ctx context.Context, threadID string, conversation Conversation, run *client.ToolRun) error {
	conversation.Messages = append(conversation.Messages, run.Messages...)

	checkpoint, err := memory.Save(ctx, a.saver, threadID, conversation)
	if err != nil {
		return fmt.Errorf("chat: save thread %s: %w", threadID, err)
	}

	a.logger.InfoContext(ctx, "chat turn stored",
		"thread_id", threadID,
		"step", checkpoint.Step,
		"messages", len(conversation.Messages),
		"tool_calls", run.ToolCalls,
		"total_tokens", run.Usage.TotalTokens,
	)
	return nil
}

// window trims the history sent to the model. It never starts the window on
// a tool result, which would be orphaned from its request.
func (a *Agent) window(messages []ai.Message) []ai.Message {
	if a.maxKept == 0 || len(messages) <= a.maxKept {
		return messages
	}

	start := len(messages) - a.maxKept
	for start < len(messages)-1 && messages[start].Role == ai.RoleTool {
		start++
	}
	return messages[start:]
}
