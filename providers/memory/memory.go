package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a thread has no checkpoints.
var ErrNotFound = errors.New("memory: no checkpoint found")

// Checkpoint is one stored snapshot of a thread.
type Checkpoint struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"thread_id"`
	Step      int             `json:"step"` // 1 for the first checkpoint of a thread
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

// Saver stores checkpoints per thread. Implementations assign ID, Step and
// CreatedAt and must be safe for concurrent use.
type Saver interface {
	Put(ctx context.Context, threadID string, state json.RawMessage) (*Checkpoint, error)

	// Latest returns the highest step of the thread, or ErrNotFound.
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)

	// List returns the thread's checkpoints oldest first.
	List(ctx context.Context, threadID string) ([]Checkpoint, error)

	// Threads returns every thread ID, most recently written first.
	Threads(ctx context.Context) ([]string, error)

	Delete(ctx context.Context, threadID string) error
}

// Save encodes value as JSON and stores it as the next checkpoint.
func Save[T any](ctx context.Context, saver Saver, threadID string, value T) (*Checkpoint, error) {
	if threadID == "" {
		return nil, errors.New("memory: thread id is empty")
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("memory: encode state: %w", err)
	}
	return saver.Put(ctx, threadID, encoded)
}

// Load decodes the latest checkpoint of a thread into T.
func Load[T any](ctx context.Context, saver Saver, threadID string) (T, *Checkpoint, error) {
	var value T

	checkpoint, err := saver.Latest(ctx, threadID)
	if err != nil {
		return value, nil, err
	}
	if err := json.Unmarshal(checkpoint.State, &value); err != nil {
		return value, nil, fmt.Errorf("memory: decode checkpoint %s: %w", checkpoint.ID, err)
	}
	return value, checkpoint, nil
}
