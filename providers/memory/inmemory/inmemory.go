package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tiendc/go-deepcopy"

	"github.com/leofalp/aigoflow/providers/memory"
)

// Saver is a map-backed memory.Saver guarded by a RWMutex.
type Saver struct {
	mu      sync.RWMutex
	threads map[string][]memory.Checkpoint
	touched map[string]int64 // write sequence of the last Put per thread
	seq     int64
	now     func() time.Time
}

var _ memory.Saver = (*Saver)(nil)

func New() *Saver {
	return &Saver{
		threads: make(map[string][]memory.Checkpoint),
		touched: make(map[string]int64),
		now:     time.Now,
	}
}

func (s *Saver) Put(ctx context.Context, threadID string, state json.RawMessage) (*memory.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored, err := cloneState(state)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	checkpoint := memory.Checkpoint{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Step:      len(s.threads[threadID]) + 1,
		State:     stored,
		CreatedAt: s.now().UTC(),
	}
	s.threads[threadID] = append(s.threads[threadID], checkpoint)
	s.seq++
	s.touched[threadID] = s.seq

	return cloneCheckpoint(checkpoint)
}

func (s *Saver) Latest(ctx context.Context, threadID string) (*memory.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	checkpoints := s.threads[threadID]
	if len(checkpoints) == 0 {
		return nil, fmt.Errorf("%w: thread %q", memory.ErrNotFound, threadID)
	}
	return cloneCheckpoint(checkpoints[len(checkpoints)-1])
}

func (s *Saver) List(ctx context.Context, threadID string) ([]memory.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]memory.Checkpoint, 0, len(s.threads[threadID]))
	for _, checkpoint := range s.threads[threadID] {
		cloned, err := cloneCheckpoint(checkpoint)
		if err != nil {
			return nil, err
		}
		out = append(out, *cloned)
	}
	return out, nil
}

func (s *Saver) Threads(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	threads := make([]string, 0, len(s.touched))
	for threadID := range s.touched {
		threads = append(threads, threadID)
	}
	slices.SortFunc(threads, func(a, b string) int {
		return int(s.touched[b] - s.touched[a])
	})
	return threads, nil
}

func (s *Saver) Delete(ctx context.Context, threadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	delete(s.touched, threadID)
	return nil
}

func cloneState(state json.RawMessage) (json.RawMessage, error) {
	var cloned json.RawMessage
	if err := deepcopy.Copy(&cloned, state); err != nil {
		return nil, fmt.Errorf("inmemory: copy state: %w", err)
	}
	return cloned, nil
}

func cloneCheckpoint(checkpoint memory.Checkpoint) (*memory.Checkpoint, error) {
	state, err := cloneState(checkpoint.State)
	if err != nil {
		return nil, err
	}
	checkpoint.State = state
	return &checkpoint, nil
}
