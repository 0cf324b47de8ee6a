package graph

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// StateProvider stores the shared key/value state of an execution along with
// node statuses and results. Implementations must be safe for concurrent use
// because nodes of one level run in parallel.
type StateProvider interface {
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any) error

	// Append adds values to the list stored under key, creating it when
	// missing. Parallel nodes use it to merge results without overwriting
	// each other.
	Append(ctx context.Context, key string, values ...any) error

	// GetAll returns a copy of the shared state.
	GetAll(ctx context.Context) (map[string]any, error)

	// GetNodeStatus returns NodePending for unknown nodes.
	GetNodeStatus(ctx context.Context, nodeID string) (NodeStatus, error)
	SetNodeStatus(ctx context.Context, nodeID string, status NodeStatus) error

	// GetNodeResult returns nil when the node has no stored result.
	GetNodeResult(ctx context.Context, nodeID string) (*NodeResult, error)
	SetNodeResult(ctx context.Context, nodeID string, result *NodeResult) error
}

// InMemoryStateProvider is the default StateProvider, a set of maps behind a
// RWMutex.
type InMemoryStateProvider struct {
	mu          sync.RWMutex
	data        map[string]any
	nodeStatus  map[string]NodeStatus
	nodeResults map[string]*NodeResult
}

var _ StateProvider = (*InMemoryStateProvider)(nil)

// NewInMemoryStateProvider copies initial into a fresh provider.
func NewInMemoryStateProvider(initial map[string]any) *InMemoryStateProvider {
	data := make(map[string]any, len(initial))
	maps.Copy(data, initial)

	return &InMemoryStateProvider{
		data:        data,
		nodeStatus:  make(map[string]NodeStatus),
		nodeResults: make(map[string]*NodeResult),
	}
}

func (p *InMemoryStateProvider) Get(_ context.Context, key string) (any, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	value, exists := p.data[key]
	return value, exists, nil
}

func (p *InMemoryStateProvider) Set(_ context.Context, key string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.data[key] = value
	return nil
}

func (p *InMemoryStateProvider) Append(_ context.Context, key string, values ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, exists := p.data[key]
	if !exists {
		p.data[key] = append([]any(nil), values...)
		return nil
	}

	list, ok := existing.([]any)
	if !ok {
		return fmt.Errorf("state key %q holds %T, not a list", key, existing)
	}
	p.data[key] = append(list, values...)
	return nil
}

func (p *InMemoryStateProvider) GetAll(_ context.Context) (map[string]any, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return maps.Clone(p.data), nil
}

func (p *InMemoryStateProvider) GetNodeStatus(_ context.Context, nodeID string) (NodeStatus, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status, exists := p.nodeStatus[nodeID]
	if !exists {
		return NodePending, nil
	}
	return status, nil
}

func (p *InMemoryStateProvider) SetNodeStatus(_ context.Context, nodeID string, status NodeStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nodeStatus[nodeID] = status
	return nil
}

func (p *InMemoryStateProvider) GetNodeResult(_ context.Context, nodeID string) (*NodeResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.nodeResults[nodeID], nil
}

func (p *InMemoryStateProvider) SetNodeResult(_ context.Context, nodeID string, result *NodeResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nodeResults[nodeID] = result
	return nil
}

// resetNodes returns the given nodes to pending and drops their results.
func (p *InMemoryStateProvider) resetNodes(nodeIDs []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, nodeID := range nodeIDs {
		p.nodeStatus[nodeID] = NodePending
		delete(p.nodeResults, nodeID)
	}
}

// ListOf reads the list stored under key, converting every element to V.
// A missing key yields an empty list.
func ListOf[V any](ctx context.Context, state StateProvider, key string) ([]V, error) {
	value, exists, err := state.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []V{}, nil
	}

	switch list := value.(type) {
	case []V:
		return list, nil
	case []any:
		out := make([]V, 0, len(list))
		for i, element := range list {
			typed, ok := element.(V)
			if !ok {
				return nil, fmt.Errorf("state key %q: element %d is %T", key, i, element)
			}
			out = append(out, typed)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("state key %q holds %T, not a list", key, value)
	}
}
