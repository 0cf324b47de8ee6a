package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/leofalp/aigoflow/core/client"
	"github.com/leofalp/aigoflow/providers/ai"
)

// NodeStatus is the lifecycle status of a node within one execution.
type NodeStatus string

const (
	NodePending   NodeStatus = "pending"
	NodeRunning   NodeStatus = "running"
	NodeCompleted NodeStatus = "completed"
	NodeFailed    NodeStatus = "failed"
	// NodeSkipped marks a node whose dependency failed or whose incoming edge
	// conditions were all false.
	NodeSkipped NodeStatus = "skipped"
)

// ErrorStrategy decides what a node failure does to the rest of the graph.
type ErrorStrategy string

const (
	// ErrorStrategyFailFast cancels the running level and stops at the first
	// failure. This is the default.
	ErrorStrategyFailFast ErrorStrategy = "fail_fast"

	// ErrorStrategyContinueOnError lets independent branches finish. Nodes
	// downstream of a failure are skipped.
	ErrorStrategyContinueOnError ErrorStrategy = "continue_on_error"
)

// NodeResult is what a node produced. Output must be JSON-serializable when the
// StateProvider persists results.
type NodeResult struct {
	Output   any
	Error    error
	Duration time.Duration
	// Usage is the token usage reported by the node, summed into Result.Usage.
	Usage    *ai.Usage
	Metadata map[string]any
}

// NodeInput is everything a node can read while it runs.
type NodeInput struct {
	// UpstreamResults holds the results of completed dependencies by node ID.
	UpstreamResults map[string]*NodeResult
	SharedState     StateProvider
	Params          map[string]any
	// Client is the node's own client if one was set, else the graph default.
	Client *client.Client
}

// NodeExecutor is the logic of one node.
type NodeExecutor interface {
	Execute(ctx context.Context, input *NodeInput) (*NodeResult, error)
}

// NodeExecutorFunc adapts a function to NodeExecutor.
type NodeExecutorFunc func(ctx context.Context, input *NodeInput) (*NodeResult, error)

func (f NodeExecutorFunc) Execute(ctx context.Context, input *NodeInput) (*NodeResult, error) {
	return f(ctx, input)
}

// EdgeCondition decides whether an edge is traversed once its source has
// completed. A nil condition is always true.
type EdgeCondition func(ctx context.Context, result *NodeResult, state StateProvider) bool

// Result is the outcome of a successful execution.
type Result[T any] struct {
	Data     *T
	Statuses map[string]NodeStatus
	Usage    ai.Usage
	Duration time.Duration
}

type node struct {
	id           string
	executor     NodeExecutor
	client       *client.Client
	params       map[string]any
	timeout      time.Duration
	dependencies []string
}

type edge struct {
	from      string
	to        string
	condition EdgeCondition
}

type graphConfig struct {
	maxConcurrency   int // 0 means unlimited
	executionTimeout time.Duration
	errorStrategy    ErrorStrategy
	outputNodeID     string // defaults to the last node in topological order
	stateProvider    StateProvider
	logger           *slog.Logger
}

// Graph is a validated DAG built by GraphBuilder. Execute mutates node
// statuses in the state provider, so one Graph must not run concurrently
// with itself.
type Graph[T any] struct {
	defaultClient *client.Client
	nodes         map[string]*node
	edges         []*edge
	// levels[0] holds the roots; every node of level N depends only on
	// nodes of earlier levels.
	levels           [][]string
	topologicalOrder []string
	outputNodeID     string
	config           *graphConfig
}

// Levels returns the node IDs grouped by topological level.
func (g *Graph[T]) Levels() [][]string {
	levels := make([][]string, len(g.levels))
	for i, level := range g.levels {
		levels[i] = append([]string(nil), level...)
	}
	return levels
}

// OutputNode returns the ID of the node whose result becomes T.
func (g *Graph[T]) OutputNode() string {
	return g.outputNodeID
}
