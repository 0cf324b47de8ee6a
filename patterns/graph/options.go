package graph

import (
	"log/slog"
	"time"

	"github.com/leofalp/aigoflow/core/client"
)

// Option configures a graph in NewGraphBuilder.
type Option func(*graphConfig)

// NodeOption configures a node in AddNode.
type NodeOption func(*node)

// EdgeOption configures an edge in AddEdge.
type EdgeOption func(*edge)

// WithMaxConcurrency caps how many nodes of one level run at once. Zero, the
// default, runs the whole level in parallel.
func WithMaxConcurrency(maxConcurrency int) Option {
	return func(config *graphConfig) {
		config.maxConcurrency = maxConcurrency
	}
}

// WithExecutionTimeout bounds a whole Execute call.
func WithExecutionTimeout(timeout time.Duration) Option {
	return func(config *graphConfig) {
		config.executionTimeout = timeout
	}
}

func WithErrorStrategy(strategy ErrorStrategy) Option {
	return func(config *graphConfig) {
		config.errorStrategy = strategy
	}
}

// WithOutputNode picks the node parsed into T when the graph has more than
// one sink.
func WithOutputNode(nodeID string) Option {
	return func(config *graphConfig) {
		config.outputNodeID = nodeID
	}
}

// WithStateProvider replaces the default InMemoryStateProvider.
func WithStateProvider(provider StateProvider) Option {
	return func(config *graphConfig) {
		config.stateProvider = provider
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(config *graphConfig) {
		config.logger = logger
	}
}

// WithNodeClient gives a node its own client, for example one with a
// different model or system prompt.
func WithNodeClient(nodeClient *client.Client) NodeOption {
	return func(n *node) {
		n.client = nodeClient
	}
}

// WithNodeParams sets the values the node reads from NodeInput.Params.
func WithNodeParams(params map[string]any) NodeOption {
	return func(n *node) {
		n.params = params
	}
}

// WithNodeTimeout bounds a single node. The graph timeout still applies.
func WithNodeTimeout(timeout time.Duration) NodeOption {
	return func(n *node) {
		n.timeout = timeout
	}
}

// WithEdgeCondition makes an edge conditional. A node runs if at least one
// incoming edge is unconditional or its condition holds.
func WithEdgeCondition(condition EdgeCondition) EdgeOption {
	return func(e *edge) {
		e.condition = condition
	}
}
