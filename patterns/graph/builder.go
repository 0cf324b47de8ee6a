package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/leofalp/aigoflow/core/client"
)

// GraphBuilder collects nodes and edges. Mistakes made while adding are
// recorded and reported together by Build.
type GraphBuilder[T any] struct {
	defaultClient *client.Client
	config        *graphConfig
	nodes         map[string]*node
	edges         []*edge
	nodeOrder     []string // insertion order, used to break ties within a level
	buildErrors   []error
}

// NewGraphBuilder starts a graph whose nodes use defaultClient unless they set
// their own with WithNodeClient.
func NewGraphBuilder[T any](defaultClient *client.Client, opts ...Option) *GraphBuilder[T] {
	config := &graphConfig{errorStrategy: ErrorStrategyFailFast}
	for _, opt := range opts {
		opt(config)
	}

	return &GraphBuilder[T]{
		defaultClient: defaultClient,
		config:        config,
		nodes:         make(map[string]*node),
	}
}

func (b *GraphBuilder[T]) AddNode(nodeID string, executor NodeExecutor, opts ...NodeOption) *GraphBuilder[T] {
	switch {
	case nodeID == "":
		b.buildErrors = append(b.buildErrors, errors.New("node ID must not be empty"))
		return b
	case executor == nil:
		b.buildErrors = append(b.buildErrors, fmt.Errorf("executor must not be nil for node %q", nodeID))
		return b
	}
	if _, exists := b.nodes[nodeID]; exists {
		b.buildErrors = append(b.buildErrors, fmt.Errorf("duplicate node ID %q", nodeID))
		return b
	}

	n := &node{id: nodeID, executor: executor}
	for _, opt := range opts {
		opt(n)
	}

	b.nodes[nodeID] = n
	b.nodeOrder = append(b.nodeOrder, nodeID)
	return b
}

// AddEdge makes to depend on from.
func (b *GraphBuilder[T]) AddEdge(from, to string, opts ...EdgeOption) *GraphBuilder[T] {
	if from == "" || to == "" {
		b.buildErrors = append(b.buildErrors, fmt.Errorf("edge endpoints must not be empty (from=%q, to=%q)", from, to))
		return b
	}
	if from == to {
		b.buildErrors = append(b.buildErrors, fmt.Errorf("self-loop on node %q", from))
		return b
	}

	e := &edge{from: from, to: to}
	for _, opt := range opts {
		opt(e)
	}
	b.edges = append(b.edges, e)
	return b
}

// Build validates the graph and computes its levels. It rejects recorded
// errors, an empty graph, dangling or duplicate edges, cycles and an unknown
// output node.
func (b *GraphBuilder[T]) Build() (*Graph[T], error) {
	if len(b.buildErrors) > 0 {
		return nil, fmt.Errorf("graph build errors: %w", errors.Join(b.buildErrors...))
	}
	if len(b.nodes) == 0 {
		return nil, errors.New("graph must contain at least one node")
	}
	if err := b.validateEdges(); err != nil {
		return nil, err
	}

	inDegree, adjacency := b.buildAdjacency()
	order, levels, err := kahnTopologicalSort(inDegree, adjacency, b.nodeOrder)
	if err != nil {
		return nil, err
	}

	for _, e := range b.edges {
		target := b.nodes[e.to]
		target.dependencies = append(target.dependencies, e.from)
	}

	outputNodeID := order[len(order)-1]
	if b.config.outputNodeID != "" {
		if _, exists := b.nodes[b.config.outputNodeID]; !exists {
			return nil, fmt.Errorf("output node %q does not exist in the graph", b.config.outputNodeID)
		}
		outputNodeID = b.config.outputNodeID
	}

	if b.config.stateProvider == nil {
		b.config.stateProvider = NewInMemoryStateProvider(nil)
	}
	if b.config.logger == nil {
		b.config.logger = slog.Default()
	}

	return &Graph[T]{
		defaultClient:    b.defaultClient,
		nodes:            b.nodes,
		edges:            b.edges,
		levels:           levels,
		topologicalOrder: order,
		outputNodeID:     outputNodeID,
		config:           b.config,
	}, nil
}

func (b *GraphBuilder[T]) validateEdges() error {
	seen := make(map[[2]string]bool, len(b.edges))
	for _, e := range b.edges {
		if _, exists := b.nodes[e.from]; !exists {
			return fmt.Errorf("edge references non-existent source node %q", e.from)
		}
		if _, exists := b.nodes[e.to]; !exists {
			return fmt.Errorf("edge references non-existent target node %q", e.to)
		}

		key := [2]string{e.from, e.to}
		if seen[key] {
			return fmt.Errorf("duplicate edge from %q to %q", e.from, e.to)
		}
		seen[key] = true
	}
	return nil
}

func (b *GraphBuilder[T]) buildAdjacency() (map[string]int, map[string][]string) {
	inDegree := make(map[string]int, len(b.nodes))
	adjacency := make(map[string][]string, len(b.nodes))
	for nodeID := range b.nodes {
		inDegree[nodeID] = 0
	}
	for _, e := range b.edges {
		adjacency[e.from] = append(adjacency[e.from], e.to)
		inDegree[e.to]++
	}
	return inDegree, adjacency
}

// kahnTopologicalSort orders the nodes and groups them into levels, failing if
// a cycle leaves nodes unprocessed. Nodes within a level keep insertion order.
func kahnTopologicalSort(inDegree map[string]int, adjacency map[string][]string, nodeOrder []string) ([]string, [][]string, error) {
	position := make(map[string]int, len(nodeOrder))
	for index, nodeID := range nodeOrder {
		position[nodeID] = index
	}
	byInsertion := func(a, b string) int { return position[a] - position[b] }

	var current []string
	for nodeID, degree := range inDegree {
		if degree == 0 {
			current = append(current, nodeID)
		}
	}
	slices.SortFunc(current, byInsertion)

	order := make([]string, 0, len(inDegree))
	var levels [][]string
	for len(current) > 0 {
		levels = append(levels, current)
		order = append(order, current...)

		var next []string
		for _, nodeID := range current {
			for _, neighbor := range adjacency[nodeID] {
				inDegree[neighbor]--
				if inDegree[neighbor] == 0 {
					next = append(next, neighbor)
				}
			}
		}
		slices.SortFunc(next, byInsertion)
		current = next
	}

	if len(order) != len(inDegree) {
		var cycle []string
		for nodeID, degree := range inDegree {
			if degree > 0 {
				cycle = append(cycle, nodeID)
			}
		}
		slices.Sort(cycle)
		return nil, nil, fmt.Errorf("cycle detected in graph involving nodes: %v", cycle)
	}
	return order, levels, nil
}
