package graph

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leofalp/aigoflow/core/parse"
)

// Execute loads initialState into the state provider and runs the graph level
// by level. Nodes of a level run concurrently, bounded by WithMaxConcurrency.
// The output node's result is returned parsed as T.
func (g *Graph[T]) Execute(ctx context.Context, initialState map[string]any) (*Result[T], error) {
	start := time.Now()
	logger := g.config.logger
	state := g.config.stateProvider

	if err := g.Reset(ctx, initialState); err != nil {
		return nil, fmt.Errorf("failed to initialize graph state: %w", err)
	}

	if g.config.executionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.executionTimeout)
		defer cancel()
	}

	logger.DebugContext(ctx, "graph started", "nodes", len(g.nodes), "levels", len(g.levels))

	if err := g.executeLevels(ctx, state); err != nil {
		logger.ErrorContext(ctx, "graph failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("graph execution failed: %w", err)
	}

	data, err := g.parseOutput(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to parse output from node %q: %w", g.outputNodeID, err)
	}

	result := &Result[T]{
		Data:     data,
		Statuses: make(map[string]NodeStatus, len(g.nodes)),
		Duration: time.Since(start),
	}
	for _, nodeID := range g.topologicalOrder {
		status, err := state.GetNodeStatus(ctx, nodeID)
		if err != nil {
			return nil, fmt.Errorf("failed to read status of node %q: %w", nodeID, err)
		}
		result.Statuses[nodeID] = status

		nodeResult, err := state.GetNodeResult(ctx, nodeID)
		if err == nil && nodeResult != nil {
			result.Usage.Add(nodeResult.Usage)
		}
	}

	logger.InfoContext(ctx, "graph completed",
		"output_node", g.outputNodeID,
		"duration", result.Duration,
		"total_tokens", result.Usage.TotalTokens,
	)
	return result, nil
}

// Reset returns every node to pending and merges initialState into the shared
// state. Execute calls it, so a graph can be executed repeatedly.
func (g *Graph[T]) Reset(ctx context.Context, initialState map[string]any) error {
	state := g.config.stateProvider
	for key, value := range initialState {
		if err := state.Set(ctx, key, value); err != nil {
			return fmt.Errorf("failed to set initial state key %q: %w", key, err)
		}
	}

	if inMemory, ok := state.(*InMemoryStateProvider); ok {
		inMemory.resetNodes(g.topologicalOrder)
		return nil
	}
	for _, nodeID := range g.topologicalOrder {
		if err := state.SetNodeStatus(ctx, nodeID, NodePending); err != nil {
			return fmt.Errorf("failed to reset node %q: %w", nodeID, err)
		}
		if err := state.SetNodeResult(ctx, nodeID, nil); err != nil {
			return fmt.Errorf("failed to reset node %q: %w", nodeID, err)
		}
	}
	return nil
}

func (g *Graph[T]) executeLevels(ctx context.Context, state StateProvider) error {
	for levelIndex, level := range g.levels {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("canceled before level %d: %w", levelIndex, err)
		}

		ready, err := g.readyNodes(ctx, level, state)
		if err != nil {
			return err
		}
		if len(ready) == 0 {
			continue
		}
		if err := g.executeLevel(ctx, ready, state); err != nil {
			return err
		}
	}
	return nil
}

// readyNodes filters a level down to the nodes that should run, marking the
// rest skipped.
func (g *Graph[T]) readyNodes(ctx context.Context, level []string, state StateProvider) ([]string, error) {
	ready := make([]string, 0, len(level))

	for _, nodeID := range level {
		skip, reason, err := g.shouldSkip(ctx, g.nodes[nodeID], state)
		if err != nil {
			return nil, err
		}
		if !skip {
			ready = append(ready, nodeID)
			continue
		}

		if err := state.SetNodeStatus(ctx, nodeID, NodeSkipped); err != nil {
			return nil, fmt.Errorf("failed to mark node %q skipped: %w", nodeID, err)
		}
		g.config.logger.DebugContext(ctx, "graph node skipped", "node", nodeID, "reason", reason)
	}
	return ready, nil
}

func (g *Graph[T]) shouldSkip(ctx context.Context, n *node, state StateProvider) (bool, string, error) {
	for _, dependency := range n.dependencies {
		status, err := state.GetNodeStatus(ctx, dependency)
		if err != nil {
			return false, "", fmt.Errorf("failed to read status of node %q: %w", dependency, err)
		}
		if status == NodeFailed || status == NodeSkipped {
			return true, "upstream " + dependency + " " + string(status), nil
		}
	}

	incoming := 0
	for _, e := range g.edges {
		if e.to != n.id {
			continue
		}
		incoming++
		if e.condition == nil {
			return false, "", nil
		}
		sourceResult, err := state.GetNodeResult(ctx, e.from)
		if err != nil {
			return false, "", fmt.Errorf("failed to read result of node %q: %w", e.from, err)
		}
		if e.condition(ctx, sourceResult, state) {
			return false, "", nil
		}
	}
	if incoming == 0 {
		return false, "", nil
	}
	return true, "edge conditions not satisfied", nil
}

// executeLevel runs the ready nodes of one level. Under fail-fast the errgroup
// context cancels the siblings of a failing node; under continue-on-error the
// failure is only recorded in the state provider.
func (g *Graph[T]) executeLevel(ctx context.Context, ready []string, state StateProvider) error {
	failFast := g.config.errorStrategy != ErrorStrategyContinueOnError

	group, groupCtx := errgroup.WithContext(ctx)
	if g.config.maxConcurrency > 0 {
		group.SetLimit(g.config.maxConcurrency)
	}

	for _, nodeID := range ready {
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return nil
			}

			err := g.executeNode(groupCtx, g.nodes[nodeID], state)
			if err == nil {
				return nil
			}
			if failFast {
				return fmt.Errorf("node %q failed: %w", nodeID, err)
			}
			g.config.logger.WarnContext(ctx, "graph node failed, continuing", "node", nodeID, "error", err)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	// A parent cancellation can stop every node before any of them reports.
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

func (g *Graph[T]) executeNode(ctx context.Context, n *node, state StateProvider) error {
	if err := state.SetNodeStatus(ctx, n.id, NodeRunning); err != nil {
		return fmt.Errorf("failed to mark node running: %w", err)
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	input, err := g.nodeInput(ctx, n, state)
	if err != nil {
		markFailed(ctx, state, n.id, err, 0)
		return err
	}

	start := time.Now()
	result, err := n.executor.Execute(ctx, input)
	duration := time.Since(start)
	if err != nil {
		markFailed(ctx, state, n.id, err, duration)
		return err
	}

	if result == nil {
		result = &NodeResult{}
	}
	result.Duration = duration

	if err := state.SetNodeResult(ctx, n.id, result); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	if err := state.SetNodeStatus(ctx, n.id, NodeCompleted); err != nil {
		return fmt.Errorf("failed to mark node completed: %w", err)
	}

	g.config.logger.DebugContext(ctx, "graph node completed", "node", n.id, "duration", duration)
	return nil
}

func (g *Graph[T]) nodeInput(ctx context.Context, n *node, state StateProvider) (*NodeInput, error) {
	upstream := make(map[string]*NodeResult, len(n.dependencies))
	for _, dependency := range n.dependencies {
		result, err := state.GetNodeResult(ctx, dependency)
		if err != nil {
			return nil, fmt.Errorf("failed to read result of upstream node %q: %w", dependency, err)
		}
		if result != nil {
			upstream[dependency] = result
		}
	}

	nodeClient := g.defaultClient
	if n.client != nil {
		nodeClient = n.client
	}

	return &NodeInput{
		UpstreamResults: upstream,
		SharedState:     state,
		Params:          n.params,
		Client:          nodeClient,
	}, nil
}

// parseOutput converts the output node's result to T, by type assertion when
// possible and otherwise by parsing its string output.
func (g *Graph[T]) parseOutput(ctx context.Context, state StateProvider) (*T, error) {
	result, err := state.GetNodeResult(ctx, g.outputNodeID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		status, _ := state.GetNodeStatus(ctx, g.outputNodeID)
		return nil, fmt.Errorf("output node has no result (status %s)", status)
	}
	if result.Error != nil {
		return nil, result.Error
	}

	switch output := result.Output.(type) {
	case *T:
		return output, nil
	case T:
		return &output, nil
	case string:
		parsed, err := parse.ParseStringAs[T](output)
		if err != nil {
			return nil, err
		}
		return &parsed, nil
	default:
		return nil, fmt.Errorf("output of type %T is neither %T nor a string", result.Output, *new(T))
	}
}

// markFailed records a failure. Its own errors are dropped since the node
// error is what the caller reports.
func markFailed(ctx context.Context, state StateProvider, nodeID string, nodeErr error, duration time.Duration) {
	_ = state.SetNodeStatus(ctx, nodeID, NodeFailed)
	_ = state.SetNodeResult(ctx, nodeID, &NodeResult{Error: nodeErr, Duration: duration})
}
