package graph

import (
	"context"
	"time"

	"github.com/leofalp/graphyte/providers/observability"
)

// NodeStatus represents the lifecycle status of a node during graph execution.
type NodeStatus string

const (
	// NodePending indicates the node has not started execution yet.
	NodePending NodeStatus = "pending"

	// NodeRunning indicates the node is currently executing.
	NodeRunning NodeStatus = "running"

	// NodeCompleted indicates the node produced an output.
	NodeCompleted NodeStatus = "completed"

	// NodeEmpty indicates the node ran successfully but produced nothing
	// worth passing on. Dependents are skipped.
	NodeEmpty NodeStatus = "empty"

	// NodeFailed indicates the node encountered an error during execution.
	NodeFailed NodeStatus = "failed"

	// NodeSkipped indicates the node did not run, or declined to run,
	// because an input it needs is missing.
	NodeSkipped NodeStatus = "skipped"
)

// Terminal reports whether s is a final status.
func (s NodeStatus) Terminal() bool {
	switch s {
	case NodeCompleted, NodeEmpty, NodeFailed, NodeSkipped:
		return true
	default:
		return false
	}
}

// NodeResult contains the outcome of one node.
type NodeResult struct {
	// Output is the data produced by the node. Nil for every status other
	// than NodeCompleted.
	Output any

	// Error records the execution error of a failed, empty or skipped node.
	Error error

	// Reason is a human-readable explanation for non-completed statuses.
	Reason string

	// Duration is the wall-clock time the node took to execute.
	Duration time.Duration

	// TraceID identifies the trace the node ran in. Empty for skipped nodes
	// that never ran.
	TraceID string

	// Metadata contains arbitrary key-value pairs set by the executor.
	Metadata map[string]any
}

// NodeInput contains all the data available to a node during execution.
type NodeInput struct {
	// UpstreamResults maps each dependency ID to its result. Hard
	// dependencies are always present and completed; soft dependencies are
	// present only when they completed.
	UpstreamResults map[string]*NodeResult

	// Params contains node-specific parameters set at construction time
	// via WithNodeParams.
	Params map[string]any
}

// Output returns the output of dependency id, or nil when it is absent.
func (input *NodeInput) Output(id string) any {
	if input == nil {
		return nil
	}
	if result, ok := input.UpstreamResults[id]; ok && result != nil {
		return result.Output
	}
	return nil
}

// NodeExecutor is the interface that every graph node must implement.
// It defines the processing logic for a single step in the workflow.
//
// Implementations should:
//   - Read upstream outputs from input.UpstreamResults
//   - Return a NodeResult with the Output field populated on success
//   - Return a nil Output, or an error mapped to NodeEmpty by the
//     Classifier, when there is nothing to pass on
//   - Return an error if the execution fails
type NodeExecutor interface {
	Execute(ctx context.Context, input *NodeInput) (*NodeResult, error)
}

// NodeExecutorFunc is an adapter that allows using an ordinary function as a
// NodeExecutor. If f is a function with the appropriate signature,
// NodeExecutorFunc(f) is a NodeExecutor that calls f.
type NodeExecutorFunc func(ctx context.Context, input *NodeInput) (*NodeResult, error)

// Execute calls the underlying function, satisfying the NodeExecutor interface.
func (executorFunc NodeExecutorFunc) Execute(ctx context.Context, input *NodeInput) (*NodeResult, error) {
	return executorFunc(ctx, input)
}

// Classifier maps a non-nil executor error to NodeFailed, NodeEmpty or
// NodeSkipped. Any other returned status is treated as NodeFailed.
type Classifier func(err error) NodeStatus

func failAll(error) NodeStatus { return NodeFailed }

// node represents a single processing step in the graph.
// It is created internally by the GraphBuilder and is not directly instantiated by users.
type node struct {
	// id is the unique identifier for this node within the graph.
	id string

	// executor contains the processing logic for this node.
	executor NodeExecutor

	// params contains node-specific parameters accessible via NodeInput.Params.
	params map[string]any

	// timeout is the maximum duration allowed for this node's execution.
	// Zero means no timeout (uses the graph-level timeout if set).
	timeout time.Duration

	// dependencies lists the nodes that must complete with an output before
	// this node can execute. Populated during Build() from the hard edges.
	dependencies []string

	// softDependencies lists the nodes that must merely finish first.
	softDependencies []string
}

// edge represents a directed connection between two nodes in the graph.
type edge struct {
	// from is the ID of the source node.
	from string

	// to is the ID of the target node.
	to string

	// soft edges order execution without gating it.
	soft bool
}

// graphConfig holds the configuration for a Graph, populated by Options.
type graphConfig struct {
	// maxConcurrency limits the number of nodes that can execute in parallel.
	// Zero means unlimited concurrency.
	maxConcurrency int

	// executionTimeout is the maximum duration for the entire graph execution.
	// Zero means no timeout.
	executionTimeout time.Duration

	// classify maps executor errors to terminal statuses.
	classify Classifier

	// observer receives spans, logs and stage metrics. Nil disables them.
	observer observability.Provider

	// workflow names the root span.
	workflow string
}

// Graph represents a validated, executable directed acyclic graph of
// pipeline stages.
//
// A Graph is created via GraphBuilder.Build(), which validates the graph
// structure (cycle detection, edge validation) and computes the topological
// ordering.
//
// The Graph is safe for sequential use but not for concurrent Execute() calls on the
// same instance, because node statuses are mutated during execution. Create separate
// Graph instances for concurrent workflows.
type Graph struct {
	// nodes maps node IDs to their definitions.
	nodes map[string]*node

	// edges contains all directed edges in the graph.
	edges []*edge

	// levels contains node IDs grouped by topological level.
	// Level 0 nodes have no dependencies; level N nodes depend only on nodes in levels < N.
	levels [][]string

	// topologicalOrder contains all node IDs in topological sort order.
	topologicalOrder []string

	// config holds the graph's execution configuration.
	config *graphConfig

	// observer holds the root span of the current execution.
	observer observerState
}

// Levels returns the node IDs grouped by topological level.
func (graph *Graph) Levels() [][]string {
	out := make([][]string, len(graph.levels))
	for i, level := range graph.levels {
		out[i] = append([]string(nil), level...)
	}
	return out
}

// Order returns every node ID in topological order.
func (graph *Graph) Order() []string {
	return append([]string(nil), graph.topologicalOrder...)
}

// Dependencies returns the hard and soft dependencies of nodeID.
func (graph *Graph) Dependencies(nodeID string) (hard, soft []string) {
	n, ok := graph.nodes[nodeID]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), n.dependencies...), append([]string(nil), n.softDependencies...)
}
