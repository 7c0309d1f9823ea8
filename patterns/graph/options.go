package graph

import (
	"time"

	"github.com/leofalp/graphyte/providers/observability"
)

// Option is a functional option for configuring Graph behavior.
// Options are applied during GraphBuilder construction via NewGraphBuilder.
type Option func(*graphConfig)

// NodeOption is a functional option for configuring individual node behavior.
// Node options are applied via GraphBuilder.AddNode.
type NodeOption func(*node)

// EdgeOption is a functional option for configuring individual edge behavior.
// Edge options are applied via GraphBuilder.AddEdge.
type EdgeOption func(*edge)

// --- Graph Options ---

// WithMaxConcurrency limits the number of nodes that can execute in parallel
// within the same topological level. A value of 0 (default) means unlimited
// concurrency: all ready nodes at a level execute simultaneously.
func WithMaxConcurrency(maxConcurrency int) Option {
	return func(config *graphConfig) {
		config.maxConcurrency = maxConcurrency
	}
}

// WithExecutionTimeout sets the maximum duration for the entire graph execution.
// If the timeout is exceeded, the context is canceled and all running nodes
// receive a cancellation signal. A value of 0 (default) means no timeout.
func WithExecutionTimeout(timeout time.Duration) Option {
	return func(config *graphConfig) {
		config.executionTimeout = timeout
	}
}

// WithClassifier sets the function mapping executor errors to terminal
// statuses. By default every error marks the node failed.
//
// Example:
//
//	graph.NewGraphBuilder(graph.WithClassifier(func(err error) graph.NodeStatus {
//	    if errors.Is(err, errNoInput) {
//	        return graph.NodeSkipped
//	    }
//	    return graph.NodeFailed
//	}))
func WithClassifier(classify Classifier) Option {
	return func(config *graphConfig) {
		if classify != nil {
			config.classify = classify
		}
	}
}

// WithObserver sets the observability provider receiving graph and node
// spans, logs and stage outcome metrics.
func WithObserver(observer observability.Provider) Option {
	return func(config *graphConfig) {
		config.observer = observer
	}
}

// WithWorkflowName names the root trace of every execution.
func WithWorkflowName(name string) Option {
	return func(config *graphConfig) {
		if name != "" {
			config.workflow = name
		}
	}
}

// --- Node Options ---

// WithNodeParams sets key-value parameters that are passed to the node
// during execution via NodeInput.Params. Use this to configure node-specific
// behavior without modifying the executor implementation.
//
// Example:
//
//	builder.AddNode("04a_entity_type_identifier", typeExecutor,
//	    graph.WithNodeParams(map[string]any{"kind": "entity"}),
//	)
func WithNodeParams(params map[string]any) NodeOption {
	return func(nodeConfig *node) {
		nodeConfig.params = params
	}
}

// WithNodeTimeout sets the maximum duration for this node's execution.
// If the timeout is exceeded, the node's context is canceled and the node
// fails with a context deadline exceeded error.
//
// A value of 0 (default) means no node-specific timeout. The graph-level
// execution timeout (WithExecutionTimeout) still applies.
func WithNodeTimeout(timeout time.Duration) NodeOption {
	return func(nodeConfig *node) {
		nodeConfig.timeout = timeout
	}
}

// --- Edge Options ---

// WithSoftEdge makes the edge an ordering constraint only: the target runs
// after the source reaches a terminal status and receives its output when
// there is one, but is not skipped when there is none.
func WithSoftEdge() EdgeOption {
	return func(edgeConfig *edge) {
		edgeConfig.soft = true
	}
}
