package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/leofalp/graphyte/internal/utils"
	"github.com/leofalp/graphyte/providers/observability"
)

// Semantic conventions for graph observability attributes.
const (
	// spanGraphExecute is the span name for the entire graph execution.
	spanGraphExecute = "graph.execute"

	// attrGraphNodeLevel is the topological level of the node (0-based).
	attrGraphNodeLevel = "graph.node.level"

	// attrGraphNodeDependencies lists the upstream node IDs.
	attrGraphNodeDependencies = "graph.node.dependencies"

	// attrGraphNodeReason explains a non-completed status.
	attrGraphNodeReason = "graph.node.reason"

	// attrGraphTotalNodes is the total number of nodes in the graph.
	attrGraphTotalNodes = "graph.total_nodes"

	// attrGraphTotalLevels is the total number of topological levels.
	attrGraphTotalLevels = "graph.total_levels"

	// attrGraphMaxConcurrency is the configured per-level concurrency cap.
	attrGraphMaxConcurrency = "graph.max_concurrency"

	// metricGraphNodeDuration is the histogram for individual node execution duration.
	metricGraphNodeDuration = "graphyte.graph.node.duration"

	// metricGraphExecutionDuration is the histogram for total graph execution duration.
	metricGraphExecutionDuration = "graphyte.graph.execution.duration"
)

// observerState holds the root span for the current graph execution.
type observerState struct {
	// provider is the configured observer. Nil means observability is
	// disabled (zero overhead).
	provider observability.Provider

	// rootSpan is the top-level span for the entire graph execution.
	rootSpan observability.Span
}

// observeGraphStart creates the root span and logs the graph configuration.
// The context is updated in place with the span and observer attached.
func (graph *Graph) observeGraphStart(ctx *context.Context) {
	graph.observer = observerState{provider: graph.config.observer}
	if graph.observer.provider == nil {
		// Try to get observer from context as a fallback.
		graph.observer.provider = observability.ObserverFromContext(*ctx)
	}

	if graph.observer.provider == nil {
		return
	}

	var rootSpan observability.Span
	*ctx, rootSpan = graph.observer.provider.StartSpan(*ctx, spanGraphExecute,
		observability.String(observability.AttrStage, graph.config.workflow),
		observability.Int(attrGraphTotalNodes, len(graph.nodes)),
		observability.Int(attrGraphTotalLevels, len(graph.levels)),
		observability.Int(attrGraphMaxConcurrency, graph.config.maxConcurrency),
	)
	graph.observer.rootSpan = rootSpan

	// Attach span and observer to context for downstream propagation.
	*ctx = observability.ContextWithSpan(*ctx, rootSpan)
	*ctx = observability.ContextWithObserver(*ctx, graph.observer.provider)

	graph.observer.provider.Debug(*ctx, "graph execution started",
		observability.Int(attrGraphTotalNodes, len(graph.nodes)),
		observability.Int(attrGraphTotalLevels, len(graph.levels)),
		observability.Int(attrGraphMaxConcurrency, graph.config.maxConcurrency),
	)
}

// observeGraphCompleted records the completion of the graph execution.
func (graph *Graph) observeGraphCompleted(ctx context.Context, totalDuration time.Duration, completedAll bool) {
	if graph.observer.provider == nil {
		return
	}

	graph.observer.provider.Histogram(metricGraphExecutionDuration).Record(ctx, totalDuration.Seconds())

	status := "completed"
	if !completedAll {
		status = "partial"
	}

	graph.observer.provider.Debug(ctx, "graph execution completed",
		observability.String(observability.AttrStatus, status),
		observability.Duration(observability.AttrDuration, totalDuration),
	)

	if graph.observer.rootSpan != nil {
		graph.observer.rootSpan.SetStatus(observability.StatusOK, "graph execution "+status)
		graph.observer.rootSpan.End()
	}
}

// observeGraphFailed records the early stop of the graph execution.
func (graph *Graph) observeGraphFailed(ctx context.Context, executionError error, totalDuration time.Duration) {
	if graph.observer.provider == nil {
		return
	}

	graph.observer.provider.Error(ctx, "graph execution failed",
		observability.Error(executionError),
		observability.Duration(observability.AttrDuration, totalDuration),
	)

	if graph.observer.rootSpan != nil {
		graph.observer.rootSpan.RecordError(executionError)
		graph.observer.rootSpan.SetStatus(observability.StatusError, "graph execution failed")
		graph.observer.rootSpan.End()
	}
}

// observeNodeStart annotates the node span opened by InTrace.
func (graph *Graph) observeNodeStart(ctx context.Context, nodeID string, level int, dependencies []string) {
	if graph.observer.provider == nil {
		return
	}

	if nodeSpan := observability.SpanFromContext(ctx); nodeSpan != nil {
		nodeSpan.SetAttributes(
			observability.String(observability.AttrStage, nodeID),
			observability.Int(attrGraphNodeLevel, level),
			observability.StringSlice(attrGraphNodeDependencies, dependencies),
		)
	}

	graph.observer.provider.Debug(ctx, "node execution started",
		observability.String(observability.AttrStage, nodeID),
		observability.Int(attrGraphNodeLevel, level),
	)
}

// observeNodeCompleted records a node that produced an output.
func (graph *Graph) observeNodeCompleted(ctx context.Context, nodeID string, result *NodeResult) {
	if graph.observer.provider == nil {
		return
	}

	graph.recordOutcome(ctx, nodeID, NodeCompleted, result.Duration)

	logAttrs := []observability.Attribute{
		observability.String(observability.AttrStage, nodeID),
		observability.String(observability.AttrStageStatus, string(NodeCompleted)),
		observability.String(observability.AttrTraceID, result.TraceID),
		observability.Duration(observability.AttrDuration, result.Duration),
	}

	// Include output preview if it's a string or a Stringer.
	switch output := result.Output.(type) {
	case string:
		logAttrs = append(logAttrs, observability.String("graph.node.output", utils.Truncate(output, 100)))
	case fmt.Stringer:
		logAttrs = append(logAttrs, observability.String("graph.node.output", utils.Truncate(output.String(), 100)))
	}

	graph.observer.provider.Debug(ctx, "node execution completed", logAttrs...)
}

// observeNodeFinished records a node that ran but ended empty or skipped.
func (graph *Graph) observeNodeFinished(ctx context.Context, nodeID string, status NodeStatus, result *NodeResult) {
	if graph.observer.provider == nil {
		return
	}

	graph.recordOutcome(ctx, nodeID, status, result.Duration)

	graph.observer.provider.Info(ctx, "node finished without output",
		observability.String(observability.AttrStage, nodeID),
		observability.String(observability.AttrStageStatus, string(status)),
		observability.String(attrGraphNodeReason, result.Reason),
		observability.String(observability.AttrTraceID, result.TraceID),
	)
}

// observeNodeFailed records the failure of a node.
func (graph *Graph) observeNodeFailed(ctx context.Context, nodeID string, nodeError error, duration time.Duration) {
	if graph.observer.provider == nil {
		return
	}

	graph.recordOutcome(ctx, nodeID, NodeFailed, duration)

	graph.observer.provider.Error(ctx, "node execution failed",
		observability.String(observability.AttrStage, nodeID),
		observability.Error(nodeError),
		observability.Duration(observability.AttrDuration, duration),
	)
}

// observeNodeSkipped records that a node was skipped because a hard
// dependency did not complete.
func (graph *Graph) observeNodeSkipped(ctx context.Context, nodeID string, reason string) {
	if graph.observer.provider == nil {
		return
	}

	graph.observer.provider.Counter(observability.MetricStageOutcomes).Add(ctx, 1,
		observability.String(observability.AttrStage, nodeID),
		observability.String(observability.AttrStageStatus, string(NodeSkipped)),
	)

	graph.observer.provider.Info(ctx, "node skipped",
		observability.String(observability.AttrStage, nodeID),
		observability.String(attrGraphNodeReason, reason),
	)
}

// observeLevelStart logs the beginning of a topological level execution,
// including the number of nodes that will execute at this level.
func (graph *Graph) observeLevelStart(ctx context.Context, level int, nodeIDs []string) {
	if graph.observer.provider == nil {
		return
	}

	graph.observer.provider.Debug(ctx, "level execution started",
		observability.Int(attrGraphNodeLevel, level),
		observability.Int("graph.level.node_count", len(nodeIDs)),
		observability.StringSlice("graph.level.nodes", nodeIDs),
	)
}

func (graph *Graph) recordOutcome(ctx context.Context, nodeID string, status NodeStatus, duration time.Duration) {
	graph.observer.provider.Histogram(metricGraphNodeDuration).Record(ctx, duration.Seconds(),
		observability.String(observability.AttrStage, nodeID),
	)
	graph.observer.provider.Counter(observability.MetricStageOutcomes).Add(ctx, 1,
		observability.String(observability.AttrStage, nodeID),
		observability.String(observability.AttrStageStatus, string(status)),
	)
}
