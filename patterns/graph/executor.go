package graph

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/leofalp/graphyte/core/overview"
	"github.com/leofalp/graphyte/providers/observability"
)

// ErrNodePanic wraps a panic recovered from a node executor.
var ErrNodePanic = errors.New("graph: node panicked")

// Report is the outcome of one execution. Every node appears with a
// terminal status.
type Report struct {
	// Order lists node IDs in topological order.
	Order []string

	// Statuses maps node IDs to their terminal status.
	Statuses map[string]NodeStatus

	// Results maps node IDs to their result. Skipped nodes carry a Reason.
	Results map[string]*NodeResult

	// Duration is the wall-clock time of the whole execution.
	Duration time.Duration
}

// Status returns the terminal status of nodeID.
func (report *Report) Status(nodeID string) NodeStatus {
	if report == nil {
		return NodePending
	}
	if status, ok := report.Statuses[nodeID]; ok {
		return status
	}
	return NodePending
}

// Output returns the output of nodeID, or nil when it did not complete.
func (report *Report) Output(nodeID string) any {
	if report == nil || report.Statuses[nodeID] != NodeCompleted {
		return nil
	}
	if result := report.Results[nodeID]; result != nil {
		return result.Output
	}
	return nil
}

// Count returns the number of nodes that ended with status.
func (report *Report) Count(status NodeStatus) int {
	if report == nil {
		return 0
	}
	n := 0
	for _, s := range report.Statuses {
		if s == status {
			n++
		}
	}
	return n
}

// Execute runs the graph by executing nodes in topological order, with nodes at
// the same level running in parallel (subject to maxConcurrency).
//
// The execution proceeds as follows:
//  1. Start the usage ledger found in the context, if any
//  2. Start observability root span
//  3. For each topological level, skip nodes whose hard dependencies did not
//     complete and launch the rest as goroutines, each in its own trace
//  4. Classify each outcome; a failed node never stops its siblings
//  5. Build a Report, marking nodes that never ran as skipped
//
// The returned Report is never nil. The error is non-nil only when the run
// was stopped early by context cancellation or the execution timeout.
//
// Execute is NOT safe for concurrent use on the same Graph instance.
func (graph *Graph) Execute(ctx context.Context) (*Report, error) {
	executionStart := time.Now()

	if ledger := overview.OverviewFromContext(ctx); ledger != nil {
		ledger.StartExecution()
		defer ledger.EndExecution()
	}

	// Start observability.
	graph.observeGraphStart(&ctx)

	state := newNodeState(graph.topologicalOrder)

	// Apply graph-level execution timeout if configured.
	if graph.config.executionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, graph.config.executionTimeout)
		defer cancel()
	}

	// Execute level by level.
	executionError := graph.executeLevels(ctx, state)
	totalDuration := time.Since(executionStart)
	report := graph.buildReport(state, executionError, totalDuration)

	if executionError != nil {
		graph.observeGraphFailed(ctx, executionError, totalDuration)
		return report, fmt.Errorf("graph execution failed: %w", executionError)
	}

	graph.observeGraphCompleted(ctx, totalDuration, report.Count(NodeCompleted) == len(graph.nodes))
	return report, nil
}

// executeLevels iterates through topological levels and executes nodes at
// each level in parallel. It stops only when ctx is done.
func (graph *Graph) executeLevels(ctx context.Context, state *nodeState) error {
	for levelIndex, levelNodeIDs := range graph.levels {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled before level %d: %w", levelIndex, err)
		}

		graph.observeLevelStart(ctx, levelIndex, levelNodeIDs)

		readyNodes := graph.filterReadyNodes(ctx, levelNodeIDs, state)
		if len(readyNodes) == 0 {
			continue
		}
		graph.executeLevel(ctx, readyNodes, levelIndex, state)
	}

	// A deadline that fired during the last level leaves no level to check.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	return nil
}

// filterReadyNodes determines which nodes at a given level should execute.
// A node whose hard dependency did not complete is marked skipped here and
// never called.
func (graph *Graph) filterReadyNodes(ctx context.Context, nodeIDs []string, state *nodeState) []string {
	readyNodes := make([]string, 0, len(nodeIDs))

	for _, nodeID := range nodeIDs {
		reason := ""
		for _, depID := range graph.nodes[nodeID].dependencies {
			if depStatus := state.status(depID); depStatus != NodeCompleted {
				reason = fmt.Sprintf("upstream %q %s", depID, depStatus)
				break
			}
		}

		if reason != "" {
			state.finish(nodeID, NodeSkipped, &NodeResult{Reason: reason})
			graph.observeNodeSkipped(ctx, nodeID, reason)
			continue
		}
		readyNodes = append(readyNodes, nodeID)
	}

	return readyNodes
}

// executeLevel runs all ready nodes at a topological level in parallel,
// at most maxConcurrency at a time. Failures are recorded in state;
// filterReadyNodes skips their dependents on the next levels.
func (graph *Graph) executeLevel(ctx context.Context, readyNodes []string, levelIndex int, state *nodeState) {
	var waitGroup sync.WaitGroup

	var semaphore chan struct{}
	if graph.config.maxConcurrency > 0 {
		semaphore = make(chan struct{}, graph.config.maxConcurrency)
	}

	for _, nodeID := range readyNodes {
		waitGroup.Add(1)

		go func(executingNodeID string) {
			defer waitGroup.Done()

			if semaphore != nil {
				select {
				case semaphore <- struct{}{}:
					defer func() { <-semaphore }()
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}

			graph.executeNode(ctx, executingNodeID, levelIndex, state)
		}(nodeID)
	}

	waitGroup.Wait()
}

// executeNode runs a single node's executor in its own trace, classifies the
// outcome and stores it.
func (graph *Graph) executeNode(ctx context.Context, nodeID string, levelIndex int, state *nodeState) {
	graphNode := graph.nodes[nodeID]
	state.setRunning(nodeID)

	result := &NodeResult{}
	status := NodeFailed

	var tracer observability.Tracer
	if graph.observer.provider != nil {
		tracer = graph.observer.provider
	}
	traceOpts := observability.TraceOptions{
		Workflow: nodeID,
		Metadata: map[string]string{"graph_level": strconv.Itoa(levelIndex)},
	}

	traceErr := observability.InTrace(ctx, tracer, traceOpts, func(nodeContext context.Context, info observability.TraceInfo) error {
		result.TraceID = info.TraceID
		graph.observeNodeStart(nodeContext, nodeID, levelIndex, graphNode.dependencies)

		if graphNode.timeout > 0 {
			var cancel context.CancelFunc
			nodeContext, cancel = context.WithTimeout(nodeContext, graphNode.timeout)
			defer cancel()
		}

		nodeStart := time.Now()
		produced, execError := graph.runExecutor(nodeContext, graphNode.executor, graph.assembleNodeInput(graphNode, state))
		result.Duration = time.Since(nodeStart)

		status = graph.classify(produced, execError)
		if produced != nil {
			result.Metadata = produced.Metadata
		}
		switch status {
		case NodeCompleted:
			result.Output = produced.Output
			return nil
		case NodeEmpty:
			result.Error = execError
			result.Reason = "no output"
			if execError != nil {
				result.Reason = execError.Error()
			}
			return nil
		case NodeSkipped:
			result.Error = execError
			result.Reason = execError.Error()
			return nil
		default:
			result.Error = execError
			result.Reason = execError.Error()
			return execError
		}
	})

	state.finish(nodeID, status, result)

	switch status {
	case NodeCompleted:
		graph.observeNodeCompleted(ctx, nodeID, result)
	case NodeFailed:
		graph.observeNodeFailed(ctx, nodeID, traceErr, result.Duration)
	default:
		graph.observeNodeFinished(ctx, nodeID, status, result)
	}
}

// classify maps an executor outcome to a terminal status.
func (graph *Graph) classify(produced *NodeResult, execError error) NodeStatus {
	if execError == nil {
		if produced == nil || isNilOutput(produced.Output) {
			return NodeEmpty
		}
		return NodeCompleted
	}
	if errors.Is(execError, ErrNodePanic) {
		return NodeFailed
	}
	switch status := graph.config.classify(execError); status {
	case NodeEmpty, NodeSkipped:
		return status
	default:
		return NodeFailed
	}
}

// runExecutor calls executor and converts a panic into ErrNodePanic. The
// stack is logged, not carried in the error.
func (graph *Graph) runExecutor(ctx context.Context, executor NodeExecutor, input *NodeInput) (result *NodeResult, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrNodePanic, recovered)
			if graph.observer.provider != nil {
				graph.observer.provider.Error(ctx, "node panicked",
					observability.Error(err),
					observability.String("stack", string(debug.Stack())),
				)
			}
		}
	}()
	return executor.Execute(ctx, input)
}

// isNilOutput reports whether v is nil or a typed nil pointer, map or slice.
func isNilOutput(v any) bool {
	if v == nil {
		return true
	}
	value := reflect.ValueOf(v)
	switch value.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return value.IsNil()
	default:
		return false
	}
}

// assembleNodeInput creates the NodeInput for a node from the results of its
// hard dependencies and its completed soft dependencies.
func (graph *Graph) assembleNodeInput(graphNode *node, state *nodeState) *NodeInput {
	upstreamResults := make(map[string]*NodeResult, len(graphNode.dependencies)+len(graphNode.softDependencies))
	for _, depID := range graphNode.dependencies {
		if result := state.result(depID); result != nil {
			upstreamResults[depID] = result
		}
	}
	for _, depID := range graphNode.softDependencies {
		if state.status(depID) != NodeCompleted {
			continue
		}
		if result := state.result(depID); result != nil {
			upstreamResults[depID] = result
		}
	}

	return &NodeInput{
		UpstreamResults: upstreamResults,
		Params:          graphNode.params,
	}
}

// buildReport snapshots every node. Nodes that never reached a terminal
// status because the run stopped early are reported as skipped.
func (graph *Graph) buildReport(state *nodeState, stopErr error, duration time.Duration) *Report {
	report := &Report{
		Order:    append([]string(nil), graph.topologicalOrder...),
		Statuses: make(map[string]NodeStatus, len(graph.nodes)),
		Results:  make(map[string]*NodeResult, len(graph.nodes)),
		Duration: duration,
	}
	for _, nodeID := range graph.topologicalOrder {
		status, result := state.status(nodeID), state.result(nodeID)
		if !status.Terminal() {
			reason := "execution stopped"
			if stopErr != nil {
				reason = "execution stopped: " + stopErr.Error()
			}
			status, result = NodeSkipped, &NodeResult{Reason: reason}
		}
		if result == nil {
			result = &NodeResult{}
		}
		report.Statuses[nodeID] = status
		report.Results[nodeID] = result
	}
	return report
}
