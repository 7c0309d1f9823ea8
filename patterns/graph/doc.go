// Package graph executes a directed acyclic graph of pipeline stages.
//
// Nodes run level by level in topological order; independent nodes at the
// same level run concurrently. Every node ends in exactly one terminal
// status: completed, empty, failed or skipped. A node runs only when each of
// its hard dependencies completed with an output; otherwise it is skipped
// without being called. Soft dependencies only order execution: their output
// is passed along when present and their absence never skips the node.
//
// Executors report "nothing to pass on" either by returning a nil output or
// by returning an error that the configured [Classifier] maps to
// [NodeEmpty] or [NodeSkipped]. Any other error marks the node failed. A
// failure never stops the run: only cancellation or the execution timeout
// ends it early, and every node still reaches a terminal status in the
// returned [Report].
//
// Example:
//
//	g, err := graph.NewGraphBuilder(graph.WithExecutionTimeout(10*time.Minute)).
//	    AddNode("domain", domainExecutor, graph.WithNodeTimeout(time.Minute)).
//	    AddNode("sub_domains", subDomainExecutor).
//	    AddEdge("domain", "sub_domains").
//	    Build()
//
//	report, err := g.Execute(ctx)
//	fmt.Println(report.Status("sub_domains"))
package graph
