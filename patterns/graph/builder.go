package graph

import (
	"errors"
	"fmt"
	"slices"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// ErrInvalidGraph wraps every error returned by Build.
var ErrInvalidGraph = errors.New("invalid graph")

// GraphBuilder collects stages and their dependencies and produces an
// executable Graph. Mistakes made while adding nodes or edges are kept and
// reported together by Build, so a chain of calls needs one error check.
//
// Example:
//
//	g, err := graph.NewGraphBuilder(graph.WithClassifier(classify)).
//	    AddNode("01_domain_identifier", domain).
//	    AddNode("02_sub_domain_identifier", subDomains).
//	    AddNode("99_aggregate", aggregate).
//	    AddEdge("01_domain_identifier", "02_sub_domain_identifier").
//	    AddEdge("02_sub_domain_identifier", "99_aggregate", graph.WithSoftEdge()).
//	    Build()
type GraphBuilder struct {
	config *graphConfig
	nodes  map[string]*node
	// order is the insertion order; it breaks ties inside a level.
	order []string
	edges []*edge
	errs  []error
}

// NewGraphBuilder returns an empty builder. Graph options such as
// WithMaxConcurrency, WithExecutionTimeout and WithClassifier apply to every
// execution of the built graph.
func NewGraphBuilder(opts ...Option) *GraphBuilder {
	config := &graphConfig{
		classify: failAll,
		workflow: "graph",
	}
	for _, opt := range opts {
		opt(config)
	}
	return &GraphBuilder{
		config: config,
		nodes:  make(map[string]*node),
	}
}

func (builder *GraphBuilder) fail(format string, args ...any) *GraphBuilder {
	builder.errs = append(builder.errs, fmt.Errorf(format, args...))
	return builder
}

// AddNode registers a stage. WithNodeParams and WithNodeTimeout customize
// it; the pipeline uses them for the per-kind parameter and the stage
// deadline.
//
//	builder.AddNode("04a_entity_type_identifier", conceptTypes,
//	    graph.WithNodeParams(map[string]any{"kind": "entity"}),
//	    graph.WithNodeTimeout(2*time.Minute),
//	)
func (builder *GraphBuilder) AddNode(nodeID string, executor NodeExecutor, opts ...NodeOption) *GraphBuilder {
	switch {
	case nodeID == "":
		return builder.fail("node ID must not be empty")
	case executor == nil:
		return builder.fail("executor must not be nil for node %q", nodeID)
	case builder.nodes[nodeID] != nil:
		return builder.fail("duplicate node ID %q", nodeID)
	}

	graphNode := &node{id: nodeID, executor: executor}
	for _, opt := range opts {
		opt(graphNode)
	}
	builder.nodes[nodeID] = graphNode
	builder.order = append(builder.order, nodeID)
	return builder
}

// AddEdge makes to depend on from. By default from must complete with an
// output or to is skipped; WithSoftEdge only orders the two.
//
//	builder.AddEdge("06_relationship_type_identifier", "07_relationship_instance_extractor")
//	builder.AddEdge("05a_entity_instance_extractor", "07_relationship_instance_extractor", graph.WithSoftEdge())
func (builder *GraphBuilder) AddEdge(from, to string, opts ...EdgeOption) *GraphBuilder {
	switch {
	case from == "" || to == "":
		return builder.fail("edge endpoints must not be empty (from=%q, to=%q)", from, to)
	case from == to:
		return builder.fail("self-loop detected: node %q cannot have an edge to itself", from)
	}

	graphEdge := &edge{from: from, to: to}
	for _, opt := range opts {
		opt(graphEdge)
	}
	builder.edges = append(builder.edges, graphEdge)
	return builder
}

// Build checks the collected nodes and edges and groups the nodes into
// levels. It fails when AddNode or AddEdge recorded a mistake, when the
// graph is empty, when an edge names an unknown node or repeats another
// edge, and when the edges form a cycle. Every error wraps ErrInvalidGraph.
func (builder *GraphBuilder) Build() (*Graph, error) {
	if len(builder.errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, errors.Join(builder.errs...))
	}
	if len(builder.nodes) == 0 {
		return nil, fmt.Errorf("%w: graph must contain at least one node", ErrInvalidGraph)
	}
	if err := builder.checkEdges(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}

	levels, err := levelize(builder.order, builder.edges)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}

	for _, graphEdge := range builder.edges {
		target := builder.nodes[graphEdge.to]
		if graphEdge.soft {
			target.softDependencies = append(target.softDependencies, graphEdge.from)
		} else {
			target.dependencies = append(target.dependencies, graphEdge.from)
		}
	}

	return &Graph{
		nodes:            builder.nodes,
		edges:            builder.edges,
		levels:           levels,
		topologicalOrder: slices.Concat(levels...),
		config:           builder.config,
	}, nil
}

func (builder *GraphBuilder) checkEdges() error {
	seen := make(map[[2]string]bool, len(builder.edges))
	for _, graphEdge := range builder.edges {
		if builder.nodes[graphEdge.from] == nil {
			return fmt.Errorf("edge references non-existent source node %q", graphEdge.from)
		}
		if builder.nodes[graphEdge.to] == nil {
			return fmt.Errorf("edge references non-existent target node %q", graphEdge.to)
		}
		key := [2]string{graphEdge.from, graphEdge.to}
		if seen[key] {
			return fmt.Errorf("duplicate edge from %q to %q", graphEdge.from, graphEdge.to)
		}
		seen[key] = true
	}
	return nil
}

// levelize groups nodeIDs so that every node sits one level below its
// deepest dependency, hard or soft. Level 0 holds the roots. Within a level
// nodes keep their position in nodeIDs.
func levelize(nodeIDs []string, edges []*edge) ([][]string, error) {
	index := make(map[string]int64, len(nodeIDs))
	dag := simple.NewDirectedGraph()
	for i, id := range nodeIDs {
		index[id] = int64(i)
		dag.AddNode(simple.Node(i))
	}
	for _, graphEdge := range edges {
		dag.SetEdge(dag.NewEdge(simple.Node(index[graphEdge.from]), simple.Node(index[graphEdge.to])))
	}

	sorted, err := topo.Sort(dag)
	if err != nil {
		var cycles topo.Unorderable
		if !errors.As(err, &cycles) {
			return nil, err
		}
		var involved []string
		for _, component := range cycles {
			for _, n := range component {
				involved = append(involved, nodeIDs[n.ID()])
			}
		}
		slices.Sort(involved)
		return nil, fmt.Errorf("cycle detected in graph involving nodes: %v", involved)
	}

	depth := make(map[int64]int, len(sorted))
	deepest := 0
	for _, n := range sorted {
		d := 0
		for _, pred := range gonum.NodesOf(dag.To(n.ID())) {
			d = max(d, depth[pred.ID()]+1)
		}
		depth[n.ID()] = d
		deepest = max(deepest, d)
	}

	levels := make([][]string, deepest+1)
	for i, id := range nodeIDs {
		d := depth[int64(i)]
		levels[d] = append(levels[d], id)
	}
	return levels, nil
}
