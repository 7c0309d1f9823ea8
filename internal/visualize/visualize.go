// Package visualize renders the stage workflow as a Graphviz document and
// an interactive HTML graph.
package visualize

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/leofalp/graphyte/internal/artifact"
	"github.com/leofalp/graphyte/internal/pipeline"
)

// Output file names under the visualization directory.
const (
	GraphFile = "agent_workflow_graph.gv"
	HTMLFile  = "agent_workflow_graph.html"
)

var (
	// ErrDuplicateStage is returned when two stages share an id.
	ErrDuplicateStage = errors.New("visualize: duplicate stage")
	// ErrUnknownStage is returned when a stage depends on a missing stage.
	ErrUnknownStage = errors.New("visualize: unknown stage")
	// ErrCycle is returned when the stages cannot be ordered.
	ErrCycle = errors.New("visualize: workflow has a cycle")
)

// categories group stages by their id prefix for colouring.
var categories = []struct {
	name   string
	prefix []string
	color  string
}{
	{"Classification", []string{"01_", "02_", "03_"}, "#4e79a7"},
	{"Concept types", []string{"04"}, "#f28e2b"},
	{"Instances", []string{"05"}, "#59a14f"},
	{"Relationships", []string{"06_", "06b_"}, "#e15759"},
	{"Aggregation", []string{"06c_"}, "#76b7b2"},
}

func categoryOf(id string) int {
	for i, c := range categories {
		for _, p := range c.prefix {
			if strings.HasPrefix(id, p) {
				return i
			}
		}
	}
	return 0
}

type stageNode struct {
	id    int64
	stage pipeline.Stage
	level int
}

func (n *stageNode) ID() int64     { return n.id }
func (n *stageNode) DOTID() string { return n.stage.ID }
func (n *stageNode) Attributes() []encoding.Attribute {
	return []encoding.Attribute{
		{Key: "label", Value: n.stage.Label},
		{Key: "fillcolor", Value: categories[categoryOf(n.stage.ID)].color},
	}
}

type stageEdge struct {
	from, to *stageNode
	soft     bool
}

func (e stageEdge) From() graph.Node         { return e.from }
func (e stageEdge) To() graph.Node           { return e.to }
func (e stageEdge) ReversedEdge() graph.Edge { return stageEdge{from: e.to, to: e.from, soft: e.soft} }
func (e stageEdge) Attributes() []encoding.Attribute {
	if e.soft {
		return []encoding.Attribute{{Key: "style", Value: "dashed"}}
	}
	return nil
}

type dotGraph struct {
	*simple.DirectedGraph
	name string
}

func (g dotGraph) DOTID() string { return g.name }

func (g dotGraph) DOTAttributers() (graphAttrs, nodeAttrs, edgeAttrs encoding.Attributer) {
	return &encoding.Attributes{{Key: "rankdir", Value: "LR"}},
		&encoding.Attributes{{Key: "shape", Value: "box"}, {Key: "style", Value: "rounded,filled"}, {Key: "fontcolor", Value: "white"}},
		&encoding.Attributes{}
}

// Workflow is the stage dependency graph.
type Workflow struct {
	name  string
	g     *simple.DirectedGraph
	nodes []*stageNode
	order []*stageNode
}

// Build validates stages and returns their dependency graph.
func Build(name string, stages []pipeline.Stage) (*Workflow, error) {
	w := &Workflow{name: name, g: simple.NewDirectedGraph()}
	byID := make(map[string]*stageNode, len(stages))

	for i, st := range stages {
		if _, dup := byID[st.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStage, st.ID)
		}
		n := &stageNode{id: int64(i), stage: st}
		byID[st.ID] = n
		w.nodes = append(w.nodes, n)
		w.g.AddNode(n)
	}

	for _, n := range w.nodes {
		for _, deps := range []struct {
			ids  []string
			soft bool
		}{{n.stage.Hard, false}, {n.stage.Soft, true}} {
			for _, dep := range deps.ids {
				from, ok := byID[dep]
				if !ok {
					return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownStage, n.stage.ID, dep)
				}
				if from == n {
					return nil, fmt.Errorf("%w: %s depends on itself", ErrCycle, dep)
				}
				w.g.SetEdge(stageEdge{from: from, to: n, soft: deps.soft})
			}
		}
	}

	sorted, err := topo.Sort(w.g)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycle, err)
	}
	for _, gn := range sorted {
		n := gn.(*stageNode)
		for _, up := range graph.NodesOf(w.g.To(n.id)) {
			if lvl := up.(*stageNode).level + 1; lvl > n.level {
				n.level = lvl
			}
		}
		w.order = append(w.order, n)
	}
	return w, nil
}

// Order returns stage ids in a topological order.
func (w *Workflow) Order() []string {
	ids := make([]string, len(w.order))
	for i, n := range w.order {
		ids[i] = n.stage.ID
	}
	return ids
}

// Level returns the longest dependency chain leading to id, or -1.
func (w *Workflow) Level(id string) int {
	for _, n := range w.nodes {
		if n.stage.ID == id {
			return n.level
		}
	}
	return -1
}

// DOT returns the workflow as a Graphviz digraph.
func (w *Workflow) DOT() ([]byte, error) {
	b, err := dot.Marshal(dotGraph{DirectedGraph: w.g, name: "agent_workflow"}, "", "", "  ")
	if err != nil {
		return nil, fmt.Errorf("visualize: marshal dot: %w", err)
	}
	return append(b, '\n'), nil
}

// RenderHTML writes an interactive graph of the workflow to out.
// Columns follow dependency depth.
func (w *Workflow) RenderHTML(out io.Writer) error {
	rows := map[int]int{}
	nodes := make([]opts.GraphNode, 0, len(w.order))
	for _, n := range w.order {
		row := rows[n.level]
		rows[n.level]++
		nodes = append(nodes, opts.GraphNode{
			Name:       n.stage.ID,
			X:          float32(n.level * 220),
			Y:          float32(row * 70),
			Category:   categoryOf(n.stage.ID),
			SymbolSize: 28,
			Tooltip:    &opts.Tooltip{Show: opts.Bool(true), Formatter: types.FuncStr(n.stage.Label)},
		})
	}

	var links []opts.GraphLink
	for _, n := range w.nodes {
		for _, dep := range n.stage.Hard {
			links = append(links, opts.GraphLink{Source: dep, Target: n.stage.ID})
		}
		for _, dep := range n.stage.Soft {
			links = append(links, opts.GraphLink{
				Source:    dep,
				Target:    n.stage.ID,
				LineStyle: &opts.LineStyle{Type: "dashed"},
			})
		}
	}

	cats := make([]*opts.GraphCategory, len(categories))
	for i, c := range categories {
		cats[i] = &opts.GraphCategory{Name: c.name, ItemStyle: &opts.ItemStyle{Color: c.color}}
	}

	chart := charts.NewGraph()
	chart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: w.name, Width: "100%", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{Title: w.name, Subtitle: fmt.Sprintf("stages=%d dependencies=%d", len(nodes), len(links))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)
	chart.AddSeries("workflow", nodes, links,
		charts.WithGraphChartOpts(opts.GraphChart{
			Layout:     "none",
			Roam:       opts.Bool(true),
			Draggable:  opts.Bool(true),
			EdgeSymbol: []string{"none", "arrow"},
			Categories: cats,
		}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "right"}),
	)

	if err := chart.Render(out); err != nil {
		return fmt.Errorf("visualize: render html: %w", err)
	}
	return nil
}

// Write renders both documents into the visualization directory under root
// and returns their paths.
func (w *Workflow) Write(root string) ([]string, error) {
	dir := filepath.Join(root, artifact.VisualizationDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("visualize: create %s: %w", dir, err)
	}

	gv, err := w.DOT()
	if err != nil {
		return nil, err
	}
	gvPath := filepath.Join(dir, GraphFile)
	if err := os.WriteFile(gvPath, gv, 0o644); err != nil {
		return nil, fmt.Errorf("visualize: write %s: %w", gvPath, err)
	}

	var html bytes.Buffer
	if err := w.RenderHTML(&html); err != nil {
		return nil, err
	}
	htmlPath := filepath.Join(dir, HTMLFile)
	if err := os.WriteFile(htmlPath, html.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("visualize: write %s: %w", htmlPath, err)
	}

	return []string{gvPath, htmlPath}, nil
}
