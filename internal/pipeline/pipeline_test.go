package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/graphyte/core/client"
	"github.com/leofalp/graphyte/core/cost"
	"github.com/leofalp/graphyte/internal/artifact"
	"github.com/leofalp/graphyte/internal/ingest"
	"github.com/leofalp/graphyte/internal/schema"
	"github.com/leofalp/graphyte/internal/steps"
	"github.com/leofalp/graphyte/patterns/graph"
	"github.com/leofalp/graphyte/test/provider"
)

const sampleDoc = "Acme Corp agreed to acquire Globex for $2 billion, the companies said on Monday."

type harness struct {
	orchestrator *Orchestrator
	provider     *provider.Scripted
	console      *bytes.Buffer
	root         string
}

func newHarness(t *testing.T, routes map[string]provider.Handler, opts ...Option) *harness {
	t.Helper()
	p := provider.New(provider.Router{Key: "agent_name", Routes: routes}.Handle)
	c, err := client.New(p, client.WithDefaultModel("test-model"))
	require.NoError(t, err)

	root := t.TempDir()
	runner := steps.NewRunner(c, artifact.NewWriter(root), steps.WithScoring(false))
	console := &bytes.Buffer{}
	opts = append([]Option{WithConsole(NewConsole(console))}, opts...)
	return &harness{orchestrator: New(runner, opts...), provider: p, console: console, root: root}
}

func (h *harness) run(t *testing.T, text string) *Result {
	t.Helper()
	result, err := h.orchestrator.Run(context.Background(), ingest.Input{Source: ingest.SourceStdin, Text: text})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func (h *harness) artifact(t *testing.T, loc artifact.Location) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.root, loc.Dir, loc.File))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func status(t *testing.T, result *Result, stage string) graph.NodeStatus {
	t.Helper()
	outcome, ok := result.Outcome(stage)
	require.True(t, ok, "no outcome for %s", stage)
	return outcome.Status
}

// acquisitionRoutes answers every stage for sampleDoc. Only the entity
// taxonomy is populated; every other concept type comes back empty.
func acquisitionRoutes() map[string]provider.Handler {
	routes := map[string]provider.Handler{
		"DomainIdentifierAgent":    provider.Text(`{"domain":"Business"}`),
		"SubDomainIdentifierAgent": provider.Text(`{"primary_domain":"Finance","identified_sub_domains":[{"sub_domain":"Mergers"}]}`),
		"TopicIdentifierAgent":     provider.Text(`{"sub_domain":"Mergers","identified_topics":[{"topic":"Acquisition"}]}`),
		"EntityInstanceExtractorAgent": provider.Text(`{"primary_domain":"Business","analyzed_sub_domains":["Mergers"],"analyzed_entity_types":["ORGANIZATION"],
			"identified_instances":[{"entity_type":"ORGANIZATION","text_span":"Acme Corp","start_char":0,"end_char":9}]}`),
		"RelationshipTypeIdentifierAgent": provider.Text(`{"entity_type_focus":"ORGANIZATION","identified_relationships":[{"relationship_type":"ACQUIRED"}]}`),
		"RelationshipInstanceExtractorAgent": provider.Text(`{"primary_domain":"Business","analyzed_sub_domains":["Mergers"],
			"identified_instances":[{"subject":"Acme Corp","relationship_type":"ACQUIRED","object":"Globex","snippet":"Acme Corp agreed to acquire Globex"}]}`),
	}
	for _, kind := range schema.Kinds {
		spec := kind.Spec()
		items := "[]"
		if kind == schema.Entity {
			items = `[{"entity_type":"ORGANIZATION"}]`
		}
		routes[spec.Title+"TypeIdentifierAgent"] = provider.Text(fmt.Sprintf(
			`{"primary_domain":"Business","analyzed_sub_domains":["Mergers"],%q:%s}`, spec.ListField, items))
	}
	return routes
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want graph.NodeStatus
	}{
		{"precondition", fmt.Errorf("wrapped: %w", steps.ErrPrecondition), graph.NodeSkipped},
		{"empty", fmt.Errorf("wrapped: %w", steps.ErrEmpty), graph.NodeEmpty},
		{"panic", steps.ErrPanic, graph.NodeFailed},
		{"transport", errors.New("connection reset"), graph.NodeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestStages_FormValidDAG(t *testing.T) {
	stages := Stages()
	require.Len(t, stages, 3+2*len(schema.Kinds)+3)

	seen := map[string]bool{}
	for _, st := range stages {
		assert.False(t, seen[st.ID], "duplicate stage %s", st.ID)
		for _, dep := range append(append([]string{}, st.Hard...), st.Soft...) {
			assert.True(t, seen[dep], "%s depends on %s which is not listed before it", st.ID, dep)
		}
		seen[st.ID] = true
	}

	o := New(nil)
	_, err := o.build("")
	require.NoError(t, err)
}

func TestStages_KindParams(t *testing.T) {
	byID := map[string]Stage{}
	for _, st := range Stages() {
		byID[st.ID] = st
	}
	for _, kind := range schema.Kinds {
		assert.Equal(t, kind, byID[kind.TypeStage()].Params[ParamKind], kind.TypeStage())
		assert.Equal(t, kind, byID[kind.InstanceStage()].Params[ParamKind], kind.InstanceStage())
	}
	assert.Nil(t, byID[steps.StageDomain].Params)

	_, err := kindOf(&graph.NodeInput{})
	assert.ErrorContains(t, err, `"kind"`)
}

func TestRun_EmptyInputMakesNoCalls(t *testing.T) {
	h := newHarness(t, nil)

	result := h.run(t, "   \n\t")

	assert.Zero(t, h.provider.CallCount())
	assert.Equal(t, len(Stages()), result.Count(graph.NodeSkipped))
	outcome, _ := result.Outcome(steps.StageDomain)
	assert.Contains(t, outcome.Reason, "input is empty")
	assert.Contains(t, h.console.String(), "input is empty")
	assert.Nil(t, result.Aggregate)
	assert.Zero(t, result.Usage.Requests)
}

func TestRun_BlankSubDomainsSkipEverythingAfter(t *testing.T) {
	h := newHarness(t, map[string]provider.Handler{
		"DomainIdentifierAgent":    provider.Text(`{"domain":"Business"}`),
		"SubDomainIdentifierAgent": provider.Text(`{"primary_domain":"Business","identified_sub_domains":[{"sub_domain":"  "},{"sub_domain":""}]}`),
	})

	result := h.run(t, sampleDoc)

	assert.Equal(t, graph.NodeCompleted, status(t, result, steps.StageDomain))
	assert.Equal(t, graph.NodeEmpty, status(t, result, steps.StageSubDomains))
	for _, st := range Stages()[2:] {
		assert.Equal(t, graph.NodeSkipped, status(t, result, st.ID), st.ID)
	}
	assert.Equal(t, 2, h.provider.CallCount())
	assert.Equal(t, 2, result.Usage.Requests)

	topics, _ := result.Outcome(steps.StageTopics)
	assert.Equal(t, `upstream "02_sub_domain_identifier" empty`, topics.Reason)

	doc := h.artifact(t, artifact.SubDomains)
	assert.Empty(t, doc["identified_sub_domains"])
}

func TestRun_FullAnalysis(t *testing.T) {
	h := newHarness(t, acquisitionRoutes(), WithTraceBaseURL("https://platform.openai.com/traces"))

	result := h.run(t, sampleDoc)

	for _, id := range []string{
		steps.StageDomain, steps.StageSubDomains, steps.StageTopics,
		schema.Entity.TypeStage(), schema.Entity.InstanceStage(),
		steps.StageRelationshipTypes, steps.StageRelationshipInstances, steps.StageAggregate,
	} {
		assert.Equal(t, graph.NodeCompleted, status(t, result, id), id)
	}
	for _, kind := range schema.Kinds[1:] {
		assert.Equal(t, graph.NodeEmpty, status(t, result, kind.TypeStage()), kind)
		assert.Equal(t, graph.NodeSkipped, status(t, result, kind.InstanceStage()), kind)
	}

	require.NotNil(t, result.Aggregate)
	require.Len(t, result.Aggregate.Instances[schema.Entity], 1)
	assert.Contains(t, sampleDoc, result.Aggregate.Instances[schema.Entity][0].TextSpan)
	require.Len(t, result.Aggregate.RelationshipInstances, 1)
	assert.Equal(t, "ACQUIRED", result.Aggregate.RelationshipInstances[0].RelationshipType)

	// 3 core calls, 7 type identifiers, 1 entity extractor, 2 relationship calls.
	assert.Equal(t, 13, h.provider.CallCount())
	assert.Equal(t, h.provider.CallCount(), result.Usage.Requests)

	agg := h.artifact(t, artifact.Aggregated)
	assert.Equal(t, "Business", agg["primary_domain"], "upstream domain wins over the echoed one")
	assert.Len(t, agg["entity_instances"], 1)
	assert.Empty(t, agg["event_instances"])

	subs := h.artifact(t, artifact.SubDomains)
	assert.Equal(t, "Business", subs["primary_domain"])

	assert.NotEmpty(t, result.TraceID)
	assert.NotEmpty(t, result.GroupID)
	assert.Equal(t, "https://platform.openai.com/traces/"+result.TraceID, result.TraceURL)
	assert.Contains(t, h.console.String(), result.TraceURL)

	traces := map[string]bool{}
	for _, o := range result.Outcomes {
		if o.Status == graph.NodeSkipped {
			continue
		}
		assert.NotEmpty(t, o.TraceID, o.Stage)
		assert.False(t, traces[o.TraceID], "trace id reused by %s", o.Stage)
		traces[o.TraceID] = true
	}
}

func TestRun_FailedStageIsIsolated(t *testing.T) {
	routes := acquisitionRoutes()
	routes["EntityTypeIdentifierAgent"] = provider.Fail(errors.New("gateway unavailable"))
	routes["EventTypeIdentifierAgent"] = provider.Text(`{"primary_domain":"Business","analyzed_sub_domains":["Mergers"],"identified_events":[{"event_type":"ACQUISITION"}]}`)
	routes["EventInstanceExtractorAgent"] = provider.Text(`{"primary_domain":"Business","analyzed_sub_domains":["Mergers"],"analyzed_event_types":["ACQUISITION"],
		"identified_instances":[{"event_type":"ACQUISITION","text_span":"agreed to acquire"}]}`)
	h := newHarness(t, routes)

	result := h.run(t, sampleDoc)

	assert.Equal(t, graph.NodeFailed, status(t, result, schema.Entity.TypeStage()))
	for _, id := range []string{schema.Entity.InstanceStage(), steps.StageRelationshipTypes, steps.StageRelationshipInstances} {
		assert.Equal(t, graph.NodeSkipped, status(t, result, id), id)
	}
	assert.Equal(t, graph.NodeCompleted, status(t, result, schema.Event.InstanceStage()))
	assert.Equal(t, graph.NodeCompleted, status(t, result, steps.StageAggregate))

	require.NotNil(t, result.Aggregate)
	assert.Empty(t, result.Aggregate.Instances[schema.Entity])
	assert.Len(t, result.Aggregate.Instances[schema.Event], 1)
	assert.Empty(t, result.Aggregate.RelationshipInstances)
	assert.Contains(t, h.console.String(), "failed")
}

func TestRun_CanceledContext(t *testing.T) {
	h := newHarness(t, acquisitionRoutes())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.orchestrator.Run(ctx, ingest.Input{Text: sampleDoc})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Zero(t, h.provider.CallCount())
	assert.Equal(t, len(Stages()), result.Count(graph.NodeSkipped))
}

func TestRun_UsesClock(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticks := 0
	clock := func() time.Time {
		ticks++
		return start.Add(time.Duration(ticks-1) * time.Second)
	}
	h := newHarness(t, nil, WithClock(clock))

	result := h.run(t, "")
	assert.Equal(t, start, result.StartedAt)
	assert.Equal(t, time.Second, result.Duration())
}

func TestRun_EachKindStageRunsItsOwnKind(t *testing.T) {
	h := newHarness(t, acquisitionRoutes())

	h.run(t, sampleDoc)

	for _, kind := range schema.Kinds {
		calls := h.provider.CallsFor("agent_name", kind.Spec().Title+"TypeIdentifierAgent")
		assert.Len(t, calls, 1, kind)
	}
	assert.Len(t, h.provider.CallsFor("agent_name", "EntityInstanceExtractorAgent"), 1)
}

func TestRun_StageTimeoutFailsOnlyThatStage(t *testing.T) {
	routes := acquisitionRoutes()
	routes["DomainIdentifierAgent"] = provider.Block()
	h := newHarness(t, routes, WithStageTimeout(50*time.Millisecond))

	result := h.run(t, sampleDoc)

	outcome, ok := result.Outcome(steps.StageDomain)
	require.True(t, ok)
	assert.Equal(t, graph.NodeFailed, outcome.Status)
	assert.Contains(t, outcome.Reason, "deadline exceeded")
	assert.Equal(t, len(Stages())-1, result.Count(graph.NodeSkipped))
	assert.Equal(t, 1, h.provider.CallCount())
}

func TestRun_RunTimeoutInterrupts(t *testing.T) {
	routes := acquisitionRoutes()
	routes["SubDomainIdentifierAgent"] = provider.Block()
	h := newHarness(t, routes, WithRunTimeout(100*time.Millisecond))

	result, err := h.orchestrator.Run(context.Background(), ingest.Input{Text: sampleDoc})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "pipeline interrupted")
	require.NotNil(t, result)
	assert.Equal(t, graph.NodeCompleted, status(t, result, steps.StageDomain))
	assert.Equal(t, 1, result.Count(graph.NodeCompleted))
	for _, o := range result.Outcomes {
		assert.True(t, o.Status.Terminal(), "%s left %s", o.Stage, o.Status)
	}
}

func TestRun_EstimatesCost(t *testing.T) {
	// Every scripted answer reports one prompt and one completion token.
	pricing := cost.Table{"test-model": {InputCostPerMillion: 1_000_000, OutputCostPerMillion: 2_000_000}}
	h := newHarness(t, acquisitionRoutes(), WithPricing(pricing))

	result := h.run(t, sampleDoc)

	assert.InDelta(t, 3*float64(result.Usage.Requests), result.Cost.Total, 1e-9)
	assert.Empty(t, result.Cost.Unpriced)
	assert.Contains(t, h.console.String(), "est. $39.0000")
}

func TestRun_UnpricedModelIsReported(t *testing.T) {
	h := newHarness(t, acquisitionRoutes())

	result := h.run(t, sampleDoc)

	assert.Zero(t, result.Cost.Total)
	assert.Equal(t, []string{"test-model"}, result.Cost.Unpriced)
	assert.Contains(t, h.console.String(), "unpriced: test-model")
}
