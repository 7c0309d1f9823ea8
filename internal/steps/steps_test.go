package steps

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/graphyte/core/client"
	"github.com/leofalp/graphyte/internal/aggregate"
	"github.com/leofalp/graphyte/internal/artifact"
	"github.com/leofalp/graphyte/internal/schema"
	"github.com/leofalp/graphyte/internal/utils"
	"github.com/leofalp/graphyte/providers/ai"
	"github.com/leofalp/graphyte/test/provider"
)

const sampleDoc = "Acme Corp agreed to acquire Globex for $2 billion, the companies said on Monday."

var fixedNow = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

type harness struct {
	runner   *Runner
	provider *provider.Scripted
	root     string
}

func newHarness(t *testing.T, routes map[string]provider.Handler, opts ...Option) *harness {
	t.Helper()
	p := provider.New(provider.Router{Key: "agent_name", Routes: routes}.Handle)
	c, err := client.New(p, client.WithDefaultModel("test-model"))
	require.NoError(t, err)
	root := t.TempDir()
	w := artifact.NewWriter(root, artifact.WithClock(fixedNow))
	return &harness{runner: NewRunner(c, w, opts...), provider: p, root: root}
}

func (h *harness) artifact(t *testing.T, loc artifact.Location) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.root, loc.Dir, loc.File))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func noScoring() Option { return WithScoring(false) }

func userPrompt(req ai.ChatRequest) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[len(req.Messages)-1].Content
}

func business() *schema.DomainResult { return &schema.DomainResult{Domain: "Business"} }

func subDomains(names ...string) *schema.SubDomainSet {
	set := &schema.SubDomainSet{PrimaryDomain: "Business"}
	for _, n := range names {
		set.IdentifiedSubDomains = append(set.IdentifiedSubDomains, schema.SubDomain{SubDomain: n})
	}
	return set
}

func topicMap() *schema.TopicMap {
	return &schema.TopicMap{
		PrimaryDomain: "Business",
		SubDomainTopicMap: []schema.SubDomainTopics{
			{SubDomain: "Mergers", IdentifiedTopics: []schema.Topic{{Topic: "Acquisition"}, {Topic: "Valuation"}, {Topic: "Due diligence"}, {Topic: "Integration"}}},
		},
	}
}

func entityTypes(names ...string) *schema.ConceptTypeSet {
	set := &schema.ConceptTypeSet{Kind: schema.Entity, PrimaryDomain: "Business", AnalyzedSubDomains: []string{"Mergers"}}
	for _, n := range names {
		set.Items = append(set.Items, schema.ConceptType{Type: n})
	}
	return set
}

func TestDomain_IdentifiesAndScores(t *testing.T) {
	h := newHarness(t, map[string]provider.Handler{
		"DomainIdentifierAgent": provider.Text(`{"domain":" Business ","relevance_score":0.7}`),
		"ConfidenceScoreAgent":  provider.Text(`{"confidence_score":0.9}`),
		"ClarityScoreAgent":     provider.Text(`{"clarity_score":0.6}`),
	})

	got, err := h.runner.Domain(context.Background(), sampleDoc)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Business", got.Domain)
	assert.Equal(t, utils.Ptr(0.9), got.ConfidenceScore)
	assert.Equal(t, utils.Ptr(0.7), got.RelevanceScore, "model-supplied score is kept")
	assert.Equal(t, utils.Ptr(0.6), got.ClarityScore)
	assert.Empty(t, h.provider.CallsFor("agent_name", "RelevanceScoreAgent"))

	doc := h.artifact(t, artifact.Domain)
	assert.Equal(t, "Business", doc["domain"])
	details := doc["analysis_details"].(map[string]any)
	assert.Equal(t, "DomainResultSchema", details["output_schema"])
	assert.Equal(t, "DomainIdentifierAgent", details["agent_name"])
	assert.Equal(t, "test-model", details["model_used"])
	assert.Equal(t, "2024-05-01T12:00:00.000000+00:00", details["timestamp_utc"])

	for _, call := range h.provider.Calls() {
		assert.Equal(t, StageDomain, call.Metadata[client.MetadataStage])
	}
}

func TestDomain_BlankInputMakesNoCalls(t *testing.T) {
	h := newHarness(t, nil)

	got, err := h.runner.Domain(context.Background(), " \n\t ")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Zero(t, h.provider.CallCount())
}

func TestDomain_BlankAnswerFails(t *testing.T) {
	h := newHarness(t, map[string]provider.Handler{
		"DomainIdentifierAgent": provider.Text(`{"domain":"   "}`),
	}, noScoring())

	got, err := h.runner.Domain(context.Background(), sampleDoc)
	assert.Nil(t, got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPrecondition)
	assert.NoFileExists(t, filepath.Join(h.root, artifact.Domain.Dir, artifact.Domain.File))
}

func TestDomain_PanicIsContained(t *testing.T) {
	h := newHarness(t, map[string]provider.Handler{
		"DomainIdentifierAgent": func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
			panic("boom")
		},
	})

	got, err := h.runner.Domain(context.Background(), sampleDoc)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrPanic)
}

func TestDomain_ScoringFailureLeavesNil(t *testing.T) {
	h := newHarness(t, map[string]provider.Handler{
		"DomainIdentifierAgent": provider.Text(`{"domain":"Business"}`),
		"ConfidenceScoreAgent":  provider.Fail(errors.New("scoring down")),
		"RelevanceScoreAgent":   provider.Text(`{"relevance_score":0.5}`),
		"ClarityScoreAgent":     provider.Text(`not json at all`),
	})

	got, err := h.runner.Domain(context.Background(), sampleDoc)
	require.NoError(t, err)
	assert.Nil(t, got.ConfidenceScore)
	assert.Equal(t, utils.Ptr(0.5), got.RelevanceScore)
	assert.Nil(t, got.ClarityScore)
}

func TestSubDomains_ReconcilesPrimaryDomain(t *testing.T) {
	h := newHarness(t, map[string]provider.Handler{
		"SubDomainIdentifierAgent": provider.Text(`{"primary_domain":"Finance","identified_sub_domains":[{"sub_domain":"Mergers"},{"sub_domain":"  "},{"sub_domain":" Corporate Finance "}]}`),
	}, noScoring())

	got, err := h.runner.SubDomains(context.Background(), sampleDoc, business())
	require.NoError(t, err)
	assert.Equal(t, "Business", got.PrimaryDomain)
	assert.Equal(t, []string{"Mergers", "Corporate Finance"}, got.Names())

	doc := h.artifact(t, artifact.SubDomains)
	assert.Equal(t, "Business", doc["primary_domain"])
	assert.Len(t, doc["identified_sub_domains"], 2)

	calls := h.provider.CallsFor("agent_name", "SubDomainIdentifierAgent")
	require.Len(t, calls, 1)
	assert.Contains(t, userPrompt(calls[0]), "Primary domain: Business")
	assert.Contains(t, userPrompt(calls[0]), "--- Full Text Start ---")
}

func TestSubDomains_AllBlankIsEmpty(t *testing.T) {
	h := newHarness(t, map[string]provider.Handler{
		"SubDomainIdentifierAgent": provider.Text(`{"primary_domain":"Business","identified_sub_domains":[{"sub_domain":" "},{"sub_domain":""}]}`),
	}, noScoring())

	got, err := h.runner.SubDomains(context.Background(), sampleDoc, business())
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrEmpty)

	doc := h.artifact(t, artifact.SubDomains)
	assert.Equal(t, []any{}, doc["identified_sub_domains"])
}

func TestSubDomains_RequiresDomain(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.runner.SubDomains(context.Background(), sampleDoc, nil)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Zero(t, h.provider.CallCount())
}

func TestTopics_FaultIsolation(t *testing.T) {
	topics := func(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
		prompt := userPrompt(req)
		switch {
		case strings.Contains(prompt, "Sub-domain to analyze: Mergers"):
			return provider.Text(`{"sub_domain":"mergers","identified_topics":[{"topic":"Acquisition"}]}`)(ctx, req)
		case strings.Contains(prompt, "Sub-domain to analyze: Regulation"):
			return nil, errors.New("branch down")
		default:
			return provider.Text(`{"sub_domain":"Something Else","identified_topics":[{"topic":"Bonds"},{"topic":" "}]}`)(ctx, req)
		}
	}
	h := newHarness(t, map[string]provider.Handler{"TopicIdentifierAgent": topics}, noScoring())

	got, err := h.runner.Topics(context.Background(), sampleDoc, business(), subDomains("Mergers", "Regulation", "Finance"))
	require.NoError(t, err)
	require.Len(t, got.SubDomainTopicMap, 2)
	assert.Equal(t, "Mergers", got.SubDomainTopicMap[0].SubDomain)
	assert.Equal(t, "Finance", got.SubDomainTopicMap[1].SubDomain, "echo is corrected to the scattered value")
	assert.Len(t, got.SubDomainTopicMap[1].IdentifiedTopics, 1)
	assert.Equal(t, "Generated topics in parallel for 2 sub-domains (out of 3 attempted).", *got.AnalysisSummary)

	doc := h.artifact(t, artifact.Topics)
	details := doc["analysis_details"].(map[string]any)
	assert.EqualValues(t, 3, details["sub_domains_attempted"])
	assert.Equal(t, []any{"Mergers", "Finance"}, details["sub_domains_successfully_processed"])
	assert.Equal(t, "parallel", details["execution_mode"])
	assert.Len(t, h.provider.CallsFor("agent_name", "TopicIdentifierAgent"), 3)
}

func TestTopics_AllBranchesFail(t *testing.T) {
	h := newHarness(t, map[string]provider.Handler{
		"TopicIdentifierAgent": provider.Fail(errors.New("down")),
	}, noScoring())

	got, err := h.runner.Topics(context.Background(), sampleDoc, business(), subDomains("Mergers", "Finance"))
	assert.Nil(t, got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPrecondition)
}

func TestTopics_ScoresEveryTopic(t *testing.T) {
	h := newHarness(t, map[string]provider.Handler{
		"TopicIdentifierAgent": provider.Text(`{"sub_domain":"Mergers","identified_topics":[{"topic":"Acquisition"},{"topic":"Valuation"}]}`),
		"ConfidenceScoreAgent": provider.Text(`{"confidence_score":0.8}`),
		"RelevanceScoreAgent":  provider.Text(`{"relevance_score":0.7}`),
		"ClarityScoreAgent":    provider.Text(`{"clarity_score":0.6}`),
	})

	got, err := h.runner.Topics(context.Background(), sampleDoc, business(), subDomains("Mergers"))
	require.NoError(t, err)
	for _, topic := range got.SubDomainTopicMap[0].IdentifiedTopics {
		assert.Equal(t, utils.Ptr(0.8), topic.ConfidenceScore)
		assert.Equal(t, utils.Ptr(0.7), topic.RelevanceScore)
		assert.Equal(t, utils.Ptr(0.6), topic.ClarityScore)
	}
	assert.Len(t, h.provider.CallsFor("agent_name", "ConfidenceScoreAgent"), 2)

	for _, call := range h.provider.CallsFor("agent_name", "ClarityScoreAgent") {
		assert.Equal(t, StageTopics, call.Metadata[client.MetadataStage])
		assert.True(t, strings.HasPrefix(userPrompt(call), "Topic: "))
	}
}

func TestConceptTypes_Entities(t *testing.T) {
	h := newHarness(t, map[string]provider.Handler{
		"EntityTypeIdentifierAgent": provider.Text(`{"primary_domain":"Business","analyzed_sub_domains":["Mergers"],"identified_entities":[{"entity_type":"ORGANIZATION"},{"entity_type":" "},{"entity_type":"MONEY","relevance_score":0.4}]}`),
		"RelevanceScoreAgent":       provider.Text(`{"relevance_score":0.95}`),
	})

	got, err := h.runner.ConceptTypes(context.Background(), schema.Entity, sampleDoc, business(), subDomains("Mergers"), topicMap())
	require.NoError(t, err)
	assert.Equal(t, []string{"ORGANIZATION", "MONEY"}, got.Names())
	assert.Equal(t, utils.Ptr(0.95), got.Items[0].RelevanceScore)
	assert.Equal(t, utils.Ptr(0.4), got.Items[1].RelevanceScore)
	assert.Len(t, h.provider.CallsFor("agent_name", "RelevanceScoreAgent"), 1)

	doc := h.artifact(t, artifact.TypeLocation(schema.Entity))
	assert.Len(t, doc["identified_entities"], 2)
	assert.Equal(t, "EntityTypeSchema", doc["analysis_details"].(map[string]any)["output_schema"])

	call := h.provider.CallsFor("agent_name", "EntityTypeIdentifierAgent")[0]
	assert.Equal(t, "04a_entity_type_identifier", call.Metadata[client.MetadataStage])
	assert.Contains(t, userPrompt(call), "Mergers: Acquisition, Valuation, Due diligence, Integration")
}

func TestConceptTypes_EmptyListIsEmpty(t *testing.T) {
	h := newHarness(t, map[string]provider.Handler{
		"EventTypeIdentifierAgent": provider.Text(`{"primary_domain":"Business","analyzed_sub_domains":["Mergers"],"identified_events":[]}`),
	}, noScoring())

	got, err := h.runner.ConceptTypes(context.Background(), schema.Event, sampleDoc, business(), subDomains("Mergers"), topicMap())
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrEmpty)
	assert.FileExists(t, filepath.Join(h.root, artifact.TypeLocation(schema.Event).Dir, artifact.TypeLocation(schema.Event).File))
}

func TestConceptTypes_RejectsOtherKind(t *testing.T) {
	h := newHarness(t, map[string]provider.Handler{
		"OntologyTypeIdentifierAgent": provider.Text(`{"primary_domain":"Business","analyzed_sub_domains":["Mergers"],"identified_entities":[{"entity_type":"PERSON"}]}`),
	}, noScoring())

	got, err := h.runner.ConceptTypes(context.Background(), schema.Ontology, sampleDoc, business(), subDomains("Mergers"), topicMap())
	assert.Nil(t, got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmpty)
}

func TestConceptTypes_RequiresTopics(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.runner.ConceptTypes(context.Background(), schema.Entity, sampleDoc, business(), subDomains("Mergers"), nil)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Zero(t, h.provider.CallCount())
}

func TestInstances_DropsBlankSpans(t *testing.T) {
	h := newHarness(t, map[string]provider.Handler{
		"EntityInstanceExtractorAgent": provider.Text(`{"primary_domain":"Business","analyzed_sub_domains":["Mergers"],"analyzed_entity_types":["ORGANIZATION"],
			"identified_instances":[{"entity_type":"ORGANIZATION","text_span":"Acme Corp","start_char":0,"end_char":9},{"entity_type":"ORGANIZATION","text_span":"  "}]}`),
	}, noScoring())

	got, err := h.runner.Instances(context.Background(), schema.Entity, sampleDoc, business(), subDomains("Mergers"), entityTypes("ORGANIZATION"))
	require.NoError(t, err)
	require.Len(t, got.Instances, 1)
	assert.True(t, strings.Contains(sampleDoc, got.Instances[0].TextSpan))
	assert.Equal(t, []string{"ORGANIZATION"}, got.AnalyzedTypes)

	doc := h.artifact(t, artifact.InstanceLocation(schema.Entity))
	assert.Equal(t, []any{"ORGANIZATION"}, doc["analyzed_entity_types"])
}

func TestInstances_RequiresTypes(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.runner.Instances(context.Background(), schema.Entity, sampleDoc, business(), subDomains("Mergers"), entityTypes())
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Zero(t, h.provider.CallCount())
}

func TestRelationshipTypes_FansOutPerEntityType(t *testing.T) {
	rels := func(ctx context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
		if strings.Contains(userPrompt(req), "Focus entity type: ORGANIZATION") {
			return provider.Text(`{"entity_type_focus":"organization","identified_relationships":[{"relationship_type":"ACQUIRED"}]}`)(ctx, req)
		}
		return provider.Text(`{"entity_type_focus":"MONEY","identified_relationships":[{"relationship_type":"VALUED_AT"}]}`)(ctx, req)
	}
	h := newHarness(t, map[string]provider.Handler{"RelationshipTypeIdentifierAgent": rels}, noScoring())

	got, err := h.runner.RelationshipTypes(context.Background(), sampleDoc, business(), subDomains("Mergers"), topicMap(),
		entityTypes("ORGANIZATION", "MONEY", " ORGANIZATION"))
	require.NoError(t, err)
	assert.Equal(t, []string{"MONEY", "ORGANIZATION"}, got.AnalyzedEntityTypes)
	require.Len(t, got.EntityRelationshipsMap, 2)
	assert.Equal(t, "ORGANIZATION", got.EntityRelationshipsMap[1].EntityTypeFocus)
	assert.Equal(t, []string{"VALUED_AT", "ACQUIRED"}, got.Types())
	assert.Equal(t, "Generated relationships in parallel focusing on 2 entity types (out of 2 attempted).", *got.AnalysisSummary)

	calls := h.provider.CallsFor("agent_name", "RelationshipTypeIdentifierAgent")
	require.Len(t, calls, 2)
	assert.Contains(t, userPrompt(calls[0]), "Mergers: Acquisition, Valuation, Due diligence, ...")
}

func TestRelationshipTypes_RequiresEntities(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.runner.RelationshipTypes(context.Background(), sampleDoc, business(), subDomains("Mergers"), topicMap(), nil)
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestRelationshipInstances_Extracts(t *testing.T) {
	h := newHarness(t, map[string]provider.Handler{
		"RelationshipInstanceExtractorAgent": provider.Text(`{"primary_domain":"Tech","analyzed_sub_domains":["Mergers"],
			"identified_instances":[{"subject":"Acme Corp","relationship_type":"ACQUIRED","object":"Globex","snippet":"Acme Corp agreed to acquire Globex"},{"subject":"","relationship_type":"ACQUIRED","object":"x"}]}`),
	}, noScoring())
	rels := &schema.RelationshipTypeMap{EntityRelationshipsMap: []schema.EntityRelationships{
		{EntityTypeFocus: "ORGANIZATION", IdentifiedRelationships: []schema.RelationshipType{{RelationshipType: "ACQUIRED"}, {RelationshipType: "PARTNERED_WITH"}}},
	}}
	entities := &schema.InstanceSet{Kind: schema.Entity, Instances: []schema.Instance{{Type: "ORGANIZATION", TextSpan: "Globex"}}}

	got, err := h.runner.RelationshipInstances(context.Background(), sampleDoc, business(), subDomains("Mergers"), rels, entities)
	require.NoError(t, err)
	assert.Equal(t, "Business", got.PrimaryDomain)
	require.Len(t, got.IdentifiedInstances, 1)
	assert.Equal(t, "Globex", got.IdentifiedInstances[0].Object)

	prompt := userPrompt(h.provider.Calls()[0])
	assert.Contains(t, prompt, "Relationship types: ACQUIRED, PARTNERED_WITH")
	assert.Contains(t, prompt, "Globex (ORGANIZATION)")

	doc := h.artifact(t, artifact.RelationshipInstance)
	assert.Equal(t, "Business", doc["primary_domain"])
}

func TestAggregate_PersistsMergedRecord(t *testing.T) {
	h := newHarness(t, nil)
	in := aggregate.Inputs{
		Domain:     business(),
		SubDomains: subDomains("Mergers"),
		Instances: map[schema.Kind]*schema.InstanceSet{
			schema.Entity: {Kind: schema.Entity, Instances: []schema.Instance{{Type: "ORGANIZATION", TextSpan: "Acme Corp"}}},
		},
	}

	got, err := h.runner.Aggregate(context.Background(), sampleDoc, in)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
	assert.Zero(t, h.provider.CallCount())

	doc := h.artifact(t, artifact.Aggregated)
	assert.Len(t, doc["entity_instances"], 1)
	assert.Equal(t, []any{}, doc["relationship_instances"])
	details := doc["analysis_details"].(map[string]any)
	assert.Equal(t, "InstanceAggregator", details["agent_name"])
	assert.Equal(t, "ExtractedInstancesSchema", details["output_schema"])
}

func TestPersistFailureKeepsResult(t *testing.T) {
	p := provider.New(provider.Text(`{"domain":"Business"}`))
	c, err := client.New(p)
	require.NoError(t, err)
	root := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0o644))
	r := NewRunner(c, artifact.NewWriter(root), WithScoring(false))

	got, err := r.Domain(context.Background(), sampleDoc)
	require.NoError(t, err)
	assert.Equal(t, "Business", got.Domain)
}
