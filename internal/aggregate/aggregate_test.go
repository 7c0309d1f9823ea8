package aggregate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/graphyte/internal/schema"
	"github.com/leofalp/graphyte/internal/utils"
)

func sampleInputs() Inputs {
	return Inputs{
		Domain: &schema.DomainResult{Domain: " Business "},
		SubDomains: &schema.SubDomainSet{
			PrimaryDomain:        "Business",
			IdentifiedSubDomains: []schema.SubDomain{{SubDomain: "Mergers"}, {SubDomain: "  "}, {SubDomain: "Finance"}},
		},
		Instances: map[schema.Kind]*schema.InstanceSet{
			schema.Entity: {
				Kind: schema.Entity,
				Instances: []schema.Instance{
					{Type: "ORGANIZATION", TextSpan: "Acme", StartChar: utils.Ptr(0), EndChar: utils.Ptr(4)},
					{Type: "ORGANIZATION", TextSpan: "Globex"},
				},
			},
			schema.Measurement: {
				Kind:      schema.Measurement,
				Instances: []schema.Instance{{Type: "Currency Amount", TextSpan: "$2 billion", ConfidenceScore: utils.Ptr(0.9)}},
			},
		},
		Relationships: &schema.RelationshipInstanceSet{
			IdentifiedInstances: []schema.RelationshipInstance{
				{Subject: "Acme", RelationshipType: "ACQUIRED", Object: "Globex"},
			},
		},
	}
}

func TestAggregate_MergesEveryList(t *testing.T) {
	got := Aggregate(sampleInputs())

	assert.Equal(t, "Business", got.PrimaryDomain)
	assert.Equal(t, []string{"Mergers", "Finance"}, got.AnalyzedSubDomains)
	assert.Len(t, got.Instances[schema.Entity], 2)
	assert.Len(t, got.Instances[schema.Measurement], 1)
	assert.Empty(t, got.Instances[schema.Event])
	assert.Len(t, got.RelationshipInstances, 1)
	assert.Equal(t, 4, got.Len())

	for _, kind := range schema.Kinds {
		assert.NotNil(t, got.Instances[kind], "kind %s", kind)
	}
}

func TestAggregate_AllAbsent(t *testing.T) {
	got := Aggregate(Inputs{})

	data, err := schema.Encode(got)
	require.NoError(t, err)
	want := `{"primary_domain":"","analyzed_sub_domains":[],"entity_instances":[],"ontology_instances":[],` +
		`"event_instances":[],"statement_instances":[],"evidence_instances":[],"measurement_instances":[],` +
		`"modality_instances":[],"relationship_instances":[]}`
	assert.Equal(t, want, string(data))
}

func TestAggregate_Idempotent(t *testing.T) {
	for name, in := range map[string]Inputs{"populated": sampleInputs(), "empty": {}} {
		t.Run(name, func(t *testing.T) {
			first, err := schema.Encode(Aggregate(in))
			require.NoError(t, err)
			second, err := schema.Encode(Aggregate(in))
			require.NoError(t, err)
			assert.Equal(t, string(first), string(second))

			if diff := cmp.Diff(Aggregate(in), Aggregate(in)); diff != "" {
				t.Errorf("Aggregate mismatch (-first +second):\n%s", diff)
			}
		})
	}
}

func TestAggregate_IgnoresMislabelledSet(t *testing.T) {
	in := Inputs{Instances: map[schema.Kind]*schema.InstanceSet{
		schema.Event: {Kind: schema.Entity, Instances: []schema.Instance{{Type: "PERSON", TextSpan: "Ada"}}},
	}}
	got := Aggregate(in)
	assert.Empty(t, got.Instances[schema.Event])
	assert.Empty(t, got.Instances[schema.Entity])
}

func TestAggregate_DoesNotAliasInputs(t *testing.T) {
	in := sampleInputs()
	got := Aggregate(in)
	got.Instances[schema.Entity][0].TextSpan = "changed"
	got.RelationshipInstances[0].Object = "changed"

	assert.Equal(t, "Acme", in.Instances[schema.Entity].Instances[0].TextSpan)
	assert.Equal(t, "Globex", in.Relationships.IdentifiedInstances[0].Object)
}
