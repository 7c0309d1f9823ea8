package schema

import js "github.com/leofalp/graphyte/internal/jsonschema"

// Artifact schema names.
const (
	DomainResultSchemaName         = "DomainResultSchema"
	SubDomainSchemaName            = "SubDomainSchema"
	TopicSchemaName                = "TopicSchema"
	RelationshipSchemaName         = "RelationshipSchema"
	RelationshipInstanceSchemaName = "RelationshipInstanceSchema"
	ExtractedInstancesSchemaName   = "ExtractedInstancesSchema"
)

// ScoreDimension is one of the three scoring judgements.
type ScoreDimension string

const (
	Confidence ScoreDimension = "confidence"
	Relevance  ScoreDimension = "relevance"
	Clarity    ScoreDimension = "clarity"
)

// AllDimensions lists every dimension in report order.
var AllDimensions = []ScoreDimension{Confidence, Relevance, Clarity}

// Field returns the JSON key of the score, e.g. "confidence_score".
func (d ScoreDimension) Field() string { return string(d) + "_score" }

// SchemaName returns the model schema name, e.g. "ConfidenceScoreSchema".
func (d ScoreDimension) SchemaName() string {
	switch d {
	case Confidence:
		return "ConfidenceScoreSchema"
	case Relevance:
		return "RelevanceScoreSchema"
	default:
		return "ClarityScoreSchema"
	}
}

// ScoreSchema is the model schema of one scoring call.
func ScoreSchema(d ScoreDimension) *js.Schema {
	return js.Object("A single "+string(d)+" judgement.",
		js.Field(d.Field(), js.Score("Score between 0.0 and 1.0.")),
	)
}

func optionalScores(dims ...ScoreDimension) []js.Property {
	props := make([]js.Property, 0, len(dims))
	for _, d := range dims {
		props = append(props, js.OptionalField(d.Field(), js.Score("Optional "+string(d)+" score between 0.0 and 1.0.")))
	}
	return props
}

func summaryField() js.Property {
	return js.OptionalField("analysis_summary", js.String("Brief overall summary of the analysis."))
}

// DomainSchema is the stage 1 model schema.
func DomainSchema() *js.Schema {
	return js.Object("The single primary domain of the text.",
		append([]js.Property{js.Field("domain", js.String("Concise label of the dominant domain, e.g. Finance or Healthcare."))},
			optionalScores(AllDimensions...)...)...,
	)
}

// SubDomainIdentifierSchema is the stage 2 model schema.
func SubDomainIdentifierSchema() *js.Schema {
	item := js.Object("One sub-domain.",
		append([]js.Property{js.Field("sub_domain", js.String("Name of the sub-domain."))},
			optionalScores(AllDimensions...)...)...,
	)
	return js.Object("Sub-domains of the primary domain found in the text.",
		js.Field("primary_domain", js.String("The primary domain provided as context.")),
		js.Field("identified_sub_domains", js.Array("Sub-domains found in the text.", item)),
		summaryField(),
	)
}

// SingleSubDomainTopicSchema is the model schema of one stage 3 branch.
func SingleSubDomainTopicSchema() *js.Schema {
	item := js.Object("One topic.",
		append([]js.Property{js.Field("topic", js.String("The specific topic identified within the text."))},
			optionalScores(AllDimensions...)...)...,
	)
	return js.Object("Topics of one sub-domain.",
		js.Field("sub_domain", js.String("The sub-domain being analyzed.")),
		js.Field("identified_topics", js.Array("Topics relevant to this sub-domain.", item)),
	)
}

// TypeIdentifierSchema is the stage 4 model schema of kind.
func TypeIdentifierSchema(kind Kind) *js.Schema {
	spec := kind.Spec()
	item := js.Object("One "+spec.Singular+".",
		js.Field(spec.TypeField, js.String("The classified "+spec.Singular+".")),
		js.OptionalField("relevance_score", js.Score("Optional relevance score between 0.0 and 1.0.")),
	)
	return js.Object("Identified "+spec.Description+".",
		js.Field("primary_domain", js.String("The primary domain provided as context.")),
		js.Field("analyzed_sub_domains", js.Array("The sub-domains provided as context.", js.String(""))),
		js.Field(spec.ListField, js.Array("Identified "+spec.Singular+"s.", item)),
		summaryField(),
	)
}

// InstanceExtractorSchema is the stage 5 model schema of kind.
func InstanceExtractorSchema(kind Kind) *js.Schema {
	spec := kind.Spec()
	item := js.Object("One "+spec.Singular+" mention.",
		append([]js.Property{
			js.Field(spec.TypeField, js.String("One of the provided "+spec.Singular+"s.")),
			js.Field("text_span", js.String("Exact text of the mention, copied verbatim.")),
			js.OptionalField("start_char", js.Integer("Character offset where the mention starts.")),
			js.OptionalField("end_char", js.Integer("Character offset where the mention ends.")),
		}, optionalScores(AllDimensions...)...)...,
	)
	return js.Object("Extracted "+spec.Mentions+".",
		js.Field("primary_domain", js.String("The primary domain provided as context.")),
		js.Field("analyzed_sub_domains", js.Array("The sub-domains provided as context.", js.String(""))),
		js.Field(spec.AnalyzedField, js.Array("The "+spec.Singular+"s searched for.", js.String(""))),
		js.Field("identified_instances", js.Array("Mentions found in the text.", item)),
		summaryField(),
	)
}

// SingleEntityTypeRelationshipSchema is the model schema of one stage 6a
// branch.
func SingleEntityTypeRelationshipSchema() *js.Schema {
	item := js.Object("One relationship type.",
		js.Field("relationship_type", js.String("Relationship type, e.g. WORKS_FOR or ACQUIRED.")),
		js.OptionalField("relevance_score", js.Score("Optional relevance score between 0.0 and 1.0.")),
	)
	return js.Object("Relationships involving one entity type.",
		js.Field("entity_type_focus", js.String("The entity type this analysis focused on.")),
		js.Field("identified_relationships", js.Array("Relationship types found.", item)),
	)
}

// RelationshipInstanceExtractorSchema is the stage 6b model schema.
func RelationshipInstanceExtractorSchema() *js.Schema {
	item := js.Object("One relationship mention.",
		append([]js.Property{
			js.Field("subject", js.String("Text span or identifier of the subject entity.")),
			js.Field("relationship_type", js.String("One of the provided relationship types.")),
			js.Field("object", js.String("Text span or identifier of the object entity.")),
			js.OptionalField("snippet", js.String("Text snippet supporting the relationship.")),
		}, optionalScores(AllDimensions...)...)...,
	)
	return js.Object("Extracted subject-relationship-object triples.",
		js.Field("primary_domain", js.String("The primary domain provided as context.")),
		js.Field("analyzed_sub_domains", js.Array("The sub-domains provided as context.", js.String(""))),
		js.Field("identified_instances", js.Array("Relationship mentions found in the text.", item)),
		summaryField(),
	)
}
