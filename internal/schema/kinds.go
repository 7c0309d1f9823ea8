package schema

import "fmt"

// Kind names one of the seven concept taxonomies.
type Kind string

const (
	Entity      Kind = "entity"
	Ontology    Kind = "ontology"
	Event       Kind = "event"
	Statement   Kind = "statement"
	Evidence    Kind = "evidence"
	Measurement Kind = "measurement"
	Modality    Kind = "modality"
)

// Kinds lists every kind in stage order (4a..4g, 5a..5g).
var Kinds = []Kind{Entity, Ontology, Event, Statement, Evidence, Measurement, Modality}

// KindSpec is the per-kind configuration the generic stages are built from.
type KindSpec struct {
	Kind   Kind
	Letter string
	Title  string

	// ListField is the list key of the type set, e.g. "identified_entities".
	ListField string
	// TypeField is the item key naming the type, e.g. "entity_type".
	TypeField string
	// AnalyzedField lists the types an instance set was extracted for.
	AnalyzedField string
	// AggregateField is the list key in the aggregated record.
	AggregateField string

	// Description and Constraint feed the type identification prompt.
	Description string
	Constraint  string
	// Singular names one type in prompts.
	Singular string
	// Mentions names what the instance extractor looks for.
	Mentions string
}

var kindSpecs = map[Kind]KindSpec{
	Entity: {
		Letter: "a", Title: "Entity", ListField: "identified_entities",
		Description: "entity types (e.g. PERSON, ORGANIZATION, LOCATION, DATE, MONEY, PRODUCT, TECHNOLOGY, SCIENTIFIC_CONCEPT, ECONOMIC_INDICATOR)",
		Constraint:  "Do NOT identify event types; another stage handles events.",
		Singular:    "entity type",
		Mentions:    "entity mentions",
	},
	Ontology: {
		Letter: "b", Title: "Ontology", ListField: "identified_ontology_types",
		Description: "ontology types or concepts, referencing standard ontologies (Schema.org, FIBO, domain specific ones) where applicable",
		Constraint:  "Focus on conceptual or taxonomic classifications. Avoid simple entity labels.",
		Singular:    "ontology type",
		Mentions:    "ontology concept mentions",
	},
	Event: {
		Letter: "c", Title: "Event", ListField: "identified_events",
		Description: "event types (e.g. Meeting, Acquisition, Conference, Product Launch, Election, Natural Disaster, Protest, Accident)",
		Constraint:  "Do NOT identify other entity types such as Person, Organization or Location. Focus only on events.",
		Singular:    "event type",
		Mentions:    "event mentions",
	},
	Statement: {
		Letter: "d", Title: "Statement", ListField: "identified_statements",
		Description: "statement types (e.g. Fact, Claim, Opinion, Question, Instruction, Hypothesis, Prediction)",
		Constraint:  "Classify the nature of each statement, not its content or truth value.",
		Singular:    "statement type",
		Mentions:    "statement snippets",
	},
	Evidence: {
		Letter: "e", Title: "Evidence", ListField: "identified_evidence",
		Description: "evidence types (e.g. Statistical Data, Expert Testimony, Anecdote, Citation, Experimental Result, Document Reference)",
		Constraint:  "Classify the kind of support offered, not the claim it supports.",
		Singular:    "evidence type",
		Mentions:    "evidence mentions",
	},
	Measurement: {
		Letter: "f", Title: "Measurement", ListField: "identified_measurements",
		Description: "measurement types (e.g. Currency Amount, Percentage, Duration, Distance, Temperature, Count, Rate)",
		Constraint:  "Classify the quantity being measured, not individual values.",
		Singular:    "measurement type",
		Mentions:    "measurement mentions",
	},
	Modality: {
		Letter: "g", Title: "Modality", ListField: "identified_modalities",
		Description: "modality types describing how information is conveyed (e.g. Text, Table, Image Reference, Chart, Quote, List, Code)",
		Constraint:  "Classify the form of presentation, not the subject matter.",
		Singular:    "modality type",
		Mentions:    "modality references",
	},
}

func init() {
	for kind, spec := range kindSpecs {
		spec.Kind = kind
		spec.TypeField = string(kind) + "_type"
		spec.AnalyzedField = "analyzed_" + string(kind) + "_types"
		spec.AggregateField = string(kind) + "_instances"
		kindSpecs[kind] = spec
	}
}

// Spec returns the configuration of k. It panics on an unknown kind.
func (k Kind) Spec() KindSpec {
	spec, ok := kindSpecs[k]
	if !ok {
		panic(fmt.Sprintf("schema: unknown kind %q", string(k)))
	}
	return spec
}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	_, ok := kindSpecs[k]
	return ok
}

// TypeStage returns the stage id of the type identifier, e.g.
// "04a_entity_type_identifier".
func (k Kind) TypeStage() string {
	return "04" + k.Spec().Letter + "_" + string(k) + "_type_identifier"
}

// InstanceStage returns the stage id of the instance extractor, e.g.
// "05a_entity_instance_extractor".
func (k Kind) InstanceStage() string {
	return "05" + k.Spec().Letter + "_" + string(k) + "_instance_extractor"
}

// TypeSchemaName is the artifact schema name of the type set.
func (k Kind) TypeSchemaName() string { return k.Spec().Title + "TypeSchema" }

// InstanceSchemaName is the artifact schema name of the instance set.
func (k Kind) InstanceSchemaName() string { return k.Spec().Title + "InstanceSchema" }
