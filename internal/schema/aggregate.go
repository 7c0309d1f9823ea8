package schema

// AggregatedInstances merges every instance list of one run.
type AggregatedInstances struct {
	PrimaryDomain         string
	AnalyzedSubDomains    []string
	Instances             map[Kind][]Instance
	RelationshipInstances []RelationshipInstance
}

// Fields returns the ordered JSON object of a. Every list is present, empty
// when its source was absent.
func (a AggregatedInstances) Fields() Fields {
	out := Fields{
		{"primary_domain", a.PrimaryDomain},
		{"analyzed_sub_domains", nonNil(a.AnalyzedSubDomains)},
	}
	for _, kind := range Kinds {
		spec := kind.Spec()
		out = append(out, Field{spec.AggregateField, instanceFields(spec, a.Instances[kind])})
	}
	return append(out, Field{"relationship_instances", nonNil(a.RelationshipInstances)})
}

// MarshalJSON implements json.Marshaler.
func (a AggregatedInstances) MarshalJSON() ([]byte, error) {
	return a.Fields().MarshalJSON()
}

// Len returns the total number of instances across all lists.
func (a AggregatedInstances) Len() int {
	n := len(a.RelationshipInstances)
	for _, list := range a.Instances {
		n += len(list)
	}
	return n
}
