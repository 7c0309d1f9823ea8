// Package aggregate merges the instance lists of one run into a single
// record. It performs no I/O and no model calls.
package aggregate

import (
	"slices"
	"strings"

	"github.com/leofalp/graphyte/internal/schema"
)

// Inputs are the optional upstream results of the aggregator. Nil entries
// contribute empty lists.
type Inputs struct {
	Domain        *schema.DomainResult
	SubDomains    *schema.SubDomainSet
	Instances     map[schema.Kind]*schema.InstanceSet
	Relationships *schema.RelationshipInstanceSet
}

// Aggregate returns the merged record of in. Every kind gets a list, in
// schema.Kinds order, even when its source is absent. The result shares no
// slices with in.
func Aggregate(in Inputs) schema.AggregatedInstances {
	out := schema.AggregatedInstances{
		AnalyzedSubDomains:    in.SubDomains.Names(),
		Instances:             make(map[schema.Kind][]schema.Instance, len(schema.Kinds)),
		RelationshipInstances: []schema.RelationshipInstance{},
	}
	if in.Domain != nil {
		out.PrimaryDomain = strings.TrimSpace(in.Domain.Domain)
	}
	if out.AnalyzedSubDomains == nil {
		out.AnalyzedSubDomains = []string{}
	}
	for _, kind := range schema.Kinds {
		list := []schema.Instance{}
		if set := in.Instances[kind]; set != nil && set.Kind == kind {
			list = append(list, set.Instances...)
		}
		out.Instances[kind] = list
	}
	if in.Relationships != nil {
		out.RelationshipInstances = slices.Clone(in.Relationships.IdentifiedInstances)
		if out.RelationshipInstances == nil {
			out.RelationshipInstances = []schema.RelationshipInstance{}
		}
	}
	return out
}
