package artifact

import "github.com/leofalp/graphyte/internal/schema"

// Fixed artifact locations of every stage.
var (
	Domain               = Location{"01_domain_identifier", "domain_identifier_output.json"}
	SubDomains           = Location{"02_sub_domain_identifier", "sub_domain_identifier_output.json"}
	Topics               = Location{"03_topic_identifier", "topic_identifier_output.json"}
	Relationships        = Location{"06_relationship_identifier", "relationship_identifier_output.json"}
	RelationshipInstance = Location{"06b_relationship_instance_extractor", "relationship_instance_extractor_output.json"}
	Aggregated           = Location{"06c_aggregated_instances", "aggregated_instance_output.json"}
	VisualizationDir     = "00_visualization"
)

// TypeLocation returns the location of the stage 4 artifact of kind.
func TypeLocation(kind schema.Kind) Location {
	return Location{kind.TypeStage(), string(kind) + "_type_identifier_output.json"}
}

// InstanceLocation returns the location of the stage 5 artifact of kind.
func InstanceLocation(kind schema.Kind) Location {
	return Location{kind.InstanceStage(), string(kind) + "_instance_extractor_output.json"}
}
