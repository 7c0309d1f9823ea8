// Package schema holds the records each pipeline stage produces, their JSON
// encoding, and the JSON Schemas sent to the model for every stage.
//
// The seven concept kinds share one record shape whose JSON keys depend on
// the kind ("identified_entities" with "entity_type" items, and so on); see
// [Kind] and [KindSpec]. Records encode with a fixed key order so that two
// runs over identical inputs produce identical bytes.
package schema
