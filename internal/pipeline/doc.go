// Package pipeline wires the stages of package steps into a DAG and runs it
// for one document.
//
// Every stage gates on the stages whose results it cannot do without (hard
// edges). The aggregator and the relationship instance extractor also read
// optional results (soft edges) that only order execution. A stage that
// fails, finds nothing or is skipped never stops its siblings: the run
// always completes and reports a terminal status per stage.
package pipeline
