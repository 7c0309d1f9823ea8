// Package parse turns raw model output into typed values.
//
// [Decode] is a two-step decoder. It first tries a strict decode of the
// answer into the target type. When that fails, it recovers a generic JSON
// value (stripping code fences, repairing malformed JSON, unwrapping
// schema-shaped {"type","value"} envelopes), validates it against the target
// schema and decodes it again. The outcome is tagged as [Typed], [Validated]
// or [Rejected] so callers can log how an answer was accepted.
package parse
