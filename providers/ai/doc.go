// Package ai defines the provider-agnostic gateway contract used by every
// pipeline stage. A [Provider] accepts a [ChatRequest] (instructions, messages,
// an optional JSON Schema for the structured answer) and returns a
// [ChatResponse] carrying the raw model text and token usage.
//
// Provider implementations map these types onto their own wire format and
// report failures as [*APIError] so that [IsTransient] can classify them for
// the retry middleware.
package ai
