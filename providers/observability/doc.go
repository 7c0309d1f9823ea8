// Package observability defines the interfaces and semantic conventions used
// for tracing, metrics and structured logging throughout graphyte.
//
// The central entry point is [Provider], which composes [Tracer], [Metrics]
// and [Logger] into a single injectable dependency. Callers propagate the
// active [Provider], [Span] and [TraceInfo] through a [context.Context];
// [InTrace] wraps a block of work in a named span with a generated trace id
// and guarantees the span is ended on every exit path.
//
// semconv.go holds the attribute keys, span names and metric names shared by
// all components.
package observability
