package observability

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// NotAvailable is written wherever a trace id is expected but none exists.
const NotAvailable = "N/A"

// TraceInfo identifies one traced unit of work. GroupID links every trace of
// a single pipeline run; TraceID is unique per trace.
type TraceInfo struct {
	TraceID  string
	GroupID  string
	Workflow string
	Metadata map[string]string
}

// IDOrNA returns the trace id, or NotAvailable when it is empty.
func (t TraceInfo) IDOrNA() string {
	if t.TraceID == "" {
		return NotAvailable
	}
	return t.TraceID
}

// URL joins a trace-viewer base URL and the trace id.
func (t TraceInfo) URL(baseURL string) string {
	if t.TraceID == "" || baseURL == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/" + t.TraceID
}

// NewTraceID returns an id of the form trace_<32 hex chars>.
func NewTraceID() string {
	return "trace_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewGroupID returns an id of the form group_<32 hex chars>.
func NewGroupID() string {
	return "group_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// TraceOptions configures InTrace.
type TraceOptions struct {
	// Workflow names the span.
	Workflow string
	// GroupID links this trace to its run. Inherited from the context when empty.
	GroupID string
	// TraceID is generated when empty.
	TraceID string
	// Metadata is attached to the span as string attributes.
	Metadata map[string]string
}

// InTrace runs fn inside a span named after opts.Workflow. A fresh trace id
// is generated unless one is supplied, and the TraceInfo is stored in the
// context handed to fn. The span is ended on every exit path, including a
// panic inside fn (which is re-raised after the span is closed).
//
// A nil tracer still yields a TraceInfo so callers can persist ids.
func InTrace(ctx context.Context, tracer Tracer, opts TraceOptions, fn func(ctx context.Context, info TraceInfo) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	info := TraceInfo{
		TraceID:  opts.TraceID,
		GroupID:  opts.GroupID,
		Workflow: opts.Workflow,
		Metadata: maps.Clone(opts.Metadata),
	}
	if info.TraceID == "" {
		info.TraceID = NewTraceID()
	}
	if info.GroupID == "" {
		info.GroupID = TraceFromContext(ctx).GroupID
	}

	ctx = ContextWithTrace(ctx, info)
	if tracer == nil {
		return fn(ctx, info)
	}

	attrs := []Attribute{
		String(AttrTraceID, info.TraceID),
		String(AttrGroupID, info.GroupID),
	}
	for _, key := range slices.Sorted(maps.Keys(info.Metadata)) {
		attrs = append(attrs, String(AttrMetadataPrefix+key, info.Metadata[key]))
	}

	ctx, span := tracer.StartSpan(ctx, opts.Workflow, attrs...)
	ctx = ContextWithSpan(ctx, span)

	defer func() {
		if recovered := recover(); recovered != nil {
			span.RecordError(fmt.Errorf("panic: %v", recovered))
			span.SetStatus(StatusError, "panic")
			span.End()
			panic(recovered)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(StatusError, err.Error())
		} else {
			span.SetStatus(StatusOK, "")
		}
		span.End()
	}()

	return fn(ctx, info)
}
