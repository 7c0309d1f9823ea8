// Package artifact persists stage results as pretty-printed JSON files with a
// uniform envelope. Every file ends with the keys "analysis_details" and
// "trace_information", in that order.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/leofalp/graphyte/internal/schema"
	"github.com/leofalp/graphyte/providers/observability"
)

// TimestampLayout is the UTC timestamp written to analysis_details.
const TimestampLayout = "2006-01-02T15:04:05.000000+00:00"

// ErrNotObject is returned when a payload does not encode as a JSON object.
var ErrNotObject = errors.New("artifact: payload is not a JSON object")

// Location is the fixed place of one stage's artifact under the output root.
type Location struct {
	Dir  string
	File string
}

// Details is the analysis_details envelope. Extras follow the five fixed keys.
type Details struct {
	SourceTextLength int
	ModelUsed        string
	AgentName        string
	OutputSchema     string
	Extras           schema.Fields
}

// Trace is the trace_information envelope.
type Trace struct {
	TraceID string
	Notes   string
}

// Writer writes artifacts under a root directory.
type Writer struct {
	root string
	now  func() time.Time
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock replaces the clock used for timestamp_utc.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// NewWriter returns a Writer rooted at root.
func NewWriter(root string, opts ...Option) *Writer {
	w := &Writer{root: root, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root returns the output root.
func (w *Writer) Root() string { return w.root }

// Path returns the file path of loc.
func (w *Writer) Path(loc Location) string {
	return filepath.Join(w.root, loc.Dir, loc.File)
}

// Write persists payload with its envelope at loc, replacing any previous
// file. The file is written to a temporary name and renamed into place, so a
// reader never sees a partial document.
func (w *Writer) Write(ctx context.Context, loc Location, payload any, details Details, trace Trace) (string, error) {
	data, err := w.Render(payload, details, trace)
	if err != nil {
		return "", err
	}

	path := w.Path(loc)
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventArtifactWritten,
			observability.String(observability.AttrArtifactPath, path),
			observability.Int(observability.AttrResponseLength, len(data)),
		)
	}
	return path, nil
}

// Render returns the document Write would persist.
func (w *Writer) Render(payload any, details Details, trace Trace) ([]byte, error) {
	body, err := schema.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("artifact: encode payload: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' || body[len(body)-1] != '}' {
		return nil, ErrNotObject
	}

	envelope, err := schema.Encode(schema.Fields{
		{Key: "analysis_details", Value: w.detailsFields(details)},
		{Key: "trace_information", Value: schema.Fields{
			{Key: "trace_id", Value: observability.TraceInfo{TraceID: trace.TraceID}.IDOrNA()},
			{Key: "notes", Value: trace.Notes},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: encode envelope: %w", err)
	}

	// splice the envelope keys onto the end of the payload object
	var merged bytes.Buffer
	merged.Write(body[:len(body)-1])
	if len(bytes.TrimSpace(body[1:len(body)-1])) > 0 {
		merged.WriteByte(',')
	}
	merged.Write(envelope[1:])

	var out bytes.Buffer
	if err := json.Indent(&out, merged.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("artifact: indent: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func (w *Writer) detailsFields(d Details) schema.Fields {
	fields := schema.Fields{
		{Key: "source_text_length", Value: d.SourceTextLength},
		{Key: "model_used", Value: d.ModelUsed},
		{Key: "agent_name", Value: d.AgentName},
		{Key: "output_schema", Value: d.OutputSchema},
		{Key: "timestamp_utc", Value: w.now().UTC().Format(TimestampLayout)},
	}
	return append(fields, d.Extras...)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifact: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("artifact: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("artifact: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("artifact: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("artifact: close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("artifact: chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("artifact: rename into %s: %w", path, err)
	}
	return nil
}
