package steps

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/leofalp/graphyte/core/client"
	"github.com/leofalp/graphyte/internal/artifact"
	"github.com/leofalp/graphyte/internal/fanout"
	"github.com/leofalp/graphyte/internal/jsonschema"
	"github.com/leofalp/graphyte/internal/schema"
	"github.com/leofalp/graphyte/providers/observability"
)

var (
	// ErrPrecondition marks a stage skipped for missing upstream results.
	ErrPrecondition = errors.New("precondition not met")
	// ErrEmpty marks a valid answer that carries no items.
	ErrEmpty = errors.New("empty result")
	// ErrPanic wraps a panic recovered at a stage boundary.
	ErrPanic = errors.New("stage panicked")
)

// ScoringModelKey is the model key of scoring sub-calls.
const ScoringModelKey = "scoring"

// Runner carries what every stage needs at run time. It is immutable and
// safe for concurrent use by all stages of a run.
type Runner struct {
	client   *client.Client
	writer   *artifact.Writer
	observer observability.Provider
	models   func(key string) string
	scoring  bool
	limit    int
}

// Option configures a Runner.
type Option func(*Runner)

// WithObserver sets the observer used for stage logs and branch spans.
func WithObserver(observer observability.Provider) Option {
	return func(r *Runner) {
		if observer != nil {
			r.observer = observer
		}
	}
}

// WithModels sets the resolver mapping a model key such as
// "topic_identifier" to a model name.
func WithModels(models func(key string) string) Option {
	return func(r *Runner) {
		if models != nil {
			r.models = models
		}
	}
}

// WithScoring toggles the scoring sub-calls.
func WithScoring(enabled bool) Option {
	return func(r *Runner) { r.scoring = enabled }
}

// WithConcurrency bounds the branches of each fan-out. Zero means unbounded.
func WithConcurrency(limit int) Option {
	return func(r *Runner) { r.limit = limit }
}

// NewRunner returns a Runner sending model calls through c and writing
// artifacts with w.
func NewRunner(c *client.Client, w *artifact.Writer, opts ...Option) *Runner {
	r := &Runner{
		client:   c,
		writer:   w,
		observer: observability.Nop(),
		models:   func(string) string { return c.DefaultModel() },
		scoring:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// stage describes one model-backed stage.
type stage struct {
	id         string
	agent      string
	schemaName string
	schema     *jsonschema.Schema
	// instructions is the system prompt.
	instructions string
}

// modelKey strips the numeric prefix: "04a_entity_type_identifier" becomes
// "entity_type_identifier".
func (s stage) modelKey() string {
	_, key, _ := strings.Cut(s.id, "_")
	return key
}

// ask sends prompt for st and decodes the answer into T.
func ask[T any](ctx context.Context, r *Runner, st stage, modelKey, prompt string) (T, string, error) {
	model := r.models(modelKey)
	sc := client.NewStructured[T](r.client, st.schemaName, st.schema)
	resp, err := sc.SendMessage(ctx, prompt,
		client.WithModel(model),
		client.WithInstructions(st.instructions),
		client.WithMetadata(client.MetadataStage, st.id),
		client.WithMetadata("agent_name", st.agent),
	)
	if err != nil {
		var zero T
		return zero, model, err
	}
	r.observer.Debug(ctx, "model answer decoded",
		observability.String(observability.AttrStage, st.id),
		observability.String(observability.AttrDecodeKind, resp.Kind.String()),
	)
	return resp.Data, model, nil
}

// guard runs fn and converts a panic into ErrPanic. Every error leaving a
// stage is logged here with the stage id.
func (r *Runner) guard(ctx context.Context, stageID string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.observer.Error(ctx, "stage panicked",
				observability.String(observability.AttrStage, stageID),
				observability.String("panic", fmt.Sprint(p)),
				observability.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %s: %v", ErrPanic, stageID, p)
			return
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrPrecondition), errors.Is(err, ErrEmpty):
			r.observer.Info(ctx, "stage produced no result",
				observability.String(observability.AttrStage, stageID),
				observability.String("reason", err.Error()),
			)
		default:
			r.observer.Warn(ctx, "stage failed",
				observability.String(observability.AttrStage, stageID),
				observability.Error(err),
			)
		}
	}()
	return fn(ctx)
}

// persist writes an artifact. A write failure is logged and swallowed: the
// in-memory result is still returned to the caller.
func (r *Runner) persist(ctx context.Context, stageID string, loc artifact.Location, payload any, details artifact.Details, notes string) {
	if r.writer == nil {
		return
	}
	path, err := r.writer.Write(ctx, loc, payload, details, artifact.Trace{
		TraceID: observability.TraceFromContext(ctx).TraceID,
		Notes:   notes,
	})
	if err != nil {
		r.observer.Warn(ctx, "artifact not written",
			observability.String(observability.AttrStage, stageID),
			observability.Error(err),
		)
		return
	}
	r.observer.Info(ctx, "artifact written",
		observability.String(observability.AttrStage, stageID),
		observability.String(observability.AttrArtifactPath, path),
	)
}

func details(doc string, st stage, model, schemaName string, extras ...schema.Field) artifact.Details {
	return artifact.Details{
		SourceTextLength: utf8.RuneCountInString(doc),
		ModelUsed:        model,
		AgentName:        st.agent,
		OutputSchema:     schemaName,
		Extras:           extras,
	}
}

// reconcile returns want, warning when the model echoed a different
// non-blank value for field.
func (r *Runner) reconcile(ctx context.Context, stageID, field, echoed, want string, foldCase bool) string {
	echoed = strings.TrimSpace(echoed)
	same := echoed == want || (foldCase && strings.EqualFold(echoed, want))
	if echoed != "" && !same {
		r.observer.Warn(ctx, "model echoed a different context value; keeping upstream value",
			observability.String(observability.AttrStage, stageID),
			observability.String("field", field),
			observability.String("echoed", echoed),
			observability.String("kept", want),
		)
	}
	return want
}

// reconcileList is reconcile for list-valued context fields.
func (r *Runner) reconcileList(ctx context.Context, stageID, field string, echoed, want []string) []string {
	trimmed := make([]string, 0, len(echoed))
	for _, s := range echoed {
		if s = strings.TrimSpace(s); s != "" {
			trimmed = append(trimmed, s)
		}
	}
	if len(trimmed) > 0 && !slices.Equal(trimmed, want) {
		r.observer.Warn(ctx, "model echoed a different context list; keeping upstream list",
			observability.String(observability.AttrStage, stageID),
			observability.String("field", field),
			observability.StringSlice("echoed", trimmed),
		)
	}
	return slices.Clone(want)
}

func (r *Runner) fanout(group string) fanout.Options {
	return fanout.Options{Group: group, Limit: r.limit, Observer: r.observer}
}

func precondition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

func empty(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEmpty, fmt.Sprintf(format, args...))
}
