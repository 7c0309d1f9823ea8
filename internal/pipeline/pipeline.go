package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leofalp/graphyte/core/cost"
	"github.com/leofalp/graphyte/core/overview"
	"github.com/leofalp/graphyte/internal/aggregate"
	"github.com/leofalp/graphyte/internal/ingest"
	"github.com/leofalp/graphyte/internal/schema"
	"github.com/leofalp/graphyte/internal/steps"
	"github.com/leofalp/graphyte/patterns/graph"
	"github.com/leofalp/graphyte/providers/observability"
)

// WorkflowName names the root trace of a run.
const WorkflowName = "Full Analysis Pipeline"

// Classify maps a stage error to its terminal status.
func Classify(err error) graph.NodeStatus {
	switch {
	case errors.Is(err, steps.ErrPrecondition):
		return graph.NodeSkipped
	case errors.Is(err, steps.ErrEmpty):
		return graph.NodeEmpty
	default:
		return graph.NodeFailed
	}
}

// Outcome is the terminal status of one stage.
type Outcome struct {
	Stage    string
	Status   graph.NodeStatus
	Reason   string
	Duration time.Duration
	TraceID  string
}

// Result describes one finished run.
type Result struct {
	TraceID     string
	GroupID     string
	TraceURL    string
	Source      string
	InputLength int
	StartedAt   time.Time
	FinishedAt  time.Time
	Outcomes    []Outcome
	// Aggregate is nil when the aggregator did not complete.
	Aggregate *schema.AggregatedInstances
	Usage     overview.Summary
	// Cost is the usage priced with the orchestrator's table.
	Cost cost.Estimate
}

// Duration returns the wall-clock time of the run.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Count returns the number of stages that ended with status.
func (r *Result) Count(status graph.NodeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Outcome returns the outcome of stage.
func (r *Result) Outcome(stage string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Stage == stage {
			return o, true
		}
	}
	return Outcome{}, false
}

// Orchestrator runs the full stage DAG for one document at a time.
type Orchestrator struct {
	runner         *steps.Runner
	observer       observability.Provider
	console        *Console
	traceBaseURL   string
	maxConcurrency int
	runTimeout     time.Duration
	stageTimeout   time.Duration
	pricing        cost.Table
	now            func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver sets the observer for run logs, spans and stage metrics.
func WithObserver(observer observability.Provider) Option {
	return func(o *Orchestrator) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithConsole sets where human-readable messages go.
func WithConsole(console *Console) Option {
	return func(o *Orchestrator) {
		if console != nil {
			o.console = console
		}
	}
}

// WithTraceBaseURL sets the trace viewer base URL printed at run start.
func WithTraceBaseURL(url string) Option {
	return func(o *Orchestrator) { o.traceBaseURL = url }
}

// WithMaxConcurrency bounds how many stages run at once. Zero means
// unbounded.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) { o.maxConcurrency = n }
}

// WithRunTimeout bounds the whole run. Stages still running at the deadline
// are canceled and the run returns interrupted. Zero means no limit.
func WithRunTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.runTimeout = d }
}

// WithStageTimeout bounds each stage. A stage past its deadline fails and
// the run carries on. Zero means no limit.
func WithStageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stageTimeout = d }
}

// WithPricing sets the table used to estimate the cost of a run.
func WithPricing(table cost.Table) Option {
	return func(o *Orchestrator) {
		if table != nil {
			o.pricing = table
		}
	}
}

// WithClock overrides the run timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New returns an Orchestrator running stages with runner.
func New(runner *steps.Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner:   runner,
		observer: observability.Nop(),
		console:  NewConsole(nil),
		pricing:  cost.DefaultTable(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run analyzes in and returns the outcome of every stage. Stage failures are
// reported in the Result, never as an error; the error is non-nil only when
// the run was interrupted, and the Result then holds what finished.
func (o *Orchestrator) Run(ctx context.Context, in ingest.Input) (*Result, error) {
	result := &Result{
		Source:      string(in.Source),
		InputLength: in.Len(),
		StartedAt:   o.now().UTC(),
	}

	if strings.TrimSpace(in.Text) == "" {
		o.observer.Warn(ctx, "input is empty",
			observability.String(observability.AttrInputSource, string(in.Source)),
		)
		o.console.Notice("input is empty; nothing to analyze")
	}
	if in.Truncated {
		o.console.Notice(fmt.Sprintf("input truncated to %d characters", result.InputLength))
	}

	workflow, err := o.build(in.Text)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	ledger := overview.New()
	ctx = ledger.ToContext(ctx)

	var report *graph.Report
	traceOpts := observability.TraceOptions{
		Workflow: WorkflowName,
		GroupID:  observability.NewGroupID(),
		Metadata: map[string]string{
			"input_source": string(in.Source),
			"input_length": strconv.Itoa(result.InputLength),
		},
	}
	runErr := observability.InTrace(ctx, o.observer, traceOpts, func(ctx context.Context, info observability.TraceInfo) error {
		result.TraceID, result.GroupID = info.TraceID, info.GroupID
		result.TraceURL = info.URL(o.traceBaseURL)
		o.console.Start(result.InputLength, info.TraceID, result.TraceURL)
		o.observer.Info(ctx, "pipeline started",
			observability.String(observability.AttrTraceID, info.TraceID),
			observability.String(observability.AttrGroupID, info.GroupID),
			observability.String(observability.AttrInputSource, string(in.Source)),
			observability.Int(observability.AttrInputLength, result.InputLength),
			observability.String("trace_url", result.TraceURL),
		)

		var execErr error
		report, execErr = workflow.Execute(ctx)
		return execErr
	})

	result.FinishedAt = o.now().UTC()
	result.Usage = ledger.Summary()
	result.Cost = o.pricing.Estimate(result.Usage.UsageByModel)
	if report != nil {
		result.Outcomes = outcomes(report)
		result.Aggregate, _ = report.Output(steps.StageAggregate).(*schema.AggregatedInstances)
	}
	o.finish(ctx, result)

	if runErr != nil {
		return result, fmt.Errorf("pipeline interrupted: %w", runErr)
	}
	return result, nil
}

func (o *Orchestrator) finish(ctx context.Context, result *Result) {
	for _, outcome := range result.Outcomes {
		attrs := []observability.Attribute{
			observability.String(observability.AttrStage, outcome.Stage),
			observability.String(observability.AttrStageStatus, string(outcome.Status)),
			observability.String(observability.AttrTraceID, outcome.TraceID),
		}
		switch outcome.Status {
		case graph.NodeCompleted:
			o.observer.Debug(ctx, "stage succeeded", attrs...)
		case graph.NodeFailed:
			o.observer.Warn(ctx, "stage failed", append(attrs, observability.String("reason", outcome.Reason))...)
		default:
			o.observer.Info(ctx, "stage "+string(outcome.Status), append(attrs, observability.String("reason", outcome.Reason))...)
		}
	}

	o.observer.Info(ctx, "pipeline finished",
		observability.String(observability.AttrTraceID, result.TraceID),
		observability.Int("stages_completed", result.Count(graph.NodeCompleted)),
		observability.Int("stages_empty", result.Count(graph.NodeEmpty)),
		observability.Int("stages_skipped", result.Count(graph.NodeSkipped)),
		observability.Int("stages_failed", result.Count(graph.NodeFailed)),
		observability.Int("model_requests", result.Usage.Requests),
		observability.Int("model_failures", result.Usage.Failures),
		observability.Int("prompt_tokens", result.Usage.TotalUsage.PromptTokens),
		observability.Int("completion_tokens", result.Usage.TotalUsage.CompletionTokens),
		observability.Int("total_tokens", result.Usage.TotalUsage.TotalTokens),
		observability.Float64("estimated_cost_usd", result.Cost.Total),
		observability.Duration(observability.AttrDuration, result.Duration()),
	)
	o.console.Summary(result)
}

// build assembles the stage DAG for doc.
func (o *Orchestrator) build(doc string) (*graph.Graph, error) {
	executors := o.executors(doc)
	builder := graph.NewGraphBuilder(
		graph.WithClassifier(Classify),
		graph.WithObserver(o.observer),
		graph.WithMaxConcurrency(o.maxConcurrency),
		graph.WithWorkflowName(WorkflowName),
		graph.WithExecutionTimeout(o.runTimeout),
	)
	stages := Stages()
	for _, st := range stages {
		builder.AddNode(st.ID, executors[st.ID],
			graph.WithNodeParams(st.Params),
			graph.WithNodeTimeout(o.stageTimeout),
		)
	}
	for _, st := range stages {
		for _, dep := range st.Hard {
			builder.AddEdge(dep, st.ID)
		}
		for _, dep := range st.Soft {
			builder.AddEdge(dep, st.ID, graph.WithSoftEdge())
		}
	}
	return builder.Build()
}

func (o *Orchestrator) executors(doc string) map[string]graph.NodeExecutor {
	r := o.runner
	executors := map[string]graph.NodeExecutor{
		steps.StageDomain: stageFunc(func(ctx context.Context, _ *graph.NodeInput) (*schema.DomainResult, error) {
			return r.Domain(ctx, doc)
		}),
		steps.StageSubDomains: stageFunc(func(ctx context.Context, in *graph.NodeInput) (*schema.SubDomainSet, error) {
			return r.SubDomains(ctx, doc, domainOf(in))
		}),
		steps.StageTopics: stageFunc(func(ctx context.Context, in *graph.NodeInput) (*schema.TopicMap, error) {
			return r.Topics(ctx, doc, domainOf(in), subDomainsOf(in))
		}),
		steps.StageRelationshipTypes: stageFunc(func(ctx context.Context, in *graph.NodeInput) (*schema.RelationshipTypeMap, error) {
			return r.RelationshipTypes(ctx, doc, domainOf(in), subDomainsOf(in), topicsOf(in),
				upstream[schema.ConceptTypeSet](in, schema.Entity.TypeStage()))
		}),
		steps.StageRelationshipInstances: stageFunc(func(ctx context.Context, in *graph.NodeInput) (*schema.RelationshipInstanceSet, error) {
			return r.RelationshipInstances(ctx, doc, domainOf(in), subDomainsOf(in),
				upstream[schema.RelationshipTypeMap](in, steps.StageRelationshipTypes),
				upstream[schema.InstanceSet](in, schema.Entity.InstanceStage()))
		}),
		steps.StageAggregate: stageFunc(func(ctx context.Context, in *graph.NodeInput) (*schema.AggregatedInstances, error) {
			inputs := aggregate.Inputs{
				Domain:        domainOf(in),
				SubDomains:    subDomainsOf(in),
				Instances:     make(map[schema.Kind]*schema.InstanceSet, len(schema.Kinds)),
				Relationships: upstream[schema.RelationshipInstanceSet](in, steps.StageRelationshipInstances),
			}
			for _, kind := range schema.Kinds {
				if set := upstream[schema.InstanceSet](in, kind.InstanceStage()); set != nil {
					inputs.Instances[kind] = set
				}
			}
			return r.Aggregate(ctx, doc, inputs)
		}),
	}

	conceptTypes := stageFunc(func(ctx context.Context, in *graph.NodeInput) (*schema.ConceptTypeSet, error) {
		kind, err := kindOf(in)
		if err != nil {
			return nil, err
		}
		return r.ConceptTypes(ctx, kind, doc, domainOf(in), subDomainsOf(in), topicsOf(in))
	})
	instances := stageFunc(func(ctx context.Context, in *graph.NodeInput) (*schema.InstanceSet, error) {
		kind, err := kindOf(in)
		if err != nil {
			return nil, err
		}
		return r.Instances(ctx, kind, doc, domainOf(in), subDomainsOf(in),
			upstream[schema.ConceptTypeSet](in, kind.TypeStage()))
	})
	for _, kind := range schema.Kinds {
		executors[kind.TypeStage()] = conceptTypes
		executors[kind.InstanceStage()] = instances
	}
	return executors
}

// stageFunc adapts a typed stage call to a node executor. A nil result
// without error leaves the node empty.
func stageFunc[T any](fn func(ctx context.Context, in *graph.NodeInput) (*T, error)) graph.NodeExecutorFunc {
	return func(ctx context.Context, in *graph.NodeInput) (*graph.NodeResult, error) {
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, nil
		}
		return &graph.NodeResult{Output: out}, nil
	}
}

func upstream[T any](in *graph.NodeInput, stageID string) *T {
	v, _ := in.Output(stageID).(*T)
	return v
}

func kindOf(in *graph.NodeInput) (schema.Kind, error) {
	kind, ok := in.Params[ParamKind].(schema.Kind)
	if !ok {
		return kind, fmt.Errorf("stage has no %q parameter", ParamKind)
	}
	return kind, nil
}

func domainOf(in *graph.NodeInput) *schema.DomainResult {
	return upstream[schema.DomainResult](in, steps.StageDomain)
}

func subDomainsOf(in *graph.NodeInput) *schema.SubDomainSet {
	return upstream[schema.SubDomainSet](in, steps.StageSubDomains)
}

func topicsOf(in *graph.NodeInput) *schema.TopicMap {
	return upstream[schema.TopicMap](in, steps.StageTopics)
}

func outcomes(report *graph.Report) []Outcome {
	out := make([]Outcome, 0, len(report.Order))
	for _, id := range report.Order {
		outcome := Outcome{Stage: id, Status: report.Status(id)}
		if res := report.Results[id]; res != nil {
			outcome.Reason = res.Reason
			outcome.Duration = res.Duration
			outcome.TraceID = res.TraceID
		}
		out = append(out, outcome)
	}
	return out
}
