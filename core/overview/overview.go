package overview

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/leofalp/graphyte/providers/ai"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// overviewContextKey is the key used to store Overview in context.
const overviewContextKey contextKey = "overview"

// Overview aggregates request counts and token usage for a single run.
// All methods are safe for concurrent use.
type Overview struct {
	mu sync.Mutex

	requests      int
	failures      int
	totalUsage    ai.Usage
	usageByModel  map[string]ai.Usage
	requestsByTag map[string]int
	decodeKinds   map[string]int

	executionStartTime time.Time
	executionEndTime   time.Time
}

// Summary is a point-in-time copy of an Overview.
type Summary struct {
	Requests          int                 `json:"requests"`
	Failures          int                 `json:"failures"`
	TotalUsage        ai.Usage            `json:"total_usage"`
	UsageByModel      map[string]ai.Usage `json:"usage_by_model,omitempty"`
	RequestsByStage   map[string]int      `json:"requests_by_stage,omitempty"`
	DecodeKinds       map[string]int      `json:"decode_kinds,omitempty"`
	ExecutionDuration time.Duration       `json:"execution_duration"`
}

// New returns an empty Overview.
func New() *Overview {
	return &Overview{
		usageByModel:  make(map[string]ai.Usage),
		requestsByTag: make(map[string]int),
		decodeKinds:   make(map[string]int),
	}
}

// OverviewFromContext retrieves the Overview from the context, or nil when
// none was attached.
func OverviewFromContext(ctx context.Context) *Overview {
	if ctx == nil {
		return nil
	}
	overview, _ := ctx.Value(overviewContextKey).(*Overview)
	return overview
}

// ToContext stores the Overview in the given context and returns the enriched context.
func (overview *Overview) ToContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, overviewContextKey, overview)
}

// RecordRequest counts one model request for stage (may be empty) and adds
// its usage when the call succeeded.
func (overview *Overview) RecordRequest(stage, model string, usage *ai.Usage, err error) {
	overview.mu.Lock()
	defer overview.mu.Unlock()

	overview.requests++
	if stage != "" {
		overview.requestsByTag[stage]++
	}
	if err != nil {
		overview.failures++
		return
	}
	if usage == nil {
		return
	}

	overview.totalUsage = addUsage(overview.totalUsage, *usage)
	overview.usageByModel[model] = addUsage(overview.usageByModel[model], *usage)
}

// RecordDecode counts how a structured answer was accepted ("typed",
// "validated" or "rejected").
func (overview *Overview) RecordDecode(kind string) {
	overview.mu.Lock()
	defer overview.mu.Unlock()
	overview.decodeKinds[kind]++
}

// StartExecution marks the start of the run.
func (overview *Overview) StartExecution() {
	overview.mu.Lock()
	defer overview.mu.Unlock()
	overview.executionStartTime = time.Now()
}

// EndExecution marks the end of the run.
func (overview *Overview) EndExecution() {
	overview.mu.Lock()
	defer overview.mu.Unlock()
	overview.executionEndTime = time.Now()
}

// Summary returns a copy of the current totals.
func (overview *Overview) Summary() Summary {
	overview.mu.Lock()
	defer overview.mu.Unlock()

	summary := Summary{
		Requests:        overview.requests,
		Failures:        overview.failures,
		TotalUsage:      overview.totalUsage,
		UsageByModel:    maps.Clone(overview.usageByModel),
		RequestsByStage: maps.Clone(overview.requestsByTag),
		DecodeKinds:     maps.Clone(overview.decodeKinds),
	}
	if !overview.executionStartTime.IsZero() && !overview.executionEndTime.IsZero() {
		summary.ExecutionDuration = overview.executionEndTime.Sub(overview.executionStartTime)
	}
	return summary
}

func addUsage(a, b ai.Usage) ai.Usage {
	return ai.Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
		CachedTokens:     a.CachedTokens + b.CachedTokens,
	}
}
