// Package fanout runs independent branches concurrently and gathers one
// Result per branch. A failing or panicking branch never cancels its
// siblings; results come back in scatter order regardless of completion
// order.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leofalp/graphyte/providers/observability"
)

// ErrPanic wraps a panic recovered inside a branch.
var ErrPanic = errors.New("fanout: branch panicked")

// Branch is one unit of scattered work.
type Branch[T any] struct {
	// Key labels the branch in logs, traces and summaries.
	Key string
	Run func(ctx context.Context) (T, error)
}

// Result is the outcome of one branch.
type Result[T any] struct {
	Index    int
	Key      string
	Value    T
	Err      error
	TraceID  string
	Duration time.Duration
}

// OK reports whether the branch succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Options configures Gather.
type Options struct {
	// Group names the fan-out in traces and logs, e.g. "step3_topics".
	Group string
	// Limit bounds concurrently running branches. Zero means no limit.
	Limit int
	// Observer receives one span per branch and a log entry per failure.
	// Nil disables both.
	Observer observability.Provider
}

// Gather runs every branch and waits for all of them. Each branch runs in its
// own trace carrying its index, the branch count and its key as metadata.
func Gather[T any](ctx context.Context, opts Options, branches []Branch[T]) []Result[T] {
	results := make([]Result[T], len(branches))
	if len(branches) == 0 {
		return results
	}

	var tracer observability.Tracer
	if opts.Observer != nil {
		tracer = opts.Observer
	}

	var g errgroup.Group
	if opts.Limit > 0 {
		g.SetLimit(opts.Limit)
	}

	for i, branch := range branches {
		g.Go(func() error {
			results[i] = runBranch(ctx, tracer, opts, i, len(branches), branch)
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, r := range results {
		if r.OK() {
			succeeded++
			continue
		}
		if opts.Observer != nil {
			opts.Observer.Warn(ctx, "fan-out branch failed",
				observability.String(observability.AttrStage, opts.Group),
				observability.String(observability.AttrBranchKey, r.Key),
				observability.String(observability.AttrTraceID, r.TraceID),
				observability.Error(r.Err),
			)
		}
	}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.Int(observability.AttrFanoutBranches, len(branches)),
			observability.Int(observability.AttrFanoutSucceeded, succeeded),
		)
	}
	return results
}

func runBranch[T any](ctx context.Context, tracer observability.Tracer, opts Options, index, total int, branch Branch[T]) (res Result[T]) {
	res = Result[T]{Index: index, Key: branch.Key}
	start := time.Now()

	traceOpts := observability.TraceOptions{
		Workflow: opts.Group,
		Metadata: map[string]string{
			"branch_index": strconv.Itoa(index + 1),
			"branch_total": strconv.Itoa(total),
			"branch_label": branch.Key,
		},
	}

	err := observability.InTrace(ctx, tracer, traceOpts, func(ctx context.Context, info observability.TraceInfo) (err error) {
		res.TraceID = info.TraceID
		defer func() {
			if p := recover(); p != nil {
				if opts.Observer != nil {
					opts.Observer.Error(ctx, "fan-out branch panicked",
						observability.String(observability.AttrBranchKey, branch.Key),
						observability.String("stack", string(debug.Stack())),
					)
				}
				err = fmt.Errorf("%w: %s: %v", ErrPanic, branch.Key, p)
			}
		}()
		res.Value, err = branch.Run(ctx)
		return err
	})

	res.Err = err
	res.Duration = time.Since(start)
	return res
}

// Succeeded returns the successful results in scatter order.
func Succeeded[T any](results []Result[T]) []Result[T] {
	var out []Result[T]
	for _, r := range results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Keys returns the keys of results in order.
func Keys[T any](results []Result[T]) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Key)
	}
	return out
}
