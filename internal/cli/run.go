package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leofalp/graphyte/core/client"
	"github.com/leofalp/graphyte/core/client/middleware"
	"github.com/leofalp/graphyte/internal/artifact"
	"github.com/leofalp/graphyte/internal/config"
	"github.com/leofalp/graphyte/internal/ingest"
	"github.com/leofalp/graphyte/internal/pipeline"
	"github.com/leofalp/graphyte/internal/steps"
	"github.com/leofalp/graphyte/internal/store"
	"github.com/leofalp/graphyte/providers/observability"
	"github.com/leofalp/graphyte/providers/observability/slogobs"
)

// ErrConflictingInputs is returned when both --file and --dir are given.
var ErrConflictingInputs = errors.New("use either --file or --dir, not both")

type runOptions struct {
	configFile string
	file       string
	dir        string
	visualize  bool
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "analyze the text of one file")
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "analyze every text file directly inside a directory")
	cmd.Flags().BoolVar(&opts.visualize, "visualize", false, "write the workflow graph and exit")
}

func newRunCommand(app *App, opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze a document (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalysis(cmd.Context(), app, cmd, *opts)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func runAnalysis(ctx context.Context, app *App, cmd *cobra.Command, opts runOptions) error {
	cfg, err := app.loadConfig(opts.configFile)
	if err != nil {
		return err
	}

	if opts.visualize {
		return writeVisualization(cmd, cfg)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	obs, err := setupObservability(cfg, app.Stderr, app.LookupEnv)
	if err != nil {
		return err
	}
	defer obs.close()
	chain := middlewares(cfg, obs.observer)

	in, err := readInput(ctx, app, opts)
	if err != nil {
		return err
	}
	in = ingest.Limit(in, cfg.MaxInputLength)

	c, err := client.New(app.NewProvider(cfg),
		client.WithDefaultModel(cfg.DefaultModel),
		client.WithObserver(obs.observer),
		client.WithMiddleware(chain...),
	)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	runner := steps.NewRunner(c, artifact.NewWriter(cfg.OutputDir),
		steps.WithObserver(obs.observer),
		steps.WithModels(cfg.ModelFor),
		steps.WithScoring(cfg.ScoringEnabled),
		steps.WithConcurrency(cfg.MaxConcurrency),
	)
	orchestrator := pipeline.New(runner,
		pipeline.WithObserver(obs.observer),
		pipeline.WithConsole(pipeline.NewConsole(cmd.OutOrStdout())),
		pipeline.WithTraceBaseURL(cfg.TraceBaseURL),
		pipeline.WithMaxConcurrency(cfg.MaxConcurrency),
		pipeline.WithRunTimeout(cfg.RunTimeout),
		pipeline.WithStageTimeout(cfg.StageTimeout),
		pipeline.WithPricing(cfg.PricingTable()),
		pipeline.WithClock(app.Now),
	)

	result, runErr := orchestrator.Run(ctx, in)

	// Bookkeeping runs even when the pipeline was interrupted.
	bg := context.WithoutCancel(ctx)
	if result != nil {
		recordHistory(bg, cfg, obs.observer, result, runErr)
	}
	obs.flushMetrics(bg)

	return runErr
}

// middlewares builds the client chain, outermost first: one retry loop
// around a shared rate limiter, a per-attempt deadline and request logging.
func middlewares(cfg *config.Config, observer *slogobs.Observer) []client.MiddlewareConfig {
	var chain []client.MiddlewareConfig
	if cfg.Retry.Enabled {
		chain = append(chain, middleware.NewRetryMiddleware(middleware.RetryConfig{
			MaxAttempts:    cfg.Retry.Attempts,
			InitialBackoff: cfg.Retry.MinWait,
			MaxBackoff:     cfg.Retry.MaxWait,
			Observer:       observer,
		}))
	} else {
		chain = append(chain, middleware.NewSingleAttemptMiddleware(observer))
	}
	return append(chain,
		middleware.NewRateLimitMiddleware(cfg.RateLimit, 1),
		middleware.NewTimeoutMiddleware(cfg.CallTimeout),
		middleware.NewLoggingMiddleware(observer.Logger(), middleware.LogLevelStandard),
	)
}

func readInput(ctx context.Context, app *App, opts runOptions) (ingest.Input, error) {
	switch {
	case opts.file != "" && opts.dir != "":
		return ingest.Input{}, ErrConflictingInputs
	case opts.file != "":
		in, err := ingest.ReadFile(ctx, opts.file)
		if errors.Is(err, ingest.ErrPDFToolNotFound) {
			return in, fmt.Errorf("%w\n%s", err, ingest.PDFInstallInstructions())
		}
		return in, err
	case opts.dir != "":
		return ingest.ReadDir(ctx, opts.dir)
	}

	if f, ok := app.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintln(app.Stderr, "Enter the text to analyze, then press Ctrl-D (Ctrl-Z on Windows):")
	}
	return ingest.ReadStdin(app.Stdin)
}

func recordHistory(ctx context.Context, cfg *config.Config, observer observability.Provider, result *pipeline.Result, runErr error) {
	if cfg.HistoryDB == "" {
		return
	}
	db, err := store.Open(ctx, cfg.HistoryDB)
	if err != nil {
		observer.Warn(ctx, "run history unavailable", observability.Error(err))
		return
	}
	defer db.Close()

	id, err := db.Record(ctx, historyRecord(result, runErr))
	if err != nil {
		observer.Warn(ctx, "failed to record run history", observability.Error(err))
		return
	}
	observer.Debug(ctx, "run recorded", observability.String("run_id", id))
}

func historyRecord(result *pipeline.Result, runErr error) store.Run {
	run := store.Run{
		Source:      result.Source,
		InputLength: result.InputLength,
		TraceID:     result.TraceID,
		GroupID:     result.GroupID,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
		Status:      "completed",
		Requests:    result.Usage.Requests,
		TotalTokens: result.Usage.TotalUsage.TotalTokens,
		CostUSD:     result.Cost.Total,
	}
	if runErr != nil {
		run.Status = "interrupted"
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	for _, o := range result.Outcomes {
		run.Stages = append(run.Stages, store.Stage{
			Stage:    o.Stage,
			Status:   string(o.Status),
			Reason:   o.Reason,
			Duration: o.Duration,
			TraceID:  o.TraceID,
		})
	}
	return run
}
