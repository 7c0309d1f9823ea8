package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leofalp/graphyte/internal/config"
	"github.com/leofalp/graphyte/providers/observability"
	"github.com/leofalp/graphyte/providers/observability/promobs"
	"github.com/leofalp/graphyte/providers/observability/slogobs"
)

// observabilityStack is the logger, the optional log file and the optional
// Prometheus textfile of one run.
type observabilityStack struct {
	observer    *slogobs.Observer
	metrics     *promobs.Metrics
	metricsFile string
	logFile     *slogobs.LogFile
	previous    *slog.Logger
}

// setupObservability logs to stderr in the configured format and, when a
// log file is configured, appends JSON records to it as well. Unset format
// and level fall back to LOG_FORMAT and LOG_LEVEL read through lookup. The
// observer becomes the slog default until close.
func setupObservability(cfg *config.Config, stderr io.Writer, lookup slogobs.Lookup) (*observabilityStack, error) {
	s := &observabilityStack{metricsFile: cfg.MetricsFile, previous: slog.Default()}

	opts := []slogobs.Option{slogobs.WithOutput(stderr), slogobs.WithEnv(lookup)}
	if cfg.LogFormat != "" {
		opts = append(opts, slogobs.WithFormat(slogobs.ParseFormat(cfg.LogFormat)))
	}
	level := slogobs.LevelFromEnv(lookup)
	if cfg.LogLevel != "" {
		level = slogobs.ParseLogLevel(cfg.LogLevel)
		opts = append(opts, slogobs.WithLevel(level))
	}

	if cfg.LogFile != "" {
		f, err := slogobs.OpenLogFile(cfg.LogFile, level)
		if err != nil {
			return nil, err
		}
		s.logFile = f
		opts = append(opts, slogobs.WithTee(f.Handler()))
	}

	if cfg.MetricsFile != "" {
		s.metrics = promobs.New()
		opts = append(opts, slogobs.WithMetrics(s.metrics))
	}

	s.observer = slogobs.New(opts...)
	slog.SetDefault(s.observer.Logger())
	return s, nil
}

// flushMetrics writes the Prometheus textfile when one is configured.
func (s *observabilityStack) flushMetrics(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.metricsFile), 0o755); err != nil {
		s.observer.Warn(ctx, "failed to write metrics", observability.Error(err))
		return
	}
	if err := s.metrics.WriteTextfile(s.metricsFile); err != nil {
		s.observer.Warn(ctx, "failed to write metrics", observability.Error(err))
		return
	}
	s.observer.Debug(ctx, "metrics written", observability.String("path", s.metricsFile))
}

func (s *observabilityStack) close() {
	slog.SetDefault(s.previous)
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}
