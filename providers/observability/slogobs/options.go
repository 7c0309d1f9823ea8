package slogobs

import (
	"io"
	"log/slog"
	"os"

	"github.com/leofalp/graphyte/providers/observability"
)

// Option is a functional option for configuring the Observer.
type Option func(*config)

// config holds the configuration for creating an Observer.
type config struct {
	format  Format
	level   slog.Level
	output  io.Writer
	colors  bool
	logger  *slog.Logger // If provided, use this logger directly (bypass custom handler)
	tee     []slog.Handler
	metrics observability.Metrics
}

// WithFormat sets the log output format.
func WithFormat(format Format) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithOutput sets the output writer for logs.
func WithOutput(output io.Writer) Option {
	return func(c *config) {
		c.output = output
	}
}

// WithColors enables or disables level styling.
// Only applies to compact and pretty formats.
func WithColors(enabled bool) Option {
	return func(c *config) {
		c.colors = enabled
	}
}

// WithLogger uses an existing slog.Logger instead of creating a custom handler.
// This option takes precedence over format/level/output/colors/tee options.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithEnv resolves format and level from lookup instead of the process
// environment. Later WithFormat and WithLevel options still win.
func WithEnv(lookup Lookup) Option {
	return func(c *config) {
		c.format = FormatFromEnv(lookup)
		c.level = LevelFromEnv(lookup)
	}
}

// WithTee adds handlers that receive every record alongside the console
// handler, e.g. the handler of an OpenLogFile.
func WithTee(handlers ...slog.Handler) Option {
	return func(c *config) {
		c.tee = append(c.tee, handlers...)
	}
}

// WithMetrics forwards counters and histograms to the given backend, such as
// a promobs registry, in addition to logging them at DEBUG.
func WithMetrics(metrics observability.Metrics) Option {
	return func(c *config) {
		c.metrics = metrics
	}
}

// defaultConfig reads the process environment and logs to stderr. Colors
// are auto-detected by the handler when stderr is a terminal.
func defaultConfig() *config {
	cfg := &config{output: os.Stderr}
	WithEnv(os.LookupEnv)(cfg)
	return cfg
}

// applyOptions applies the given options to the config.
func applyOptions(opts ...Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
