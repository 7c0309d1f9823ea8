// Package config loads graphyte's run configuration. Values are layered:
// built-in defaults, an optional YAML file, a .env file, the process
// environment, and finally CLI flags applied by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/leofalp/graphyte/core/cost"
)

// ErrMissingAPIKey is returned by Validate when no model credential is set.
var ErrMissingAPIKey = errors.New("config: OPENAI_API_KEY is not set")

const (
	DefaultModel          = "gpt-4o-mini"
	DefaultTraceBaseURL   = "https://platform.openai.com/traces"
	DefaultOutputDir      = "outputs"
	DefaultLogFile        = "logs/workflow.log"
	DefaultHistoryDB      = "outputs/history.db"
	DefaultMaxInputLength = 1_000_000
)

// ModelKeys lists every stage that takes its own model override. The
// environment variable for a key is its upper-cased form plus "_MODEL".
var ModelKeys = []string{
	"domain_identifier",
	"sub_domain_identifier",
	"topic_identifier",
	"entity_type_identifier",
	"ontology_type_identifier",
	"event_type_identifier",
	"statement_type_identifier",
	"evidence_type_identifier",
	"measurement_type_identifier",
	"modality_type_identifier",
	"entity_instance_extractor",
	"ontology_instance_extractor",
	"event_instance_extractor",
	"statement_instance_extractor",
	"evidence_instance_extractor",
	"measurement_instance_extractor",
	"modality_instance_extractor",
	"relationship_identifier",
	"relationship_instance_extractor",
	"scoring",
}

// Retry mirrors middleware.RetryConfig in configuration form.
type Retry struct {
	Enabled  bool          `yaml:"enabled"`
	Attempts int           `yaml:"attempts"`
	MinWait  time.Duration `yaml:"min_wait"`
	MaxWait  time.Duration `yaml:"max_wait"`
}

// Config is the fully resolved configuration of one run.
type Config struct {
	APIKey       string            `yaml:"-"`
	BaseURL      string            `yaml:"base_url"`
	TraceBaseURL string            `yaml:"trace_base_url"`
	DefaultModel string            `yaml:"default_model"`
	Models       map[string]string `yaml:"models"`

	OutputDir   string `yaml:"output_dir"`
	LogFile     string `yaml:"log_file"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	HistoryDB   string `yaml:"history_db"`
	MetricsFile string `yaml:"metrics_file"`

	Retry          Retry         `yaml:"retry"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
	StageTimeout   time.Duration `yaml:"stage_timeout"`
	RateLimit      float64       `yaml:"rate_limit"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	ScoringEnabled bool          `yaml:"scoring_enabled"`
	MaxInputLength int           `yaml:"max_input_length"`

	// Pricing adds or overrides entries of cost.DefaultTable.
	Pricing cost.Table `yaml:"pricing"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		TraceBaseURL: DefaultTraceBaseURL,
		DefaultModel: DefaultModel,
		Models:       map[string]string{},
		OutputDir:    DefaultOutputDir,
		LogFile:      DefaultLogFile,
		HistoryDB:    DefaultHistoryDB,
		Retry: Retry{
			Enabled:  true,
			Attempts: 3,
			MinWait:  2 * time.Second,
			MaxWait:  10 * time.Second,
		},
		CallTimeout:    120 * time.Second,
		ScoringEnabled: true,
		MaxInputLength: DefaultMaxInputLength,
	}
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// ConfigFile is an optional YAML file. Empty skips it.
	ConfigFile string
	// EnvFile is the dotenv file. A missing file is not an error.
	// Default: ".env".
	EnvFile string
	// LookupEnv reads the process environment. Default: os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load resolves the configuration. Real environment variables always win
// over values from the dotenv file.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile == "" {
		opts.EnvFile = ".env"
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}

	cfg := Default()

	if opts.ConfigFile != "" {
		if err := cfg.loadYAML(opts.ConfigFile); err != nil {
			return nil, err
		}
	}

	dotenv, err := godotenv.Read(opts.EnvFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read %s: %w", opts.EnvFile, err)
	}

	lookup := func(key string) (string, bool) {
		if v, ok := opts.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if c.Models == nil {
		c.Models = map[string]string{}
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	// Keys where an explicit empty value disables a feature.
	optional := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	str("OPENAI_API_KEY", &c.APIKey)
	str("OPENAI_API_BASE_URL", &c.BaseURL)
	str("AGENT_TRACE_BASE_URL", &c.TraceBaseURL)
	str("DEFAULT_MODEL", &c.DefaultModel)
	for _, key := range ModelKeys {
		var model string
		str(EnvKey(key), &model)
		if model != "" {
			c.Models[key] = model
		}
	}

	str("GRAPHYTE_OUTPUT_DIR", &c.OutputDir)
	optional("GRAPHYTE_LOG_FILE", &c.LogFile)
	optional("GRAPHYTE_HISTORY_DB", &c.HistoryDB)
	optional("GRAPHYTE_METRICS_FILE", &c.MetricsFile)
	str("GRAPHYTE_LOG_LEVEL", &c.LogLevel)
	str("GRAPHYTE_LOG_FORMAT", &c.LogFormat)

	parsers := []struct {
		key   string
		apply func(string) error
	}{
		{"GRAPHYTE_RETRY_ENABLED", boolInto(&c.Retry.Enabled)},
		{"GRAPHYTE_RETRY_ATTEMPTS", intInto(&c.Retry.Attempts)},
		{"GRAPHYTE_RETRY_MIN_WAIT", durationInto(&c.Retry.MinWait)},
		{"GRAPHYTE_RETRY_MAX_WAIT", durationInto(&c.Retry.MaxWait)},
		{"GRAPHYTE_CALL_TIMEOUT", durationInto(&c.CallTimeout)},
		{"GRAPHYTE_RUN_TIMEOUT", durationInto(&c.RunTimeout)},
		{"GRAPHYTE_STAGE_TIMEOUT", durationInto(&c.StageTimeout)},
		{"GRAPHYTE_RATE_LIMIT", floatInto(&c.RateLimit)},
		{"GRAPHYTE_MAX_CONCURRENCY", intInto(&c.MaxConcurrency)},
		{"GRAPHYTE_SCORING_ENABLED", boolInto(&c.ScoringEnabled)},
		{"MAX_INPUT_CONTENT_LENGTH", intInto(&c.MaxInputLength)},
	}
	for _, p := range parsers {
		v, ok := lookup(p.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := p.apply(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("config: %s: %w", p.key, err)
		}
	}
	return nil
}

// EnvKey returns the environment variable overriding the model of key.
func EnvKey(key string) string {
	return strings.ToUpper(key) + "_MODEL"
}

// ModelFor returns the model configured for key, falling back to the
// default model.
func (c *Config) ModelFor(key string) string {
	if m := c.Models[key]; m != "" {
		return m
	}
	if c.DefaultModel != "" {
		return c.DefaultModel
	}
	return DefaultModel
}

// PricingTable returns the default prices with the configured overrides.
func (c *Config) PricingTable() cost.Table {
	return cost.DefaultTable().Merge(c.Pricing)
}

// Validate reports configuration that makes a pipeline run impossible.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("config: retry attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Retry.MaxWait < c.Retry.MinWait {
		return fmt.Errorf("config: retry max wait %s is below min wait %s", c.Retry.MaxWait, c.Retry.MinWait)
	}
	if c.RateLimit < 0 || c.MaxConcurrency < 0 {
		return errors.New("config: rate limit and max concurrency must not be negative")
	}
	if c.RunTimeout < 0 || c.StageTimeout < 0 {
		return errors.New("config: run and stage timeouts must not be negative")
	}
	for model, price := range c.Pricing {
		if price.InputCostPerMillion < 0 || price.OutputCostPerMillion < 0 || price.CachedInputCostPerMillion < 0 {
			return fmt.Errorf("config: pricing for %s must not be negative", model)
		}
	}
	if c.MaxInputLength <= 0 {
		return fmt.Errorf("config: max input length must be positive, got %d", c.MaxInputLength)
	}
	return nil
}

func boolInto(dst *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func intInto(dst *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func floatInto(dst *float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func durationInto(dst *time.Duration) func(string) error {
	return func(s string) error {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}
