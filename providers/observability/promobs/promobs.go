// Package promobs exports pipeline metrics through a Prometheus registry.
//
// A CLI run is short-lived, so instead of serving /metrics the registry is
// flushed to a node-exporter textfile with [Metrics.WriteTextfile].
package promobs

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/leofalp/graphyte/providers/observability"
)

// Metrics holds the pipeline collectors. It implements observability.Metrics
// so it can sit behind slogobs.WithMetrics.
type Metrics struct {
	registry *prometheus.Registry

	LLMRequests        *prometheus.CounterVec
	LLMRetries         *prometheus.CounterVec
	LLMTokens          *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	StageOutcomes      *prometheus.CounterVec
}

var _ observability.Metrics = (*Metrics)(nil)

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		LLMRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "graphyte_llm_requests_total",
			Help: "Total number of LLM requests by model and outcome",
		}, []string{"model", "status"}),
		LLMRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "graphyte_llm_retries_total",
			Help: "Total number of retried LLM attempts",
		}, []string{"model"}),
		LLMTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "graphyte_llm_tokens_total",
			Help: "Total number of tokens consumed",
		}, []string{"model"}),
		LLMRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "graphyte_llm_request_duration_seconds",
			Help:    "LLM request latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"model"}),
		StageOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "graphyte_stage_outcomes_total",
			Help: "Terminal status of each pipeline stage",
		}, []string{"stage", "status"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes every collected metric to path in the text exposition
// format. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// labelKeys maps observability attribute keys to Prometheus label names.
var labelKeys = map[string]string{
	observability.AttrLLMModel:    "model",
	observability.AttrStatus:      "status",
	observability.AttrStage:       "stage",
	observability.AttrStageStatus: "status",
}

type counterVec struct {
	vec    *prometheus.CounterVec
	labels []string
}

type histogramVec struct {
	vec    *prometheus.HistogramVec
	labels []string
}

// nop is returned for names without a registered collector.
type nop struct{}

func (nop) Add(context.Context, int64, ...observability.Attribute)      {}
func (nop) Record(context.Context, float64, ...observability.Attribute) {}

// Counter maps an observability metric name to its collector.
func (m *Metrics) Counter(name string) observability.Counter {
	switch name {
	case observability.MetricClientRequestCount:
		return counterVec{m.LLMRequests, []string{"model", "status"}}
	case observability.MetricClientRetries:
		return counterVec{m.LLMRetries, []string{"model"}}
	case observability.MetricClientTokensTotal:
		return counterVec{m.LLMTokens, []string{"model"}}
	case observability.MetricStageOutcomes:
		return counterVec{m.StageOutcomes, []string{"stage", "status"}}
	default:
		return nop{}
	}
}

// Histogram maps an observability metric name to its collector.
func (m *Metrics) Histogram(name string) observability.Histogram {
	if name == observability.MetricClientRequestDuration {
		return histogramVec{m.LLMRequestDuration, []string{"model"}}
	}
	return nop{}
}

func (c counterVec) Add(_ context.Context, value int64, attrs ...observability.Attribute) {
	if value < 0 {
		return
	}
	c.vec.With(labelsFrom(c.labels, attrs)).Add(float64(value))
}

func (h histogramVec) Record(_ context.Context, value float64, attrs ...observability.Attribute) {
	h.vec.With(labelsFrom(h.labels, attrs)).Observe(value)
}

// labelsFrom fills every expected label, defaulting to "unknown".
func labelsFrom(names []string, attrs []observability.Attribute) prometheus.Labels {
	labels := make(prometheus.Labels, len(names))
	for _, name := range names {
		labels[name] = "unknown"
	}
	for _, attr := range attrs {
		name, ok := labelKeys[attr.Key]
		if !ok {
			continue
		}
		if _, wanted := labels[name]; wanted {
			labels[name] = fmt.Sprint(attr.Value)
		}
	}
	return labels
}
