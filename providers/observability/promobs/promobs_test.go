package promobs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/graphyte/providers/observability"
)

func TestCounter_MapsAttributesToLabels(t *testing.T) {
	m := New()
	ctx := context.Background()

	m.Counter(observability.MetricClientRequestCount).Add(ctx, 2,
		observability.String(observability.AttrLLMModel, "gpt-4o-mini"),
		observability.String(observability.AttrStatus, "ok"),
		observability.String("ignored", "x"),
	)
	m.Counter(observability.MetricStageOutcomes).Add(ctx, 1,
		observability.String(observability.AttrStage, "03_topic_identifier"),
		observability.String(observability.AttrStageStatus, "completed"),
	)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LLMRequests.WithLabelValues("gpt-4o-mini", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageOutcomes.WithLabelValues("03_topic_identifier", "completed")))
}

func TestCounter_MissingLabelsDefaultToUnknown(t *testing.T) {
	m := New()
	m.Counter(observability.MetricClientRetries).Add(context.Background(), 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRetries.WithLabelValues("unknown")))
}

func TestUnknownNamesAreDiscarded(t *testing.T) {
	m := New()
	m.Counter("not.registered").Add(context.Background(), 1)
	m.Histogram("not.registered").Record(context.Background(), 1)

	count, err := testutil.GatherAndCount(m.Registry())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Histogram(observability.MetricClientRequestDuration).Record(context.Background(), 1.5,
		observability.String(observability.AttrLLMModel, "gpt-4o-mini"))

	path := filepath.Join(t.TempDir(), "graphyte.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "graphyte_llm_request_duration_seconds_count{model=\"gpt-4o-mini\"} 1"), string(data))
}
