package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	counter, err := vec.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)

	var metric dto.Metric
	require.NoError(t, counter.Write(&metric))
	return metric.GetCounter().GetValue()
}

func TestRecordWebhookOutcome(t *testing.T) {
	before := counterValue(t, webhookOutcomeCounter, "updated")
	RecordWebhookOutcome("updated")
	require.Equal(t, before+1, counterValue(t, webhookOutcomeCounter, "updated"))
}

func TestRecordListenIngestedAdvancesWatermark(t *testing.T) {
	playedAt := time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC)

	before := counterValue(t, listensIngestedCounter, "kafka")
	RecordListenIngested("kafka", playedAt)
	require.Equal(t, before+1, counterValue(t, listensIngestedCounter, "kafka"))

	var metric dto.Metric
	require.NoError(t, lastListenGauge.Write(&metric))
	require.Equal(t, float64(playedAt.Unix()), metric.GetGauge().GetValue())
}

func TestRecordTokenRefreshResultLabels(t *testing.T) {
	beforeOK := counterValue(t, tokenRefreshCounter, "success")
	beforeFail := counterValue(t, tokenRefreshCounter, "failure")

	RecordTokenRefresh(true)
	RecordTokenRefresh(false)

	require.Equal(t, beforeOK+1, counterValue(t, tokenRefreshCounter, "success"))
	require.Equal(t, beforeFail+1, counterValue(t, tokenRefreshCounter, "failure"))
}
