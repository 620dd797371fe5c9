// Package observability registers Prometheus collectors shared by both binaries.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	webhookOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runningtunes",
		Subsystem: "webhook",
		Name:      "deliveries_total",
		Help:      "Webhook deliveries grouped by terminal outcome.",
	}, []string{"outcome"})

	listensIngestedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runningtunes",
		Subsystem: "listens",
		Name:      "ingested_total",
		Help:      "Listens accepted into the store, by ingestion path.",
	}, []string{"source"})

	lastListenGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "runningtunes",
		Subsystem: "listens",
		Name:      "last_played_at_timestamp_seconds",
		Help:      "played_at of the most recently ingested listen.",
	})

	tokenRefreshCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runningtunes",
		Subsystem: "credentials",
		Name:      "token_refreshes_total",
		Help:      "Refresh-grant exchanges grouped by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(webhookOutcomeCounter, listensIngestedCounter, lastListenGauge, tokenRefreshCounter)
}

// RecordWebhookOutcome counts one delivery against its terminal outcome.
func RecordWebhookOutcome(outcome string) {
	webhookOutcomeCounter.WithLabelValues(outcome).Inc()
}

// RecordListenIngested counts one accepted listen and advances the watermark.
func RecordListenIngested(source string, playedAt time.Time) {
	listensIngestedCounter.WithLabelValues(source).Inc()
	if !playedAt.IsZero() {
		lastListenGauge.Set(float64(playedAt.Unix()))
	}
}

// RecordTokenRefresh counts one refresh exchange.
func RecordTokenRefresh(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	tokenRefreshCounter.WithLabelValues(result).Inc()
}
