// Package metrics provides Prometheus instrumentation for the group chat
// backend. It exposes counters for message outcomes and moderation
// actions, histograms for fan-out and ingress latency, and gauges for
// connection counts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// MessagesTotal counts processed messages, labeled by outcome:
	// "accepted", "rejected", "invalid", "rate_limited" or "failed".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total number of inbound messages by outcome",
	}, []string{"outcome"})

	// ModerationActions counts ledger transitions by action: "warning",
	// "final_warning", "suspension", "suspension_removed".
	ModerationActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_moderation_actions_total",
		Help: "Total number of moderation ledger transitions by action",
	}, []string{"action"})

	// ModerationStoreErrors counts ledger store failures (the fail-open path).
	ModerationStoreErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_moderation_store_errors_total",
		Help: "Total number of moderation ledger store failures",
	})

	// IngressLatency records end-to-end SendMessage latency in seconds.
	IngressLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_ingress_latency_seconds",
		Help:    "SendMessage processing latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// FanoutBatchSize records the number of member summaries mutated per
	// accepted message.
	FanoutBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_fanout_batch_size",
		Help:    "Number of member summaries mutated per accepted message",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
	})

	// PushDeliveries counts push notification delivery attempts by result:
	// "delivered", "invalid_token", "failed".
	PushDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_push_deliveries_total",
		Help: "Total number of push delivery attempts by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		MessagesTotal,
		ModerationActions,
		ModerationStoreErrors,
		IngressLatency,
		FanoutBatchSize,
		PushDeliveries,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
