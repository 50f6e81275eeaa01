// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// AggregateSyncTotal counts forum/post aggregate recomputations by event and outcome.
	AggregateSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_aggregate_sync_total",
		Help: "Total number of aggregate synchronizations by event and outcome",
	}, []string{"event", "outcome"})

	// AggregateSyncLatency records how long an aggregate recomputation takes.
	AggregateSyncLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_aggregate_sync_latency_seconds",
		Help:    "Aggregate synchronization latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"event"})

	// PostViewsTotal counts post detail reads.
	PostViewsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agora_post_views_total",
		Help: "Total number of post detail reads",
	})

	// GateDenials counts requests rejected by the authorization gate by status.
	GateDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_gate_denials_total",
		Help: "Requests rejected by the authorization gate",
	}, []string{"stage", "status"})

	// WebSocketConnectionsTotal is the gauge of open activity feed connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agora_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts activity events fanned out to clients by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// ObserveQuery records the latency of a database query.
func ObserveQuery(operation, table string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// TrackSync returns a function that records the outcome and latency of an
// aggregate synchronization when called (e.g. defer).
func TrackSync(event string) func(err error) {
	start := time.Now()
	return func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		AggregateSyncTotal.WithLabelValues(event, outcome).Inc()
		AggregateSyncLatency.WithLabelValues(event).Observe(time.Since(start).Seconds())
	}
}
