package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CollaboratorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_share", Name: "collaborator_calls_total", Help: "Calls to remote collaborators"},
		[]string{"op", "outcome"},
	)
	CollaboratorLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "ride_share", Name: "collaborator_latency_seconds", Help: "Collaborator call latency seconds", Buckets: prometheus.DefBuckets},
		[]string{"op"},
	)
	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_share", Name: "intents_total", Help: "Workflow intents handled"},
		[]string{"intent", "role", "outcome"},
	)
	OrphanedOrders = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_share", Name: "orphaned_orders_total", Help: "Create successes discarded because the slot was cancelled meanwhile"})
	WSSessions     = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_share", Name: "ws_sessions", Help: "Connected presentation sessions"})
	SimOrders      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_share", Name: "sim_orders", Help: "Orders held by the matching simulator"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_share", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_share",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Outcome turns an error into the outcome label used across the metrics above.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
