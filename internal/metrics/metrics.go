package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tracks the number of outbound calls to the ledger gateway.
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_gateway_requests_total",
			Help: "Total number of ledger gateway requests made (by operation and outcome).",
		},
		[]string{"operation", "outcome"},
	)

	// Measures duration of ledger gateway calls.
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_gateway_request_duration_seconds",
			Help:    "Duration of ledger gateway requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"operation"},
	)

	// Counts per-account balance refresh failures (stale entries retained).
	RefreshAccountFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_refresh_account_failures_total",
			Help: "Number of per-account balance refresh failures during reconciliation.",
		},
		[]string{"asset_id"},
	)

	// Counts orchestrated operations by type and result.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_operations_total",
			Help: "Number of orchestrated stock operations (by operation and result).",
		},
		[]string{"operation", "result"},
	)

	NATSPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_publish_errors_total",
			Help: "Number of NATS publish failures",
		},
		[]string{"subject"},
	)
)

// ObserveDuration records the time taken since start and updates the given histogram.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// silently ignore counters; they're not meant for duration tracking
	}
}

func IncGatewayRequest(operation, outcome string) {
	GatewayRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

func IncOperation(operation, result string) {
	OperationsTotal.WithLabelValues(operation, result).Inc()
}

func StartServer(addr string) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		http.ListenAndServe(addr, nil) //nolint:errcheck
	}()
}
