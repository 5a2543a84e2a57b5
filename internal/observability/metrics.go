// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Vendor gateway metrics
	VendorCallLatency *prometheus.HistogramVec
	VendorCallErrors  *prometheus.CounterVec
	VendorRetries     *prometheus.CounterVec
	CircuitOpen       prometheus.Gauge
	CircuitOpenTotal  prometheus.Counter

	// Cache metrics
	CacheOps *prometheus.CounterVec

	// Resolver metrics
	ResolveTotal *prometheus.CounterVec

	// Purchase metrics
	PurchasesTotal *prometheus.CounterVec

	// Rebuild metrics
	RebuildRuns        *prometheus.CounterVec
	RebuildDuration    prometheus.Histogram
	RebuildPagesWalked prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "stock_gateway"
	}

	return &Metrics{
		VendorCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "vendor",
			Name:      "call_latency_seconds",
			Help:      "Vendor API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		VendorCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vendor",
			Name:      "call_errors_total",
			Help:      "Total number of vendor API call errors",
		}, []string{"endpoint"}),
		VendorRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vendor",
			Name:      "retries_total",
			Help:      "Total number of vendor API retry attempts",
		}, []string{"endpoint"}),
		CircuitOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vendor",
			Name:      "circuit_open",
			Help:      "Whether the vendor circuit breaker is currently open (1) or closed (0)",
		}),
		CircuitOpenTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vendor",
			Name:      "circuit_open_total",
			Help:      "Total number of circuit breaker open transitions",
		}),

		CacheOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Total number of cache operations by namespace, operation and outcome",
		}, []string{"cache", "operation", "outcome"}),

		ResolveTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total number of quote resolutions by source",
		}, []string{"source"}),

		PurchasesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "purchases_total",
			Help:      "Total number of purchase attempts by terminal status",
		}, []string{"status"}),

		RebuildRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rebuild",
			Name:      "runs_total",
			Help:      "Total number of token index rebuild runs by status",
		}, []string{"status"}),
		RebuildDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rebuild",
			Name:      "duration_seconds",
			Help:      "Token index rebuild duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		RebuildPagesWalked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rebuild",
			Name:      "pages_walked_total",
			Help:      "Total number of catalog pages walked by rebuild runs",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordVendorCall records one vendor API attempt.
func RecordVendorCall(endpoint string, seconds float64, err error) {
	DefaultMetrics.VendorCallLatency.WithLabelValues(endpoint).Observe(seconds)
	if err != nil {
		DefaultMetrics.VendorCallErrors.WithLabelValues(endpoint).Inc()
	}
}

// RecordVendorRetry records one retry attempt.
func RecordVendorRetry(endpoint string) {
	DefaultMetrics.VendorRetries.WithLabelValues(endpoint).Inc()
}

// SetCircuitOpen updates the circuit breaker state gauge.
func SetCircuitOpen(open bool) {
	if open {
		DefaultMetrics.CircuitOpen.Set(1)
		DefaultMetrics.CircuitOpenTotal.Inc()
	} else {
		DefaultMetrics.CircuitOpen.Set(0)
	}
}

// RecordCacheOp records a cache operation outcome.
func RecordCacheOp(cache, operation, outcome string) {
	DefaultMetrics.CacheOps.WithLabelValues(cache, operation, outcome).Inc()
}

// RecordResolve records a quote resolution by source
// (memo, token, scan, stale, miss).
func RecordResolve(source string) {
	DefaultMetrics.ResolveTotal.WithLabelValues(source).Inc()
}

// RecordPurchase records a purchase attempt by terminal status.
func RecordPurchase(status string) {
	DefaultMetrics.PurchasesTotal.WithLabelValues(status).Inc()
}

// RecordRebuildRun records a token index rebuild run.
func RecordRebuildRun(status string, durationSeconds float64, pages int) {
	DefaultMetrics.RebuildRuns.WithLabelValues(status).Inc()
	DefaultMetrics.RebuildDuration.Observe(durationSeconds)
	DefaultMetrics.RebuildPagesWalked.Add(float64(pages))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
