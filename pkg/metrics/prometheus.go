package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the global metrics container.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Transfer computation metrics
	QueriesTotal        *prometheus.CounterVec
	QueryDuration       *prometheus.HistogramVec
	MaxFlowValue        *prometheus.GaugeVec
	AugmentingPathsTotal *prometheus.HistogramVec
	PrunedEdgesTotal    *prometheus.HistogramVec
	TransfersEmitted    *prometheus.HistogramVec

	// Dispenser metrics
	DispenserVersion     prometheus.Gauge
	DispenserPinnedReads prometheus.Gauge

	// System metrics
	MemoryUsage *prometheus.GaugeVec
	Goroutines  prometheus.Gauge

	// Service information
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics initializes the metrics container.
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		QueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "transfer_queries_total",
				Help:      "Total number of compute-transfer queries",
			},
			[]string{"status"},
		),

		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "transfer_query_duration_seconds",
				Help:      "Duration of compute-transfer queries",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),

		MaxFlowValue: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "max_flow_value",
				Help:      "Last computed max flow value, as a float64 approximation of the u256 result",
			},
			[]string{"query"},
		),

		AugmentingPathsTotal: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "augmenting_paths_total",
				Help:      "Number of augmenting paths found per query",
				Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 500},
			},
			[]string{},
		),

		PrunedEdgesTotal: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pruned_edges_total",
				Help:      "Number of flow edges removed during pruning",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
			},
			[]string{},
		),

		TransfersEmitted: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "transfers_emitted_total",
				Help:      "Number of transfers emitted after simplification",
				Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
			},
			[]string{},
		),

		DispenserVersion: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dispenser_current_version",
				Help:      "Current published snapshot version",
			},
		),

		DispenserPinnedReads: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dispenser_pinned_reads",
				Help:      "Number of readers currently pinned to a snapshot version",
			},
		),

		MemoryUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "memory_usage_bytes",
				Help:      "Current memory usage",
			},
			[]string{"type"},
		),

		Goroutines: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "goroutines",
				Help:      "Current number of goroutines",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics container, initializing it with defaults
// if it has not been set up yet.
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("pathfinder", "")
	}
	return defaultMetrics
}

// RecordHTTPRequest records metrics for a handled HTTP request.
func (m *Metrics) RecordHTTPRequest(method string, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordQuery records metrics for a compute-transfer query.
func (m *Metrics) RecordQuery(success bool, duration time.Duration, maxFlowApprox float64, queryID string) {
	status := "success"
	if !success {
		status = "error"
	}

	m.QueriesTotal.WithLabelValues(status).Inc()
	m.QueryDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.MaxFlowValue.WithLabelValues(queryID).Set(maxFlowApprox)
}

// RecordPipelineCounts records the per-stage counts produced by one
// ComputeTransfer run: augmenting paths found, edges pruned, transfers
// ultimately emitted.
func (m *Metrics) RecordPipelineCounts(augmentingPaths, prunedEdges, transfers int) {
	m.AugmentingPathsTotal.WithLabelValues().Observe(float64(augmentingPaths))
	m.PrunedEdgesTotal.WithLabelValues().Observe(float64(prunedEdges))
	m.TransfersEmitted.WithLabelValues().Observe(float64(transfers))
}

// SetDispenserStats updates the dispenser gauges.
func (m *Metrics) SetDispenserStats(currentVersion uint64, pinnedReads int) {
	m.DispenserVersion.Set(float64(currentVersion))
	m.DispenserPinnedReads.Set(float64(pinnedReads))
}

// SetServiceInfo sets the service_info gauge.
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler returns the HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer starts a dedicated HTTP server serving /metrics and /health.
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, write failure is not actionable
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
