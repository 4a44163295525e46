// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Upstream metrics
	FetchRequests    *prometheus.CounterVec
	FetchLatency     *prometheus.HistogramVec
	RateLimitRetries *prometheus.CounterVec

	// Normalization metrics
	DataQualityEvents *prometheus.CounterVec
	IntervalsSkipped  *prometheus.CounterVec

	// Ingestion metrics
	RecordsStored           *prometheus.CounterVec
	CycleFamilyTotal        *prometheus.CounterVec
	CycleDuration           prometheus.Histogram
	LastSuccessfulIngestion *prometheus.GaugeVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Read API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	CacheLookups *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "midgard_history"
	}

	return &Metrics{
		FetchRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "midgard",
			Name:      "requests_total",
			Help:      "Total number of Midgard history requests by family and outcome",
		}, []string{"family", "outcome"}),
		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "midgard",
			Name:      "request_duration_seconds",
			Help:      "Midgard history fetch duration in seconds, retries included",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"family"}),
		RateLimitRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "midgard",
			Name:      "rate_limit_retries_total",
			Help:      "Total number of retries caused by HTTP 429",
		}, []string{"family"}),

		DataQualityEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalization",
			Name:      "data_quality_events_total",
			Help:      "Fields substituted with a fallback value during normalization",
		}, []string{"family", "field", "reason"}),
		IntervalsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalization",
			Name:      "intervals_skipped_total",
			Help:      "Intervals dropped because they could not be normalized",
		}, []string{"family"}),

		RecordsStored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_stored_total",
			Help:      "Total number of new history rows stored",
		}, []string{"family"}),
		CycleFamilyTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "cycle_family_total",
			Help:      "Per-family ingestion results by status",
		}, []string{"family", "status"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "cycle_duration_seconds",
			Help:      "Ingestion cycle duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		LastSuccessfulIngestion: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of the last successful ingestion per family",
		}, []string{"family"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"operation"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of read API requests by route and status code",
		}, []string{"route", "status"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Read API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Query cache lookups by scope and result",
		}, []string{"scope", "result"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFetch records one completed upstream fetch.
func RecordFetch(family string, seconds float64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	DefaultMetrics.FetchRequests.WithLabelValues(family, outcome).Inc()
	DefaultMetrics.FetchLatency.WithLabelValues(family).Observe(seconds)
}

// RecordRateLimited counts a 429 that will be retried.
func RecordRateLimited(family string) {
	DefaultMetrics.RateLimitRetries.WithLabelValues(family).Inc()
}

// RecordDataQuality counts a field that fell back to a default during normalization.
func RecordDataQuality(family, field, reason string) {
	DefaultMetrics.DataQualityEvents.WithLabelValues(family, field, reason).Inc()
}

// RecordIntervalSkipped counts an interval that could not be normalized at all.
func RecordIntervalSkipped(family string) {
	DefaultMetrics.IntervalsSkipped.WithLabelValues(family).Inc()
}

// RecordStored adds newly inserted rows for a family.
func RecordStored(family string, n int) {
	if n > 0 {
		DefaultMetrics.RecordsStored.WithLabelValues(family).Add(float64(n))
	}
}

// RecordCycleFamily records the outcome of one family within an ingestion cycle.
func RecordCycleFamily(family string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	} else {
		DefaultMetrics.LastSuccessfulIngestion.WithLabelValues(family).Set(float64(time.Now().Unix()))
	}
	DefaultMetrics.CycleFamilyTotal.WithLabelValues(family, status).Inc()
}

// RecordCycle records the duration of a full ingestion cycle.
func RecordCycle(seconds float64) {
	DefaultMetrics.CycleDuration.Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordHTTPRequest records a served read API request.
func RecordHTTPRequest(route string, status int, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	DefaultMetrics.HTTPDuration.WithLabelValues(route).Observe(seconds)
}

// RecordCacheLookup records a query cache hit, miss or error.
func RecordCacheLookup(scope, result string) {
	DefaultMetrics.CacheLookups.WithLabelValues(scope, result).Inc()
}
