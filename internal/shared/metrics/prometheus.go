package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Pipeline metrics
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cds_pipeline_runs_total",
			Help: "Total number of decision-support pipeline runs",
		},
		[]string{"specialty", "status"},
	)

	pipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cds_pipeline_duration_seconds",
			Help:    "Decision-support pipeline run duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"specialty"},
	)

	aiCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cds_ai_calls_total",
			Help: "Total number of text-generation calls",
		},
		[]string{"operation", "status"},
	)

	aiFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cds_ai_fallbacks_total",
			Help: "Total number of deterministic fallbacks after generation failure",
		},
		[]string{"operation"},
	)

	riskScoresComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cds_risk_scores_computed_total",
			Help: "Total number of risk scores computed",
		},
		[]string{"score", "category"},
	)

	complianceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cds_compliance_failures_total",
			Help: "Total number of non-compliant category results",
		},
		[]string{"category"},
	)

	// EHR store metrics
	storeQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ehr_store_query_duration_seconds",
			Help:    "Clinical store query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"collection"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordPipelineRun records a completed pipeline run
func RecordPipelineRun(specialty, status string, duration time.Duration) {
	pipelineRunsTotal.WithLabelValues(specialty, status).Inc()
	pipelineDuration.WithLabelValues(specialty).Observe(duration.Seconds())
}

// RecordAICall records a text-generation call outcome
func RecordAICall(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	aiCallsTotal.WithLabelValues(operation, status).Inc()
}

// RecordAIFallback records a deterministic fallback after a failed generation
func RecordAIFallback(operation string) {
	aiFallbacksTotal.WithLabelValues(operation).Inc()
}

// RecordRiskScore records a computed risk score
func RecordRiskScore(score, category string) {
	riskScoresComputed.WithLabelValues(score, category).Inc()
}

// RecordComplianceFailure records a non-compliant category result
func RecordComplianceFailure(category string) {
	complianceFailures.WithLabelValues(category).Inc()
}

// RecordStoreQuery records a clinical store query duration
func RecordStoreQuery(collection string, duration time.Duration) {
	storeQueryDuration.WithLabelValues(collection).Observe(duration.Seconds())
}
