// Package metrics provides Prometheus metrics for the Nexo server.
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
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexo_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexo_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Analysis metrics
	analysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexo_analyses_total",
			Help: "Total repository analyses by outcome",
		},
		[]string{"status"},
	)

	analysisCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexo_analysis_cache_total",
			Help: "Analysis cache lookups by result",
		},
		[]string{"result"},
	)

	extractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nexo_extraction_duration_seconds",
			Help:    "Repository download and extraction duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
	)

	extractionBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nexo_extraction_bytes_total",
			Help: "Total zipped bytes downloaded from GitHub",
		},
	)

	// External API metrics
	geminiCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexo_gemini_calls_total",
			Help: "Total Gemini API calls by status",
		},
		[]string{"status"},
	)

	geminiTokensTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nexo_gemini_tokens_total",
			Help: "Total Gemini tokens consumed",
		},
	)

	ttsCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexo_tts_calls_total",
			Help: "Total text-to-speech API calls by status",
		},
		[]string{"status"},
	)

	githubCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexo_github_calls_total",
			Help: "Total GitHub API calls by status",
		},
		[]string{"call", "status"},
	)

	// Podcast metrics
	podcastJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexo_podcast_jobs_active",
			Help: "Number of podcast jobs pending or processing",
		},
	)

	podcastJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexo_podcast_jobs_total",
			Help: "Total podcast jobs by outcome",
		},
		[]string{"status"},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexo_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexo_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexo_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexo_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexo_sse_events_total",
			Help: "Total SSE events published",
		},
		[]string{"type"},
	)

	// Rate limiting
	rateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nexo_rate_limit_hits_total",
			Help: "Total rate limit rejections (429s)",
		},
	)

	// Storage metrics
	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexo_storage_operation_duration_seconds",
			Help:    "Storage backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexo_storage_operations_total",
			Help: "Total storage backend operations",
		},
		[]string{"operation", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAnalysis records a completed analysis with its final status.
func RecordAnalysis(status string) {
	analysesTotal.WithLabelValues(status).Inc()
}

// RecordCacheLookup records an analysis cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	analysisCacheTotal.WithLabelValues(result).Inc()
}

// RecordExtraction records a repository extraction.
func RecordExtraction(zippedBytes int64, duration time.Duration) {
	extractionBytes.Add(float64(zippedBytes))
	extractionDuration.Observe(duration.Seconds())
}

// RecordGeminiCall records a Gemini API call.
func RecordGeminiCall(success bool, totalTokens int) {
	status := "success"
	if !success {
		status = "error"
	}
	geminiCallsTotal.WithLabelValues(status).Inc()
	if totalTokens > 0 {
		geminiTokensTotal.Add(float64(totalTokens))
	}
}

// RecordTTSCall records a text-to-speech call.
func RecordTTSCall(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	ttsCallsTotal.WithLabelValues(status).Inc()
}

// RecordGithubCall records a GitHub API call.
func RecordGithubCall(call string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	githubCallsTotal.WithLabelValues(call, status).Inc()
}

// SetPodcastJobsActive sets the number of in-flight podcast jobs.
func SetPodcastJobsActive(count int) {
	podcastJobsActive.Set(float64(count))
}

// RecordPodcastJob records a finished podcast job.
func RecordPodcastJob(status string) {
	podcastJobsTotal.WithLabelValues(status).Inc()
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// SetDBConnectionsOpen sets the number of open database connections.
func SetDBConnectionsOpen(count int) {
	dbConnectionsOpen.Set(float64(count))
}

// SetSSEConnectionsActive sets the number of active SSE connections.
func SetSSEConnectionsActive(count int64) {
	sseConnectionsActive.Set(float64(count))
}

// RecordSSEEvent records an SSE event publication.
func RecordSSEEvent(eventType string) {
	sseEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordRateLimitHit records a rate limit rejection.
func RecordRateLimitHit() {
	rateLimitHitsTotal.Inc()
}

// RecordStorageOperation records a storage backend operation.
func RecordStorageOperation(operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	storageOperationsTotal.WithLabelValues(operation, status).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
