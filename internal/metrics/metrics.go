// Package metrics provides Prometheus metrics for the filedepot server.
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
			Name: "filedepot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filedepot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Content transfer metrics
	contentBytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filedepot_content_bytes_downloaded_total",
			Help: "Total bytes downloaded from the content endpoint",
		},
	)

	contentBytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filedepot_content_bytes_uploaded_total",
			Help: "Total bytes of decoded upload payloads",
		},
	)

	contentDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedepot_content_downloads_total",
			Help: "Total number of content downloads",
		},
		[]string{"status"},
	)

	contentUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedepot_content_uploads_total",
			Help: "Total number of content uploads",
		},
		[]string{"status"},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedepot_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)

	sessionsIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filedepot_sessions_issued_total",
			Help: "Total session tokens issued",
		},
	)

	sessionsRevokedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filedepot_sessions_revoked_total",
			Help: "Total session tokens explicitly revoked",
		},
	)

	// Thumbnail pipeline metrics
	thumbnailJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedepot_thumbnail_jobs_total",
			Help: "Total thumbnail jobs by outcome",
		},
		[]string{"result"},
	)

	thumbnailJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filedepot_thumbnail_job_duration_seconds",
			Help:    "Thumbnail job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	thumbnailQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filedepot_thumbnail_queue_depth",
			Help: "Number of thumbnail jobs waiting in the queue",
		},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filedepot_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filedepot_db_connections_open",
			Help: "Number of open database connections",
		},
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

// RecordContentDownload records a content download.
func RecordContentDownload(bytes int64, success bool) {
	contentBytesDownloaded.Add(float64(bytes))
	status := "success"
	if !success {
		status = "error"
	}
	contentDownloadsTotal.WithLabelValues(status).Inc()
}

// RecordContentUpload records a content upload.
func RecordContentUpload(bytes int64, success bool) {
	contentBytesUploaded.Add(float64(bytes))
	status := "success"
	if !success {
		status = "error"
	}
	contentUploadsTotal.WithLabelValues(status).Inc()
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordSessionIssued records a newly issued session token.
func RecordSessionIssued() {
	sessionsIssuedTotal.Inc()
}

// RecordSessionRevoked records an explicit session revocation.
func RecordSessionRevoked() {
	sessionsRevokedTotal.Inc()
}

// RecordThumbnailJob records a completed thumbnail job.
// result is one of "success", "failure" or "dropped".
func RecordThumbnailJob(result string, duration time.Duration) {
	thumbnailJobsTotal.WithLabelValues(result).Inc()
	if result != "dropped" {
		thumbnailJobDuration.Observe(duration.Seconds())
	}
}

// SetThumbnailQueueDepth sets the current queue depth.
func SetThumbnailQueueDepth(depth int) {
	thumbnailQueueDepth.Set(float64(depth))
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// SetDBConnectionsOpen sets the number of open database connections.
func SetDBConnectionsOpen(count int) {
	dbConnectionsOpen.Set(float64(count))
}

// responseWriter wraps http.ResponseWriter to capture the status code.
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
