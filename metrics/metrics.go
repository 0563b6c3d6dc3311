// Package metrics provides Prometheus metrics for the satchel server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satchel_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satchel_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satchel_downloads_total",
			Help: "Total number of download requests by payload kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	downloadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satchel_download_bytes_total",
			Help: "Total bytes sent to clients by payload kind",
		},
		[]string{"kind"},
	)

	archiveBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satchel_archive_build_seconds",
			Help:    "Time to build a download archive",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	tempFilesSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "satchel_temp_files_swept_total",
			Help: "Total temporary files removed at the end of requests",
		},
	)

	s3OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satchel_s3_operation_duration_seconds",
			Help:    "S3 operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	s3OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satchel_s3_operations_total",
			Help: "Total S3 operations",
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

// RecordDownload records a finished download request.
func RecordDownload(kind, outcome string, bytes int64) {
	if kind == "" {
		kind = "unknown"
	}
	downloadsTotal.WithLabelValues(kind, outcome).Inc()
	if bytes > 0 {
		downloadBytesTotal.WithLabelValues(kind).Add(float64(bytes))
	}
}

// ObserveArchiveBuild records how long an archive build took.
func ObserveArchiveBuild(duration time.Duration, success bool) {
	archiveBuildDuration.WithLabelValues(status(success)).Observe(duration.Seconds())
}

// RecordTempFilesSwept adds n removed temporary files.
func RecordTempFilesSwept(n int) {
	if n > 0 {
		tempFilesSwept.Add(float64(n))
	}
}

// RecordS3Operation records an S3 operation.
func RecordS3Operation(operation string, duration time.Duration, success bool) {
	s3OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	s3OperationsTotal.WithLabelValues(operation, status(success)).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
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

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
// The path label is the chi route pattern, "unmatched" for unrouted requests.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		RecordHTTPRequest(r.Method, route, rw.statusCode, time.Since(start))
	})
}
