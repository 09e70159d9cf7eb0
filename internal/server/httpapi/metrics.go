package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eras_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eras_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eras_http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	activeRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eras_http_active_requests",
		Help: "Number of in-flight HTTP requests",
	})

	// ingestCompletedTotal counts media that became durable, by path taken.
	ingestCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eras_ingest_completed_total",
			Help: "Media records created, labeled by ingestion mode",
		},
		[]string{"mode"},
	)
)

// statusWriter captures the response status code for the metrics labels.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.statusCode = code
	sw.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware records per-request Prometheus metrics. Paths are labeled
// by route pattern, not the raw URL, to keep label cardinality bounded.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeRequests.Inc()

		sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sw, r)

		activeRequests.Dec()

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unknown"
		}

		httpRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(sw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
		if r.ContentLength > 0 {
			httpRequestSize.WithLabelValues(r.Method, pattern).Observe(float64(r.ContentLength))
		}
	})
}
