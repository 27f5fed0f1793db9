package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request metrics are labeled by method and status class, never by raw path:
// unmatched URLs would otherwise mint unbounded label values.
var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "traq",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by method and status class.",
	}, []string{"method", "status_class"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "traq",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, by method.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method"})
)

// WithRequestMetrics counts and times every request through the chain.
func WithRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}

		next.ServeHTTP(lrw, r)

		httpRequests.WithLabelValues(r.Method, statusClass(lrw.status)).Inc()
		httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
