// Package metrics exposes Prometheus counters/histograms for the control
// plane, plus the HTTP middleware that records request metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signalgrid_build_info",
			Help: "Build information of the signalgrid control plane",
		},
		[]string{"version", "commit"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalgrid_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signalgrid_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalgrid_cycle_ticks_total",
			Help: "Total number of Cycle Engine ticks, by outcome",
		},
		[]string{"outcome"}, // "ok" or "error"
	)

	PhaseTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalgrid_phase_transitions_total",
			Help: "Total number of intersection phase transitions",
		},
		[]string{"phase"},
	)

	ManualOverridesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalgrid_manual_overrides_total",
			Help: "Total number of manual override commands applied",
		},
		[]string{"color"},
	)

	ManualResyncsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signalgrid_manual_resyncs_total",
			Help: "Total number of expired manual overrides resynchronized by the Cycle Engine",
		},
	)

	BroadcastSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "signalgrid_broadcast_subscribers",
			Help: "Number of live Broadcast Bus subscribers",
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}
