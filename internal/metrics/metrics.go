// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry every collector in this package is attached to.
var Registry = prometheus.NewRegistry()

var (
	// StoreOps counts mock store operations by op, table, and result.
	StoreOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gts",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Mock store operations by operation, table and result.",
	}, []string{"op", "table", "result"})

	// MirrorWriteFailures counts table mirror writes that failed.
	MirrorWriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gts",
		Subsystem: "store",
		Name:      "mirror_write_failures_total",
		Help:      "Failed writes of a table to the key-value mirror.",
	}, []string{"table"})

	// HTTPDuration observes request latency by route pattern.
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gts",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// SSEClients is the number of connected event-stream clients.
	SSEClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gts",
		Subsystem: "sse",
		Name:      "clients",
		Help:      "Connected event-stream clients.",
	})

	// PushDeliveries counts notifications handed to subscribed clients.
	PushDeliveries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gts",
		Subsystem: "push",
		Name:      "deliveries_total",
		Help:      "Notifications delivered to subscribed clients.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		StoreOps,
		MirrorWriteFailures,
		HTTPDuration,
		SSEClients,
		PushDeliveries,
	)
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records HTTPDuration for every request routed by chi.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
