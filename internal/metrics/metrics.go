// Package metrics provides Prometheus instrumentation for the vault engine.
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
	// QuotesTotal counts quotes served, partitioned by kind.
	QuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_quotes_total",
		Help: "Total number of quotes served",
	}, []string{"kind"})

	// PlansTotal counts plans proposed, partitioned by action.
	PlansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_plans_total",
		Help: "Total number of vault plans proposed",
	}, []string{"action"})

	// PlanRejections counts plans the engine refused, by action and reason.
	PlanRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_plan_rejections_total",
		Help: "Vault plans rejected by validation",
	}, []string{"action", "reason"})

	// LiquidatablePositions tracks positions found liquidatable by the last scan.
	LiquidatablePositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vault_liquidatable_positions",
		Help: "Number of positions liquidatable at the last scan",
	})

	// UnpricedPositions tracks open positions without an oracle price.
	UnpricedPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vault_unpriced_positions",
		Help: "Number of open positions whose index token has no price",
	})

	// ScanLatency tracks liquidation scan duration.
	ScanLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vault_scan_latency_seconds",
		Help:    "Liquidation scan latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// UtilizationBps tracks reserved / total liquidity per token.
	UtilizationBps = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vault_utilization_bps",
		Help: "Reserved amount over total liquidity in basis points",
	}, []string{"token"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vault_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vault_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Label by route pattern; position keys in the path are unbounded.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
