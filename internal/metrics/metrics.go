// Package metrics provides Prometheus instrumentation for the portfolio engine.
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
	// TradesTotal counts executed simulated trades, partitioned by type.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperengine_trades_total",
		Help: "Total number of simulated trades executed",
	}, []string{"type"})

	// TradeLatency tracks end-to-end trade execution latency.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paperengine_trade_latency_seconds",
		Help:    "Trade execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	// TradeRejections counts trades that never mutated state, partitioned
	// by cause (validation, rejected, transport).
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperengine_trade_rejections_total",
		Help: "Trades rejected before any state mutation",
	}, []string{"cause"})

	// Reconciliations counts simulated-mode entries by the source that won.
	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperengine_reconciliations_total",
		Help: "Simulated account reconciliations by adopted source",
	}, []string{"source"})

	// ReplayedHoldings counts holdings replayed into the remote ledger.
	ReplayedHoldings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperengine_replayed_holdings_total",
		Help: "Holdings replayed into the remote ledger",
	})

	// QuoteLookups counts price lookups by result (cache, remote,
	// unreachable, rejected).
	QuoteLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperengine_quote_lookups_total",
		Help: "Price lookups by outcome",
	}, []string{"result"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paperengine_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperengine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paperengine_http_request_duration_seconds",
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

		// Use the raw path for the label; the route surface is small.
		path := r.URL.Path
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
