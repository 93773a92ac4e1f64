package middleware

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
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	leadIntake = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_intake_total",
			Help: "Lead submissions by outcome (created, merged, spam, rate_limited)",
		},
		[]string{"outcome"},
	)

	webhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Finished webhook deliveries by event and result",
		},
		[]string{"event", "result"},
	)

	webhookAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_delivery_attempts",
			Help:    "Attempts spent per webhook delivery",
			Buckets: []float64{1, 2, 3, 4},
		},
	)

	purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_purchases_total",
			Help: "Purchase flow results by stage",
		},
		[]string{"stage", "result"},
	)

	listingsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_expired_total",
			Help: "Listings closed by the expiration sweeper",
		},
	)

	integrationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_errors_total",
			Help: "Total number of integration errors",
		},
		[]string{"service"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Metrics records request count and latency per route pattern, so path
// parameters do not explode label cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeConnections.Inc()
		defer activeConnections.Dec()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)
		path := routePattern(r)

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func RecordLeadIntake(outcome string) {
	leadIntake.WithLabelValues(outcome).Inc()
}

func RecordWebhookDelivery(event string, success bool, attempts int) {
	result := "failed"
	if success {
		result = "delivered"
	}
	webhookDeliveries.WithLabelValues(event, result).Inc()
	webhookAttempts.Observe(float64(attempts))
}

func RecordPurchase(stage, result string) {
	purchases.WithLabelValues(stage, result).Inc()
}

func RecordListingsExpired(n int64) {
	listingsExpired.Add(float64(n))
}

func RecordIntegrationError(service string) {
	integrationErrors.WithLabelValues(service).Inc()
}
