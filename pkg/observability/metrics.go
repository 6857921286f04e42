package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/FACorreiaa/echo-reconcile/pkg/interceptors"
)

var (
	// RequestsTotal tracks total number of HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echo_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code"},
	)

	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "echo_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// ActiveRequests tracks currently active requests
	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "echo_http_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"route"},
	)

	// StatementRowsTotal counts statement rows by outcome ("parsed", "skipped").
	StatementRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echo_statement_rows_total",
			Help: "Statement rows processed by outcome",
		},
		[]string{"outcome"},
	)

	// EmbeddingRequestsTotal counts provider calls by outcome.
	EmbeddingRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echo_embedding_requests_total",
			Help: "Embedding provider calls by outcome",
		},
		[]string{"outcome"},
	)

	// MatchesTotal counts transactions per reconciliation outcome.
	MatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echo_reconcile_transactions_total",
			Help: "Reconciled transactions by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// ReconcileDuration tracks end-to-end reconciliation time.
	ReconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "echo_reconcile_duration_seconds",
			Help:    "Reconciliation run duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"strategy"},
	)
)

// Middleware collects Prometheus metrics for the handler mounted at route.
func Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ActiveRequests.WithLabelValues(route).Inc()
		defer ActiveRequests.WithLabelValues(route).Dec()

		start := time.Now()
		rec := interceptors.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)

		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.Status)).Inc()
	})
}
