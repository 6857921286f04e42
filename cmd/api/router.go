package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/echo-reconcile/pkg/interceptors"
	"github.com/FACorreiaa/echo-reconcile/pkg/observability"
)

// SetupRouter configures all routes and returns the HTTP service
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	tracer := otel.GetTracerProvider().Tracer("echo-reconcile/api")

	var rateLimiter interceptors.Middleware
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter := rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
		rateLimiter = interceptors.RateLimit(limiter)
	}

	wrap := func(_ string, next http.Handler) http.Handler { return next }
	if deps.Config.Observability.MetricsEnabled {
		wrap = observability.Middleware
	}

	registerAPIRoutes(mux, deps, wrap)
	registerUtilityRoutes(mux, deps)

	handler := interceptors.Chain(mux,
		interceptors.RequestID("X-Request-ID"),
		interceptors.Tracing(tracer),
		rateLimiter,
		interceptors.Recovery(deps.Logger),
		interceptors.Logging(deps.Logger),
		interceptors.MaxBody(deps.Config.Server.MaxBodyBytes),
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         7200, // Cache preflights for 2 hours
	})

	return corsHandler.Handler(handler)
}

// registerAPIRoutes mounts the statement and reconciliation endpoints.
func registerAPIRoutes(mux *http.ServeMux, deps *Dependencies, wrap func(string, http.Handler) http.Handler) {
	deps.ImportHandler.Register(mux, wrap)
	deps.Logger.Info("registered statement routes", "prefix", "/v1/statements")

	deps.ReconcileHandler.Register(mux, wrap)
	deps.Logger.Info("registered reconciliation routes", "prefix", "/v1/reconciliations")
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		if deps.DB != nil {
			if err := deps.DB.Health(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				if _, writeErr := w.Write([]byte("database unhealthy")); writeErr != nil {
					deps.Logger.Error("failed to write health response", slog.Any("error", writeErr))
				}
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			deps.Logger.Error("failed to write health response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health check", "path", "/health")

	// Extended health with details on dependencies
	mux.HandleFunc("GET /health/details", func(w http.ResponseWriter, _ *http.Request) {
		type status struct {
			Status string `json:"status"`
			Detail string `json:"detail,omitempty"`
		}
		result := map[string]status{
			"db":        {Status: "ok"},
			"embedding": {Status: "ok"},
			"ready":     {Status: "ok"},
		}

		switch {
		case deps.DB == nil:
			result["db"] = status{Status: "warn", Detail: "no database configured"}
		case deps.DB.Health() != nil:
			result["db"] = status{Status: "fail", Detail: "database unreachable"}
			result["ready"] = status{Status: "fail", Detail: "db unavailable"}
		}

		if deps.Provider == nil {
			result["embedding"] = status{Status: "warn", Detail: "GEMINI_API_KEY missing"}
		}

		code := http.StatusOK
		for _, v := range result {
			if v.Status == "fail" {
				code = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(result); err != nil {
			deps.Logger.Error("failed to encode health details", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health details", "path", "/health/details")

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ready")); err != nil {
			deps.Logger.Error("failed to write readiness response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	if deps.Config.Observability.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}
