package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/3Health-View/backend/internal/service"
	"github.com/3Health-View/backend/pkg/health"
	"github.com/3Health-View/backend/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the HTTP layer.
const ServiceName = "threehv-backend"

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string

	// CredentialRateLimit throttles signup and login per client IP. A zero
	// RPS disables it.
	CredentialRateLimit middleware.RateLimitConfig
}

// NewRouter creates a chi router with all backend routes registered.
func NewRouter(
	userService *service.UserService,
	dataService *service.DataService,
	validateToken middleware.TokenValidator,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	r.Get("/api/v1/hello", Hello)

	userHandler := NewUserHandler(userService, logger)
	dataHandler := NewDataHandler(dataService, logger)

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.CacheControl("no-store"))

		r.Group(func(r chi.Router) {
			if cfg.CredentialRateLimit.RPS > 0 {
				r.Use(middleware.RateLimit(cfg.CredentialRateLimit, logger))
			}

			r.Post("/signup", userHandler.Signup)
			r.Post("/login", userHandler.Login)
		})
		r.Post("/get-token", userHandler.GetToken)
		r.Post("/refresh-token", userHandler.RefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(validateToken))
			r.Use(middleware.RequestLogger(logger))

			r.Patch("/update-oura", userHandler.UpdateOura)
		})
	})

	r.Route("/api/v1/data", func(r chi.Router) {
		r.Use(middleware.CacheControl("no-store"))
		r.Use(middleware.Auth(validateToken))
		r.Use(middleware.RequestLogger(logger))

		r.Post("/update-scores", dataHandler.UpdateScores)
		r.Get("/display-info", dataHandler.DisplayInfo)
		r.Delete("/remove-data", dataHandler.RemoveData)
	})

	return r
}
