package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/stylinx/pkg/health"
	"github.com/utafrali/stylinx/pkg/middleware"
)

// ServiceName labels this service in metrics and traces.
const ServiceName = "checkout"

// RouterConfig holds the router settings that come from configuration.
type RouterConfig struct {
	Environment    string
	CORSOrigins    []string
	PprofCIDRs     []string
	RequestTimeout time.Duration
	// RateLimitRPS is the per-client request rate on the session API.
	// Zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter creates a chi router with all checkout routes registered.
func NewRouter(
	sessions SessionService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSOrigins,
		Environment:    cfg.Environment,
	}))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	sessionHandler := NewSessionHandler(sessions, logger)

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
		r.Use(middleware.NoStore)
		r.Use(ContentTypeJSON)

		r.Post("/", sessionHandler.CreateSession)

		r.Route("/{sessionId}", func(r chi.Router) {
			r.Use(middleware.SessionScope(logger))

			r.Get("/", sessionHandler.GetSession)
			r.Delete("/", sessionHandler.DeleteSession)
			r.Post("/commands", sessionHandler.ExecuteCommand)
			r.Get("/orders", sessionHandler.ListOrders)
		})
	})

	return r
}
