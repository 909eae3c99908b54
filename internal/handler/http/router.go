package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Asdisarson/ss/pkg/health"
	"github.com/Asdisarson/ss/pkg/middleware"
)

// serviceName labels request metrics and spans.
const serviceName = "catalog-search"

// RouterConfig carries the router's collaborators and access settings.
type RouterConfig struct {
	Search              Searcher
	Catalog             CatalogSyncer
	Health              *health.Handler
	Logger              *slog.Logger
	Detailed            bool
	RefreshAllowedCIDRs []string
	PprofAllowedCIDRs   []string
	RequestTimeout      time.Duration
	// RefreshTimeout bounds POST /api/refresh; RequestTimeout covers the rest.
	RefreshTimeout time.Duration

	SearchRateLimit  middleware.RateLimitConfig
	RefreshRateLimit middleware.RateLimitConfig
	// RefreshJWTSecret, when set, requires a bearer token on POST /api/refresh.
	RefreshJWTSecret string
}

// NewRouter creates a chi router with all search service routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 10 * time.Minute
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimw.Compress(5))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, cfg.Logger)

	searchHandler := NewSearchHandler(cfg.Search, cfg.Logger, cfg.Detailed)
	catalogHandler := NewCatalogHandler(cfg.Catalog, cfg.Logger, cfg.Detailed)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.SearchRateLimit, cfg.Logger))
			r.Use(chimw.Timeout(cfg.RequestTimeout))
			r.Get("/search", searchHandler.Search)
			r.Get("/products/search", searchHandler.ProductSearch)
			r.Get("/last-update", catalogHandler.LastUpdate)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.IPAllowlist(cfg.RefreshAllowedCIDRs, cfg.Logger))
			r.Use(middleware.BearerAuth(cfg.RefreshJWTSecret, cfg.Logger))
			r.Use(middleware.RateLimit(cfg.RefreshRateLimit, cfg.Logger))
			r.Use(chimw.Timeout(cfg.RefreshTimeout))
			r.Post("/refresh", catalogHandler.Refresh)
		})
	})

	return r
}
