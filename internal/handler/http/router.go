package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/pizzashop/internal/service"
	"github.com/utafrali/pizzashop/pkg/health"
	"github.com/utafrali/pizzashop/pkg/middleware"
)

// RouterConfig holds the HTTP settings that are not part of the service.
type RouterConfig struct {
	ServiceName    string
	CORS           middleware.CORSConfig
	PprofCIDRs     []string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
	SessionTTL     time.Duration
	SecureCookies  bool
}

// NewRouter creates a chi router with all storefront routes registered.
// ctx bounds the rate limiter's background cleanup.
func NewRouter(
	ctx context.Context,
	storefront *service.StorefrontService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	h := NewStorefrontHandler(storefront, logger)
	limit := middleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	r.Group(func(r chi.Router) {
		r.Use(Sessions(cfg.SessionTTL, cfg.SecureCookies))
		r.Use(middleware.RequestLogger(logger))

		// Pages
		r.Get("/", h.GetCatalog)
		r.Get("/cart", h.GetCart)

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Get("/menu", h.GetMenu)
			r.Get("/catalog", h.GetCatalog)
			r.Get("/cart", h.GetCart)

			r.Group(func(r chi.Router) {
				r.Use(limit)

				r.Put("/filter/category", h.SetCategory)
				r.Put("/filter/sort", h.SetSortBy)
				r.Post("/catalog/reload", h.Reload)

				r.Delete("/cart", h.ClearCart)
				r.Post("/cart/items", h.AddItem)
				r.Delete("/cart/items/{productId}/{type}/{size}", h.RemoveItem)
				r.Delete("/cart/lines/{productId}/{type}/{size}", h.RemoveLine)
			})
		})
	})

	return r
}
