package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/servicehub/internal/domain"
	"github.com/utafrali/servicehub/pkg/health"
	"github.com/utafrali/servicehub/pkg/middleware"
)

const serviceName = "servicehub"

// Services bundles what the router dispatches to.
type Services struct {
	Addresses AddressService
	Accounts  AccountService
	Catalog   CatalogService
}

// RouterConfig holds the transport settings of the router.
type RouterConfig struct {
	CORS       middleware.CORSConfig
	PprofCIDRs []string
	// CatalogMaxAge is the Cache-Control max-age of catalog reads.
	CatalogMaxAge time.Duration
	// AuthRPS and AuthBurst throttle register and login per client.
	AuthRPS   float64
	AuthBurst int
}

// NewRouter creates a chi router with all servicehub routes registered.
func NewRouter(
	svcs Services,
	identify middleware.TokenValidator,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	authHandler := NewAuthHandler(svcs.Accounts, logger)
	addressHandler := NewAddressHandler(svcs.Addresses, logger)
	catalogHandler := NewCatalogHandler(svcs.Catalog, logger)

	r.Route("/api", func(r chi.Router) {
		// Auth endpoints (public, throttled)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.AuthRPS, cfg.AuthBurst, logger))

			for _, kind := range []domain.AccountKind{domain.KindUser, domain.KindProvider} {
				r.Post("/auth/"+string(kind)+"/register", authHandler.Register(kind))
				r.Post("/auth/"+string(kind)+"/login", authHandler.Login(kind))
			}
		})

		// Catalog endpoints (public)
		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(cfg.CatalogMaxAge))

			r.Get("/categories", catalogHandler.ListCategories)
			r.Get("/categories/{path}/services", catalogHandler.ServicesByCategory)
			r.Get("/services/search/{query}", catalogHandler.Search)
			r.Get("/services/{id}", catalogHandler.GetService)
			r.Get("/services/{id}/reviews", catalogHandler.ListReviews)
		})

		// Account and address book endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(identify))

			r.Get("/me", authHandler.Me)

			r.Get("/address", addressHandler.List)
			r.Post("/address", addressHandler.Create)
			r.Put("/address/{id}", addressHandler.Update)
			r.Delete("/address/{id}", addressHandler.Delete)
		})
	})

	return r
}
