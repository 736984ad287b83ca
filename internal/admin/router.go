package admin

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/fusebox/fusebox/pkg/breaker"
	"github.com/fusebox/fusebox/pkg/cache"
	"github.com/fusebox/fusebox/pkg/token"
)

// Config holds the dependencies for the admin router.
type Config struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *Metrics
	Registry  *breaker.Registry
	Store     cache.Store
	Cache     *cache.Interceptor
	Tokens    *token.Service
}

// NewRouter creates a chi router with all admin routes configured.
// Inspection endpoints are open behind IP rate limits; forced transitions
// and purges require a bearer token.
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(RequestID)
	r.Use(Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(Logger(cfg.Logger))
	r.Use(Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)

	circuits := &circuitHandler{registry: cfg.Registry, cache: cfg.Cache, logger: cfg.Logger}
	cacheAdmin := &cacheHandler{store: cfg.Store, logger: cfg.Logger}
	ops := &opsHandler{version: cfg.Version, buildTime: cfg.BuildTime, store: cfg.Store, registry: cfg.Registry}

	authMiddleware := Auth(cfg.Tokens)
	readLimit := RateLimitByIP(ReadRateLimit)
	mutationLimit := RateLimitBySubject(MutationRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/circuits", func(r chi.Router) {
			r.With(readLimit).Get("/", circuits.List)
			r.With(readLimit).Get("/{name}", circuits.Get)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware)
				r.Use(mutationLimit)
				r.Post("/{name}:force-open", circuits.ForceOpen)
				r.Post("/{name}:force-close", circuits.ForceClose)
			})
		})

		r.With(authMiddleware, mutationLimit).Delete("/cache", cacheAdmin.Purge)

		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", ops.Health)
			r.Get("/ready", ops.Ready)
		})
	})

	return r
}
