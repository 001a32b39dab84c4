// Package router wires the HTTP surface: capability endpoints under
// /api behind org scoping, credential administration under /admin behind
// JWT auth, and public health/metrics probes.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clearwell-health/therabill/internal/http/handlers"
	httpmiddleware "github.com/clearwell-health/therabill/internal/http/middleware"
	"github.com/clearwell-health/therabill/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Eligibility        *handlers.EligibilityHandler
	CredentialsAdmin   *handlers.CredentialsAdminHandler
	Health             *handlers.HealthHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Requests/sec per client IP for the /api group. Zero disables
	// rate limiting.
	APIRateLimit float64
	APIRateBurst int
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (health checks, metrics)
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health.Check)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Capability endpoints, org-scoped
	if cfg.Eligibility != nil {
		r.Group(func(api chi.Router) {
			if cfg.APIRateLimit > 0 {
				api.Use(httpmiddleware.RateLimit(cfg.APIRateLimit, cfg.APIRateBurst))
			}
			api.Use(requireOrgID)
			api.Route("/api/payers", func(r chi.Router) {
				r.Get("/", cfg.Eligibility.ListPayers)
				r.Route("/{payerCode}", func(r chi.Router) {
					r.Get("/health", cfg.Eligibility.PayerHealth)
					r.Post("/eligibility", cfg.Eligibility.CheckEligibility)
					r.Post("/benefits", cfg.Eligibility.GetBenefits)
					r.Post("/claims-history", cfg.Eligibility.GetClaimsHistory)
					r.Post("/prior-auth", cfg.Eligibility.CheckPriorAuth)
					r.Delete("/eligibility/{memberID}/cache", cfg.Eligibility.InvalidateCache)
				})
			})
		})
	}

	// Credential administration, JWT-protected
	if cfg.CredentialsAdmin != nil {
		r.Group(func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Route("/admin/orgs/{orgID}/payers", func(r chi.Router) {
				r.Get("/credentials", cfg.CredentialsAdmin.List)
				r.Put("/{payerCode}/credentials", cfg.CredentialsAdmin.Upsert)
				r.Delete("/{payerCode}/credentials", cfg.CredentialsAdmin.Delete)
			})
		})
	}

	return r
}
