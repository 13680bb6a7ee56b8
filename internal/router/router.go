// Package router sets up all HTTP routes and middleware chains for the
// ProofPress API. Reads are public; writes and the caller's own listings
// require a principal.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proofpress/internal/handlers"
	"proofpress/internal/middleware"
)

// New creates and returns the configured Chi router with all middleware
// and route groups wired up. A nil limiter disables rate limiting.
func New(limiter *middleware.RateLimiter, articles *handlers.Articles, profiles *handlers.Profiles, health http.Handler) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)

	r.Method(http.MethodGet, "/health", health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}
		r.Use(middleware.LoadPrincipal)

		r.Route("/articles", func(r chi.Router) {
			// Public reads
			r.Get("/", articles.List)
			r.Get("/slug/{slug}", articles.BySlug)
			r.Get("/{id}", articles.Get)
			r.Get("/{id}/registrations", articles.Registrations)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePrincipal)
				r.Post("/", articles.Create)
				r.Get("/mine", articles.Mine)
				r.Patch("/{id}", articles.Update)
				r.Delete("/{id}", articles.Delete)
				r.Post("/{id}/publish", articles.Publish)
				r.Post("/{id}/resume", articles.Resume)
				r.Patch("/{id}/registration", articles.AttachRegistration)
			})
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(middleware.RequirePrincipal)
			r.Get("/", profiles.Get)
			r.Post("/", profiles.Create)
			r.Patch("/", profiles.Update)
			r.Put("/wallet", profiles.SetWallet)
		})
	})

	return r
}
