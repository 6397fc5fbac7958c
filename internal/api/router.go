// Package api builds the HTTP router for the service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	mw "github.com/drishti-ai/drishti/internal/api/middleware"
	"github.com/drishti-ai/drishti/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler  http.HandlerFunc
	AnalyzeHandler http.HandlerFunc
	PollHandler    http.HandlerFunc
	CancelHandler  http.HandlerFunc
	CertifyHandler http.HandlerFunc
	VerifyHandler  http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Public certificate verification: anyone holding a hash may check it
	r.Get("/v1/verify/{hash}", orNotImplemented(deps.VerifyHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/v1/analyze", orNotImplemented(deps.AnalyzeHandler))
		r.Get("/v1/analyze/{requestID}", orNotImplemented(deps.PollHandler))
		r.Delete("/v1/analyze/{requestID}", orNotImplemented(deps.CancelHandler))

		r.Post("/v1/certify", orNotImplemented(deps.CertifyHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
