package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/sitecms/internal/middleware"
)

// RouteMiddleware holds the per-route middleware applied to write endpoints.
// Nil entries are skipped.
type RouteMiddleware struct {
	Idempotency func(http.Handler) http.Handler
	RateLimit   func(http.Handler) http.Handler
}

func passthrough(next http.Handler) http.Handler { return next }

func orPassthrough(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return passthrough
	}
	return mw
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, rm RouteMiddleware) {
	idem := orPassthrough(rm.Idempotency)
	limit := orPassthrough(rm.RateLimit)

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
		})

		// Auth
		r.Post("/auth/anonymous", h.SignInAnonymously)
		r.With(limit).Post("/auth/token", h.SignInWithToken)
		r.Get("/auth/me", h.Me)

		r.Route("/sites/{siteID}", func(r chi.Router) {
			r.Use(middleware.Site(h.DefaultSite))

			// Public
			r.Get("/content/{kind}", h.ListContent)
			r.With(limit, idem).Post("/requests", h.SubmitRequest)

			// Admin of the site
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSiteAdmin)

				r.With(idem).Post("/content/{kind}", h.CreateContent)
				r.Delete("/content/{kind}/{id}", h.DeleteContent)

				r.Get("/requests", h.ListRequests)
				r.Post("/requests/{id}/{action}", h.RequestAction)

				r.Get("/admin/summary", h.Summary)
			})
		})
	})
}
