package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/sitecms/internal/domain/site"
)

type siteCtxKey struct{}

// Site returns middleware that resolves the {siteID} route parameter into a
// sanitized site id (falling back to defaultSite) and stores it in the context.
func Site(defaultSite string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := site.Resolve(chi.URLParam(r, "siteID"), defaultSite)
			next.ServeHTTP(w, r.WithContext(WithSite(r.Context(), id)))
		})
	}
}

// WithSite returns a context carrying siteID.
func WithSite(ctx context.Context, siteID string) context.Context {
	return context.WithValue(ctx, siteCtxKey{}, siteID)
}

// SiteFromContext returns the site id stored in ctx, or "" if absent.
func SiteFromContext(ctx context.Context) string {
	id, _ := ctx.Value(siteCtxKey{}).(string)
	return id
}
