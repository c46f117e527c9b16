package middleware

import (
	"net/http"

	"github.com/Strob0t/sitecms/internal/domain/user"
)

// RequireRole returns middleware that restricts access to identities with one of the given roles.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	allowed := make(map[user.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if id == nil {
				writeJSONError(w, http.StatusUnauthorized, "authorization required")
				return
			}

			if !allowed[id.Role] {
				writeJSONError(w, http.StatusForbidden, "forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireSiteAdmin rejects identities that may not administer the site
// resolved by the Site middleware.
func RequireSiteAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		if id == nil {
			writeJSONError(w, http.StatusUnauthorized, "authorization required")
			return
		}
		if !id.CanAdminister(SiteFromContext(r.Context())) {
			writeJSONError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
