package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Strob0t/sitecms/internal/domain/user"
)

type identityCtxKey struct{}

// TokenValidator verifies a signed access token.
type TokenValidator interface {
	ValidateAccessToken(token string) (*user.TokenClaims, error)
}

// DefaultAdmin is injected on every request when auth is disabled.
var DefaultAdmin = user.Identity{
	UserID: "local-admin",
	Role:   user.RoleAdmin,
	Sites:  []string{"*"},
}

// publicPaths never look at credentials. The websocket resolves its own
// identity from ?token= and falls back to an anonymous one.
var publicPaths = map[string]bool{
	"/health":                true,
	"/api/v1/auth/anonymous": true,
	"/api/v1/auth/token":     true,
	"/ws":                    true,
}

// Auth returns middleware that resolves the bearer token into an identity.
// A request without credentials continues anonymously; routes that need an
// identity are guarded by RequireRole or by the service access policy.
// When authEnabled is false, a default admin identity is injected.
func Auth(tokens TokenValidator, authEnabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authEnabled {
				admin := DefaultAdmin
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), &admin)))
				return
			}

			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				writeJSONError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			claims, err := tokens.ValidateAccessToken(token)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.Identity())))
		})
	}
}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *user.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext returns the authenticated identity, or nil.
func IdentityFromContext(ctx context.Context) *user.Identity {
	id, _ := ctx.Value(identityCtxKey{}).(*user.Identity)
	return id
}
