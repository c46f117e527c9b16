// Package user defines the identity model for authentication and authorization.
package user

import (
	"errors"
	"strings"

	"github.com/Strob0t/sitecms/internal/domain/site"
)

// Role represents the authorization level of an identity.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleVisitor Role = "visitor"
)

// ValidRoles is the set of all valid roles.
var ValidRoles = map[Role]bool{
	RoleAdmin:   true,
	RoleVisitor: true,
}

// PublicMarker is recorded as the creator of requests submitted without an identity.
const PublicMarker = "public"

// Identity is the authenticated principal acting on a request or session.
type Identity struct {
	UserID    string   `json:"user_id"`
	Role      Role     `json:"role"`
	Sites     []string `json:"sites,omitempty"`
	Anonymous bool     `json:"anonymous"`
}

// CanAdminister reports whether the identity holds the admin role for siteID.
func (i *Identity) CanAdminister(siteID string) bool {
	if i == nil || i.Role != RoleAdmin {
		return false
	}
	return site.InScope(i.Sites, siteID)
}

// ActorID returns the user id, or PublicMarker for a nil identity.
func (i *Identity) ActorID() string {
	if i == nil || i.UserID == "" {
		return PublicMarker
	}
	return i.UserID
}

// SignInRequest carries the custom token an admin signs in with.
type SignInRequest struct {
	Token string `json:"token"` //nolint:gosec // request field, not a hardcoded secret
}

// Validate checks that a token was supplied.
func (r *SignInRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return errors.New("token is required")
	}
	return nil
}

// SignInResponse is returned after a successful sign-in.
type SignInResponse struct {
	AccessToken string   `json:"access_token"` //nolint:gosec // response field, not a hardcoded secret
	ExpiresIn   int      `json:"expires_in"`   // seconds until access token expires
	Identity    Identity `json:"identity"`
}

// TokenClaims contains the JWT payload fields.
type TokenClaims struct {
	UserID    string   `json:"sub"`
	Role      Role     `json:"role"`
	Sites     []string `json:"sites,omitempty"`
	Anonymous bool     `json:"anon,omitempty"`
	IssuedAt  int64    `json:"iat"`
	Expiry    int64    `json:"exp"`
	JTI       string   `json:"jti,omitempty"`
	Audience  string   `json:"aud,omitempty"`
	Issuer    string   `json:"iss,omitempty"`
}

// Identity returns the identity the claims describe.
func (c *TokenClaims) Identity() *Identity {
	return &Identity{
		UserID:    c.UserID,
		Role:      c.Role,
		Sites:     c.Sites,
		Anonymous: c.Anonymous,
	}
}
