package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/sitecms/internal/config"
	"github.com/Strob0t/sitecms/internal/domain"
	"github.com/Strob0t/sitecms/internal/domain/user"
)

const (
	tokenAudience = "sitecms"
	tokenIssuer   = "sitecms-core"
)

// AuthService issues and verifies identities: anonymous visitors and admins
// holding a custom token.
type AuthService struct {
	cfg    *config.Auth
	secret []byte
	now    func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(cfg *config.Auth) *AuthService {
	return &AuthService{
		cfg:    cfg,
		secret: []byte(cfg.JWTSecret),
		now:    time.Now,
	}
}

// SignInAnonymously issues a fresh visitor identity.
func (s *AuthService) SignInAnonymously() (*user.SignInResponse, error) {
	id := &user.Identity{
		UserID:    "anon-" + uuid.NewString(),
		Role:      user.RoleVisitor,
		Anonymous: true,
	}
	return s.issue(id)
}

// SignInWithToken exchanges a custom token for an admin identity. The token
// is compared against the bcrypt hashes of the configured admins.
func (s *AuthService) SignInWithToken(req user.SignInRequest) (*user.SignInResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	for i := range s.cfg.Admins {
		a := &s.cfg.Admins[i]
		if bcrypt.CompareHashAndPassword([]byte(a.TokenHash), []byte(req.Token)) != nil {
			continue
		}
		return s.issue(&user.Identity{
			UserID: a.ID,
			Role:   user.RoleAdmin,
			Sites:  a.Sites,
		})
	}
	return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
}

// Resolve returns the identity behind token, or signs in anonymously when
// token is empty. The returned token is the one the caller should keep.
func (s *AuthService) Resolve(token string) (*user.Identity, string, error) {
	if token == "" {
		resp, err := s.SignInAnonymously()
		if err != nil {
			return nil, "", err
		}
		return &resp.Identity, resp.AccessToken, nil
	}
	claims, err := s.ValidateAccessToken(token)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}
	return claims.Identity(), token, nil
}

// ValidateAccessToken verifies a JWT and returns the claims.
func (s *AuthService) ValidateAccessToken(tokenStr string) (*user.TokenClaims, error) {
	return s.verifyJWT(tokenStr)
}

// HashToken returns the bcrypt hash to configure for a custom admin token.
func HashToken(token string, cost int) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", errors.New("token is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

func (s *AuthService) issue(id *user.Identity) (*user.SignInResponse, error) {
	token, err := s.signJWT(id)
	if err != nil {
		return nil, fmt.Errorf("sign jwt: %w", err)
	}
	return &user.SignInResponse{
		AccessToken: token,
		ExpiresIn:   int(s.cfg.AccessTokenExpiry.Seconds()),
		Identity:    *id,
	}, nil
}

// --- JWT implementation (HS256 with stdlib) ---

// jwtHeader is the fixed base64url-encoded header for HS256.
var jwtHeader = base64URLEncode([]byte(`{"alg":"HS256","typ":"JWT"}`))

func (s *AuthService) signJWT(id *user.Identity) (string, error) {
	now := s.now()
	claims := user.TokenClaims{
		UserID:    id.UserID,
		Role:      id.Role,
		Sites:     id.Sites,
		Anonymous: id.Anonymous,
		IssuedAt:  now.Unix(),
		Expiry:    now.Add(s.cfg.AccessTokenExpiry).Unix(),
		JTI:       uuid.NewString(),
		Audience:  tokenAudience,
		Issuer:    tokenIssuer,
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	signingInput := jwtHeader + "." + base64URLEncode(payload)
	return signingInput + "." + s.sign(signingInput), nil
}

func (s *AuthService) verifyJWT(tokenStr string) (*user.TokenClaims, error) {
	parts := strings.SplitN(tokenStr, ".", 3)
	if len(parts) != 3 {
		return nil, errors.New("malformed token")
	}

	expectedSig := s.sign(parts[0] + "." + parts[1])
	if !hmac.Equal([]byte(parts[2]), []byte(expectedSig)) {
		return nil, errors.New("invalid signature")
	}

	payload, err := base64URLDecode(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var claims user.TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}

	if s.now().Unix() > claims.Expiry {
		return nil, errors.New("token expired")
	}
	if claims.Audience != tokenAudience {
		return nil, errors.New("invalid token audience")
	}
	if claims.Issuer != tokenIssuer {
		return nil, errors.New("invalid token issuer")
	}
	if !user.ValidRoles[claims.Role] {
		return nil, errors.New("invalid token role")
	}

	return &claims, nil
}

func (s *AuthService) sign(input string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(input))
	return base64URLEncode(mac.Sum(nil))
}

func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
