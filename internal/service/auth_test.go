package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/sitecms/internal/config"
	"github.com/Strob0t/sitecms/internal/domain"
	"github.com/Strob0t/sitecms/internal/domain/user"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("mairie-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Auth{
		Enabled:           true,
		JWTSecret:         "test-secret-key-must-be-long-enough",
		AccessTokenExpiry: 15 * time.Minute,
		BcryptCost:        bcrypt.MinCost,
		Admins: []config.AdminCredential{
			{ID: "admin-mairie", TokenHash: string(hash), Sites: []string{"mairie"}},
		},
	}
	return NewAuthService(&cfg)
}

func TestAuthService_SignInAnonymously(t *testing.T) {
	svc := newTestAuthService(t)

	resp, err := svc.SignInAnonymously()
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if !resp.Identity.Anonymous || resp.Identity.Role != user.RoleVisitor {
		t.Fatalf("unexpected identity: %+v", resp.Identity)
	}
	if !strings.HasPrefix(resp.Identity.UserID, "anon-") {
		t.Errorf("anonymous id = %q", resp.Identity.UserID)
	}
	if resp.ExpiresIn != 900 {
		t.Errorf("expires_in = %d, want 900", resp.ExpiresIn)
	}

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != resp.Identity.UserID || !claims.Anonymous {
		t.Errorf("claims = %+v", claims)
	}

	other, _ := svc.SignInAnonymously()
	if other.Identity.UserID == resp.Identity.UserID {
		t.Error("each anonymous sign-in should get a fresh id")
	}
}

func TestAuthService_SignInWithToken(t *testing.T) {
	svc := newTestAuthService(t)

	resp, err := svc.SignInWithToken(user.SignInRequest{Token: "mairie-secret"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if resp.Identity.UserID != "admin-mairie" || resp.Identity.Role != user.RoleAdmin {
		t.Fatalf("unexpected identity: %+v", resp.Identity)
	}
	if !resp.Identity.CanAdminister("mairie") || resp.Identity.CanAdminister("other") {
		t.Errorf("site scope not carried: %+v", resp.Identity)
	}

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !claims.Identity().CanAdminister("mairie") {
		t.Errorf("claims lost the site scope: %+v", claims)
	}
}

func TestAuthService_SignInWithTokenRejects(t *testing.T) {
	svc := newTestAuthService(t)

	if _, err := svc.SignInWithToken(user.SignInRequest{Token: "wrong"}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("wrong token: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := svc.SignInWithToken(user.SignInRequest{}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty token: expected ErrValidation, got %v", err)
	}
}

func TestAuthService_InvalidToken(t *testing.T) {
	svc := newTestAuthService(t)
	resp, err := svc.SignInAnonymously()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"two parts", "a.b"},
		{"tampered signature", resp.AccessToken[:len(resp.AccessToken)-2] + "xx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ValidateAccessToken(tt.token); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	other := NewAuthService(&config.Auth{JWTSecret: "another-secret", AccessTokenExpiry: time.Minute})
	if _, err := other.ValidateAccessToken(resp.AccessToken); err == nil {
		t.Error("token signed with another secret must be rejected")
	}
}

func TestAuthService_ExpiredToken(t *testing.T) {
	svc := newTestAuthService(t)
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	resp, err := svc.SignInAnonymously()
	if err != nil {
		t.Fatal(err)
	}
	svc.now = func() time.Time { return issued.Add(16 * time.Minute) }

	if _, err := svc.ValidateAccessToken(resp.AccessToken); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestAuthService_Resolve(t *testing.T) {
	svc := newTestAuthService(t)

	id, token, err := svc.Resolve("")
	if err != nil {
		t.Fatalf("resolve anonymous: %v", err)
	}
	if !id.Anonymous || token == "" {
		t.Fatalf("empty token should fall back to anonymous, got %+v", id)
	}

	again, same, err := svc.Resolve(token)
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	if again.UserID != id.UserID || same != token {
		t.Errorf("resolve(token) = %+v", again)
	}

	if _, _, err := svc.Resolve("bogus"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestHashToken(t *testing.T) {
	hash, err := HashToken("s3cret", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")) != nil {
		t.Error("hash does not match its token")
	}
	if _, err := HashToken("  ", bcrypt.MinCost); err == nil {
		t.Error("blank token should be rejected")
	}
}
