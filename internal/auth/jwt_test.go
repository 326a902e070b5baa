package auth

import (
	"errors"
	"testing"
	"time"

	"sessionguard/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

var testIdentity = Identity{UserID: "user-1", Email: "a@example.com", Role: "member", SessionID: "sess-1"}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := newTestManager(t)

	now := time.Unix(1700000000, 0).UTC()
	pair, err := m.IssuePair(now, testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}
	if pair.ExpiresIn != 900 {
		t.Fatalf("expected expires_in 900, got %d", pair.ExpiresIn)
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "a@example.com" || claims.Role != "member" || claims.SessionID != "sess-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRefreshTokenCarriesNoRole(t *testing.T) {
	m := newTestManager(t)
	now := time.Unix(1700000000, 0).UTC()

	pair, err := m.IssuePair(now, testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Verify(pair.RefreshToken, TokenTypeRefresh, now)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Role != "" || claims.Email != "" {
		t.Fatalf("refresh token leaked identity: %+v", claims)
	}
	if claims.SessionID != "sess-1" {
		t.Fatalf("expected session id on refresh token")
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m := newTestManager(t)
	now := time.Now()
	p, err := m.IssuePair(now, testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, now); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Fatalf("expected token_type mismatch, got %v", err)
	}
}

func TestVerifyReportsExpiry(t *testing.T) {
	m := newTestManager(t)
	now := time.Unix(1700000000, 0).UTC()
	p, err := m.IssuePair(now, testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = m.Verify(p.AccessToken, TokenTypeAccess, now.Add(15*time.Minute))
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired at exp, got %v", err)
	}
}

func TestNewManagerValidatesTTLs(t *testing.T) {
	if _, err := NewManager(config.AuthConfig{JWTSecret: "s", AccessTokenTTL: time.Hour, RefreshTokenTTL: time.Minute}); err == nil {
		t.Fatalf("expected error when refresh ttl <= access ttl")
	}
	if _, err := NewManager(config.AuthConfig{AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour}); err == nil {
		t.Fatalf("expected error without secret")
	}
}

func TestIssuePairRequiresSession(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.IssuePair(time.Now(), Identity{UserID: "u"}); !errors.Is(err, ErrMissingSession) {
		t.Fatalf("expected ErrMissingSession, got %v", err)
	}
}

func TestVerifyChecksIssuerAndAudience(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	p, err := newTestManager(t).IssuePair(now, testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "someone-else",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	if _, err := other.Verify(p.AccessToken, TokenTypeAccess, now); !errors.Is(err, jwt.ErrTokenInvalidIssuer) {
		t.Fatalf("expected invalid issuer, got %v", err)
	}

	other, err = NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "other-aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	if _, err := other.Verify(p.AccessToken, TokenTypeAccess, now); !errors.Is(err, jwt.ErrTokenInvalidAudience) {
		t.Fatalf("expected invalid audience, got %v", err)
	}
}

func TestVerifyAppliesLeeway(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Leeway:          time.Minute,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	now := time.Unix(1700000000, 0).UTC()
	p, err := m.IssuePair(now, testIdentity)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(15*time.Minute+30*time.Second)); err != nil {
		t.Fatalf("expected token within leeway to verify, got %v", err)
	}
}
