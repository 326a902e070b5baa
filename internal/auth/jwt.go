package auth

import (
	"errors"
	"fmt"
	"time"

	"sessionguard/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenTypeMismatch = errors.New("token_type mismatch")
	ErrMissingSubject    = errors.New("user_id missing")
	ErrMissingSession    = errors.New("sid missing")
)

type Manager struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, errors.New("token ttls must be positive")
	}
	if cfg.RefreshTokenTTL <= cfg.AccessTokenTTL {
		return nil, errors.New("refresh ttl must exceed access ttl")
	}

	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		leeway:     cfg.Leeway,
	}, nil
}

// TokenPair is a freshly minted access/refresh pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	ExpiresIn        int64
	RefreshExpiresAt time.Time
}

func (m *Manager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

/* ===================== ISSUE TOKENS ===================== */

func (m *Manager) IssuePair(now time.Time, id Identity) (TokenPair, error) {
	if id.UserID == "" {
		return TokenPair{}, ErrMissingSubject
	}
	if id.SessionID == "" {
		return TokenPair{}, ErrMissingSession
	}

	access, err := m.issue(now, TokenTypeAccess, id, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	// Refresh tokens do not carry email or role; those are re-read at rotation.
	refresh, err := m.issue(now, TokenTypeRefresh, Identity{UserID: id.UserID, SessionID: id.SessionID}, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresIn:        int64(m.accessTTL / time.Second),
		RefreshExpiresAt: now.Add(m.refreshTTL),
	}, nil
}

/* ===================== VERIFY TOKEN ===================== */

// Verify checks signature, registered claims and token type at the given instant.
// An expired but otherwise well-formed token yields an error matching jwt.ErrTokenExpired.
func (m *Manager) Verify(tokenString string, expected TokenType, now time.Time) (Claims, error) {
	var claims Claims

	// Claims are validated below against the caller's clock, not time.Now.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(m.leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	validator := jwt.NewValidator(opts...)
	if err := validator.Validate(claims.RegisteredClaims); err != nil {
		return Claims{}, err
	}

	if claims.TokenType != expected {
		return Claims{}, ErrTokenTypeMismatch
	}
	if claims.UserID == "" {
		return Claims{}, ErrMissingSubject
	}
	if claims.SessionID == "" {
		return Claims{}, ErrMissingSession
	}

	return claims, nil
}

/* ===================== INTERNAL ISSUE ===================== */

func (m *Manager) issue(now time.Time, tokenType TokenType, id Identity, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   id.UserID,
			Audience:  audienceOrNil(m.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		UserID:    id.UserID,
		Email:     id.Email,
		Role:      id.Role,
		SessionID: id.SessionID,
		TokenType: tokenType,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return s, nil
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
