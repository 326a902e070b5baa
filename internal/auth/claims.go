package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Refresh tokens carry only the subject and session; email and role live on access tokens.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	SessionID string    `json:"sid"`
	TokenType TokenType `json:"token_type"`
}

// Identity is the authenticated principal a token pair is minted for.
type Identity struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
}

// Claim is the decoded payload of a valid access token.
type Claim struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

func (c Claim) Identity() Identity {
	return Identity{UserID: c.UserID, Email: c.Email, Role: c.Role, SessionID: c.SessionID}
}

func claimFrom(c Claims) *Claim {
	out := &Claim{
		UserID:    c.UserID,
		Email:     c.Email,
		Role:      c.Role,
		SessionID: c.SessionID,
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	return out
}
