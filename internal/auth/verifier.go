package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Status classifies an access token for callers that must tell expiry apart from garbage.
type Status int

const (
	StatusInvalid Status = iota
	StatusValid
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Verifier validates access tokens. It performs no I/O and holds no mutable state,
// so a single instance is shared by every request.
type Verifier struct {
	m     *Manager
	clock func() time.Time
}

func NewVerifier(m *Manager) *Verifier {
	return &Verifier{m: m, clock: time.Now}
}

// WithClock returns a copy of v that reads time from fn.
func (v *Verifier) WithClock(fn func() time.Time) *Verifier {
	return &Verifier{m: v.m, clock: fn}
}

// Verify returns the claim of a valid access token, or nil for anything else.
func (v *Verifier) Verify(token string) *Claim {
	claim, status := v.Check(token)
	if status != StatusValid {
		return nil
	}
	return claim
}

// Check is Verify with the reason. The claim is only non-nil for StatusValid.
// StatusExpired is reported only for tokens whose signature checked out.
func (v *Verifier) Check(token string) (*Claim, Status) {
	if token == "" || v == nil || v.m == nil {
		return nil, StatusInvalid
	}

	claims, err := v.m.Verify(token, TokenTypeAccess, v.clock())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, StatusExpired
		}
		return nil, StatusInvalid
	}
	return claimFrom(claims), StatusValid
}

// PeekExpiry decodes exp without verifying the signature.
// Only use it for client-side scheduling, never for authorization.
func PeekExpiry(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, jwt.ErrTokenRequiredClaimMissing
	}
	return claims.ExpiresAt.Time, nil
}
