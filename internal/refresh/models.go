package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"
)

// Record is the server-side trace of an issued refresh token.
// Only the hash is stored; the token itself is never persisted.
type Record struct {
	Hash      string     `json:"hash" db:"hash"`
	UserID    string     `json:"user_id" db:"user_id"`
	SessionID string     `json:"session_id" db:"session_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

func (r Record) Active(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

var (
	ErrNotFound     = errors.New("refresh: record not found")
	ErrInvalidToken = errors.New("refresh: invalid refresh token")
	ErrTokenReused  = errors.New("refresh: token reused, session revoked")
)

// Repository persists refresh records.
//
// RevokeIfActive must be atomic: of two concurrent calls for the same hash,
// exactly one may observe true. Rotation safety depends on it.
type Repository interface {
	Save(ctx context.Context, r Record) error
	Get(ctx context.Context, hash string) (Record, error)
	RevokeIfActive(ctx context.Context, hash string, now time.Time) (bool, error)
	RevokeSession(ctx context.Context, sessionID string, now time.Time) error
	// SessionActive reports whether sessionID still holds an unrevoked, unexpired token.
	SessionActive(ctx context.Context, sessionID string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// HashToken returns the storage key for a refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
