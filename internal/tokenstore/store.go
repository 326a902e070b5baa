// Package tokenstore holds the client's current token pair.
//
// Every Store guarantees read-your-writes for a single caller: once SetTokens
// returns nil, AccessToken and RefreshToken observe the new pair. Across
// independent callers the last completed write wins.
package tokenstore

import (
	"context"
	"errors"
	"sync"
)

// Pair is the token pair as handed out by the login and refresh endpoints.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
}

var ErrEmptyAccessToken = errors.New("tokenstore: access token is required")

// Store abstracts the storage medium. An absent token reads as "".
type Store interface {
	// SetTokens replaces the access token. An empty RefreshToken leaves the
	// current refresh token in place, as servers that do not rotate omit it.
	SetTokens(ctx context.Context, p Pair) error
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	// Clear removes both tokens. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// MemoryStore keeps the pair in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	pair Pair
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) SetTokens(_ context.Context, p Pair) error {
	if p.AccessToken == "" {
		return ErrEmptyAccessToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.RefreshToken == "" {
		p.RefreshToken = s.pair.RefreshToken
	}
	s.pair = p
	return nil
}

func (s *MemoryStore) AccessToken(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.AccessToken, nil
}

func (s *MemoryStore) RefreshToken(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.RefreshToken, nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{}
	return nil
}
