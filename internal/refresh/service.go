package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sessionguard/internal/auth"

	"github.com/google/uuid"
)

// IdentityResolver returns the current identity of a user at rotation time.
type IdentityResolver interface {
	Lookup(ctx context.Context, userID string) (auth.Identity, error)
}

// Service issues, rotates and revokes refresh tokens.
//
// Rotation invariant: a refresh token is accepted at most once. Presenting an
// already-rotated token while its session is live revokes every token of that
// session; tokens of an ended session are merely invalid.
type Service struct {
	repo   Repository
	tokens *auth.Manager
	users  IdentityResolver
	clock  func() time.Time
	log    *slog.Logger
}

func NewService(repo Repository, tokens *auth.Manager, users IdentityResolver, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, users: users, clock: time.Now, log: log}
}

// Issue starts a new session for id and returns its first token pair.
func (s *Service) Issue(ctx context.Context, id auth.Identity) (auth.TokenPair, auth.Identity, error) {
	id.SessionID = uuid.NewString()
	pair, err := s.mint(ctx, id)
	if err != nil {
		return auth.TokenPair{}, auth.Identity{}, err
	}
	return pair, id, nil
}

// Rotate exchanges a refresh token for a new pair in the same session.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (auth.TokenPair, auth.Identity, error) {
	now := s.clock()

	claims, err := s.tokens.Verify(refreshToken, auth.TokenTypeRefresh, now)
	if err != nil {
		return auth.TokenPair{}, auth.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	hash := HashToken(refreshToken)
	rec, err := s.repo.Get(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.TokenPair{}, auth.Identity{}, ErrInvalidToken
		}
		return auth.TokenPair{}, auth.Identity{}, err
	}
	if rec.SessionID != claims.SessionID || rec.UserID != claims.UserID {
		return auth.TokenPair{}, auth.Identity{}, ErrInvalidToken
	}

	ok, err := s.repo.RevokeIfActive(ctx, hash, now)
	if err != nil {
		return auth.TokenPair{}, auth.Identity{}, err
	}
	if !ok {
		// A revoked token in a session that is still live was rotated away, so
		// someone is replaying it. A session already ended by logout is just stale.
		live, err := s.repo.SessionActive(ctx, rec.SessionID, now)
		if err != nil {
			return auth.TokenPair{}, auth.Identity{}, err
		}
		if !live {
			return auth.TokenPair{}, auth.Identity{}, ErrInvalidToken
		}
		if err := s.repo.RevokeSession(ctx, rec.SessionID, now); err != nil {
			s.log.ErrorContext(ctx, "revoke reused session failed", "err", err, "session_id", rec.SessionID)
		}
		s.log.WarnContext(ctx, "refresh token reuse detected", "user_id", rec.UserID, "session_id", rec.SessionID)
		return auth.TokenPair{}, auth.Identity{UserID: rec.UserID, SessionID: rec.SessionID}, ErrTokenReused
	}

	id, err := s.users.Lookup(ctx, claims.UserID)
	if err != nil {
		_ = s.repo.RevokeSession(ctx, rec.SessionID, now)
		return auth.TokenPair{}, auth.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id.SessionID = rec.SessionID

	pair, err := s.mint(ctx, id)
	if err != nil {
		return auth.TokenPair{}, auth.Identity{}, err
	}
	return pair, id, nil
}

// Revoke ends the session of refreshToken. Unknown or already revoked tokens are not an error.
func (s *Service) Revoke(ctx context.Context, refreshToken string) (auth.Identity, error) {
	if refreshToken == "" {
		return auth.Identity{}, nil
	}
	rec, err := s.repo.Get(ctx, HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.Identity{}, nil
		}
		return auth.Identity{}, err
	}
	if err := s.repo.RevokeSession(ctx, rec.SessionID, s.clock()); err != nil {
		return auth.Identity{}, err
	}
	return auth.Identity{UserID: rec.UserID, SessionID: rec.SessionID}, nil
}

// EndSession revokes every refresh token of sessionID, e.g. when the user signs out
// with only an access token at hand.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidToken
	}
	return s.repo.RevokeSession(ctx, sessionID, s.clock())
}

// PurgeExpired deletes records past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock())
}

// RunJanitor calls PurgeExpired every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				s.log.ErrorContext(ctx, "refresh purge failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.InfoContext(ctx, "refresh purge", "deleted", n)
			}
		}
	}
}

func (s *Service) mint(ctx context.Context, id auth.Identity) (auth.TokenPair, error) {
	now := s.clock()
	pair, err := s.tokens.IssuePair(now, id)
	if err != nil {
		return auth.TokenPair{}, err
	}
	rec := Record{
		Hash:      HashToken(pair.RefreshToken),
		UserID:    id.UserID,
		SessionID: id.SessionID,
		CreatedAt: now.UTC(),
		ExpiresAt: pair.RefreshExpiresAt.UTC(),
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		return auth.TokenPair{}, fmt.Errorf("save refresh record: %w", err)
	}
	return pair, nil
}
