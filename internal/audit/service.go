package audit

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

// Repository is the persistence contract for audit events. It is append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records authentication events.
// Audit is internal-only; these records are never exposed through the public API.
type Service struct {
	repo  Repository
	clock func() time.Time
	log   *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, clock: time.Now, log: log}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.UserID == "" && e.Email == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		// ULIDs sort by creation time, which keeps audit scans cheap.
		id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
		if err != nil {
			return err
		}
		e.ID = id.String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// Record appends e and logs instead of returning on failure.
func (s *Service) Record(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, e); err != nil {
		s.log.WarnContext(ctx, "audit append failed", "err", err, "type", string(e.Type))
	}
}
