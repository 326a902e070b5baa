package refresh

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresRepo stores refresh records in refresh_tokens (see migrations/001_init.sql).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Save(ctx context.Context, rec Record) error {
	const op = "refresh.PostgresRepo.Save"
	const q = `
INSERT INTO refresh_tokens (hash, user_id, session_id, created_at, expires_at, revoked_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	if _, err := r.db.ExecContext(ctx, q,
		rec.Hash,
		rec.UserID,
		rec.SessionID,
		rec.CreatedAt,
		rec.ExpiresAt,
		rec.RevokedAt,
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, hash string) (Record, error) {
	const op = "refresh.PostgresRepo.Get"
	const q = `
SELECT hash, user_id, session_id, created_at, expires_at, revoked_at
FROM refresh_tokens
WHERE hash = $1
`
	var (
		rec     Record
		revoked sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, q, hash).Scan(
		&rec.Hash,
		&rec.UserID,
		&rec.SessionID,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&revoked,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%s: %w", op, err)
	}
	if revoked.Valid {
		t := revoked.Time
		rec.RevokedAt = &t
	}
	return rec, nil
}

// RevokeIfActive relies on the row-level lock taken by UPDATE: a concurrent
// second UPDATE re-checks revoked_at after the first commits and matches nothing.
func (r *PostgresRepo) RevokeIfActive(ctx context.Context, hash string, now time.Time) (bool, error) {
	const op = "refresh.PostgresRepo.RevokeIfActive"
	const q = `
UPDATE refresh_tokens
SET revoked_at = $2
WHERE hash = $1 AND revoked_at IS NULL
`
	res, err := r.db.ExecContext(ctx, q, hash, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if n == 1 {
		return true, nil
	}
	if _, err := r.Get(ctx, hash); err != nil {
		return false, err
	}
	return false, nil
}

func (r *PostgresRepo) RevokeSession(ctx context.Context, sessionID string, now time.Time) error {
	const op = "refresh.PostgresRepo.RevokeSession"
	const q = `
UPDATE refresh_tokens
SET revoked_at = $2
WHERE session_id = $1 AND revoked_at IS NULL
`
	if _, err := r.db.ExecContext(ctx, q, sessionID, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *PostgresRepo) SessionActive(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	const op = "refresh.PostgresRepo.SessionActive"
	const q = `
SELECT EXISTS (
	SELECT 1 FROM refresh_tokens
	WHERE session_id = $1 AND revoked_at IS NULL AND expires_at > $2
)
`
	var active bool
	if err := r.db.QueryRowContext(ctx, q, sessionID, now).Scan(&active); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return active, nil
}

func (r *PostgresRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "refresh.PostgresRepo.DeleteExpired"
	const q = `DELETE FROM refresh_tokens WHERE expires_at <= $1`
	res, err := r.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res.RowsAffected()
}
