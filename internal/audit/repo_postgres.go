package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo writes to audit_events (see migrations/002_audit.sql).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const op = "audit.PostgresRepo.Append"
	const q = `
INSERT INTO audit_events (id, type, user_id, session_id, email, ip_address, message, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	if _, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.UserID,
		e.SessionID,
		e.Email,
		e.IPAddress,
		e.Message,
		e.CreatedAt,
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
