package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PostgresRepo reads and writes the users table (see migrations/001_init.sql).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, u User) error {
	const op = "users.PostgresRepo.Create"
	const q = `
INSERT INTO users (id, email, password_hash, role, disabled, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	_, err := r.db.ExecContext(ctx, q, u.ID, u.Email, u.PasswordHash, u.Role, u.Disabled, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *PostgresRepo) ByEmail(ctx context.Context, email string) (User, error) {
	const q = `
SELECT id, email, password_hash, role, disabled, created_at
FROM users
WHERE lower(email) = lower($1)
`
	return r.scanOne(ctx, "users.PostgresRepo.ByEmail", q, email)
}

func (r *PostgresRepo) ByID(ctx context.Context, id string) (User, error) {
	const q = `
SELECT id, email, password_hash, role, disabled, created_at
FROM users
WHERE id = $1
`
	return r.scanOne(ctx, "users.PostgresRepo.ByID", q, id)
}

func (r *PostgresRepo) scanOne(ctx context.Context, op, q string, arg any) (User, error) {
	var u User
	if err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Disabled,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}
