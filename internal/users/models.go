package users

import (
	"context"
	"errors"
	"time"
)

type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	Disabled     bool      `json:"disabled" db:"disabled"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

var (
	ErrNotFound           = errors.New("users: not found")
	ErrEmailTaken         = errors.New("users: email already registered")
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	ErrDisabled           = errors.New("users: account disabled")
	ErrInvalidArgument    = errors.New("users: invalid argument")
)

// Repository persists users. Emails are stored lower-cased and unique.
type Repository interface {
	Create(ctx context.Context, u User) error
	ByEmail(ctx context.Context, email string) (User, error)
	ByID(ctx context.Context, id string) (User, error)
}
