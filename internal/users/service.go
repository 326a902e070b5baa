package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"sessionguard/internal/auth"
	"sessionguard/internal/rbac"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

// Service owns credentials. Password hashes never leave this package.
type Service struct {
	repo Repository
	// clock is injectable for deterministic tests.
	clock func() time.Time
	cost  int
	// dummyHash keeps the unknown-email path as slow as a real compare.
	dummyHash []byte
}

func NewService(repo Repository) *Service {
	return newService(repo, bcrypt.DefaultCost)
}

func newService(repo Repository, cost int) *Service {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("sessionguard-dummy-password"), cost)
	return &Service{repo: repo, clock: time.Now, cost: cost, dummyHash: dummy}
}

// NewServiceWithCost is NewService with an explicit bcrypt cost; tests use bcrypt.MinCost.
func NewServiceWithCost(repo Repository, cost int) *Service {
	return newService(repo, cost)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, email, password, role string) (User, error) {
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, fmt.Errorf("%w: invalid email", ErrInvalidArgument)
	}
	if len(password) < minPasswordLen {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidArgument, minPasswordLen)
	}
	if role == "" {
		role = rbac.RoleMember
	}
	if !rbac.IsKnownRole(role) {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate returns the user for a correct email/password pair.
// Unknown email and wrong password both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.repo.ByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if u.Disabled {
		return User{}, ErrDisabled
	}
	return u, nil
}

// Lookup resolves the current identity of userID, used when rotating refresh tokens
// so role changes and disabled accounts take effect at the next refresh.
func (s *Service) Lookup(ctx context.Context, userID string) (auth.Identity, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return auth.Identity{}, ErrNotFound
	}
	u, err := s.repo.ByID(ctx, userID)
	if err != nil {
		return auth.Identity{}, err
	}
	if u.Disabled {
		return auth.Identity{}, ErrDisabled
	}
	return auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}, nil
}

// EnsureAdmin creates the bootstrap admin when the email is not registered yet.
// It reports whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	_, err := s.repo.ByEmail(ctx, NormalizeEmail(email))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if _, err := s.Register(ctx, email, password, rbac.RoleAdmin); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
