package users

import (
	"context"
	"errors"
	"testing"

	"sessionguard/internal/rbac"

	"golang.org/x/crypto/bcrypt"
)

func newTestService() (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	return NewServiceWithCost(repo, bcrypt.MinCost), repo
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "  Alice@Example.com ", "correct-horse", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "alice@example.com" || u.Role != rbac.RoleMember {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.PasswordHash == "correct-horse" {
		t.Fatalf("password stored in clear")
	}

	got, err := svc.Authenticate(ctx, "ALICE@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("expected same user")
	}

	if _, err := svc.Authenticate(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@example.com", "long-enough", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "A@example.com", "long-enough", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := svc.Register(ctx, "not-an-email", "long-enough", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid email, got %v", err)
	}
	if _, err := svc.Register(ctx, "b@example.com", "short", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected short password error, got %v", err)
	}
	if _, err := svc.Register(ctx, "c@example.com", "long-enough", "root"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected unknown role error, got %v", err)
	}
}

func TestDisabledUsers(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "d@example.com", "long-enough", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	repo.SetDisabled(u.ID, true)

	if _, err := svc.Authenticate(ctx, "d@example.com", "long-enough"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if _, err := svc.Lookup(ctx, u.ID); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled from lookup, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "e@example.com", "long-enough", rbac.RoleAdmin)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	id, err := svc.Lookup(ctx, u.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if id.UserID != u.ID || id.Email != "e@example.com" || id.Role != rbac.RoleAdmin {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if _, err := svc.Lookup(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "root@example.com", "bootstrap-pass")
	if err != nil || !created {
		t.Fatalf("expected admin created, got %v %v", created, err)
	}
	created, err = svc.EnsureAdmin(ctx, "root@example.com", "bootstrap-pass")
	if err != nil || created {
		t.Fatalf("expected no-op on second call, got %v %v", created, err)
	}
}
