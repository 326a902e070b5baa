package users

import (
	"context"
	"sync"
)

type MemoryRepo struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]User), byEmail: make(map[string]string)}
}

func (r *MemoryRepo) Create(_ context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *MemoryRepo) ByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepo) ByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// SetDisabled flips the disabled flag; used by tests to simulate an admin action.
func (r *MemoryRepo) SetDisabled(id string, disabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.Disabled = disabled
		r.byID[id] = u
	}
}
