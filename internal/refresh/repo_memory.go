package refresh

import (
	"context"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: make(map[string]Record)}
}

func (r *MemoryRepo) Save(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Hash] = rec
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, hash string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[hash]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) RevokeIfActive(_ context.Context, hash string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[hash]
	if !ok {
		return false, ErrNotFound
	}
	if rec.RevokedAt != nil {
		return false, nil
	}
	t := now
	rec.RevokedAt = &t
	r.records[hash] = rec
	return true, nil
}

func (r *MemoryRepo) RevokeSession(_ context.Context, sessionID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h, rec := range r.records {
		if rec.SessionID == sessionID && rec.RevokedAt == nil {
			t := now
			rec.RevokedAt = &t
			r.records[h] = rec
		}
	}
	return nil
}

func (r *MemoryRepo) SessionActive(_ context.Context, sessionID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.SessionID == sessionID && rec.Active(now) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for h, rec := range r.records {
		if !now.Before(rec.ExpiresAt) {
			delete(r.records, h)
			n++
		}
	}
	return n, nil
}
