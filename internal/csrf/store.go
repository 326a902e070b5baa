package csrf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("csrf: token not found")

// Store holds the server-side copy of each CSRF token, keyed by the csrf session id.
type Store interface {
	Get(ctx context.Context, sid string) (string, error)
	Put(ctx context.Context, sid, token string, ttl time.Duration) error
	Delete(ctx context.Context, sid string) error
}

// RedisStore keeps tokens under "csrf:<sid>" with a native TTL.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "csrf:"}
}

func (s *RedisStore) Get(ctx context.Context, sid string) (string, error) {
	v, err := s.rdb.Get(ctx, s.prefix+sid).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("csrf.RedisStore.Get: %w", err)
	}
	return v, nil
}

func (s *RedisStore) Put(ctx context.Context, sid, token string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.prefix+sid, token, ttl).Err(); err != nil {
		return fmt.Errorf("csrf.RedisStore.Put: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sid string) error {
	if err := s.rdb.Del(ctx, s.prefix+sid).Err(); err != nil {
		return fmt.Errorf("csrf.RedisStore.Delete: %w", err)
	}
	return nil
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryStore is a process-local Store for tests and single-instance dev runs.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryEntry), clock: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, sid string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[sid]
	if !ok {
		return "", ErrNotFound
	}
	if !s.clock().Before(e.expiresAt) {
		delete(s.items, sid)
		return "", ErrNotFound
	}
	return e.token, nil
}

func (s *MemoryStore) Put(_ context.Context, sid, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[sid] = memoryEntry{token: token, expiresAt: s.clock().Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sid)
	return nil
}
