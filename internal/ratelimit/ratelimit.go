package ratelimit

import (
	"context"
	"sync"
	"time"

	"sessionguard/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Limiter admits or rejects one hit against key.
// retryAfter is only meaningful when allowed is false.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// Redis is a fixed-window limiter shared by all API replicas.
type Redis struct {
	rdb    redis.Scripter
	prefix string
	limit  int
	window time.Duration
}

func NewRedis(rdb redis.Scripter, prefix string, limit int, window time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

func (l *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return utils.AllowFixedWindow(ctx, l.rdb, l.prefix+key, l.limit, l.window)
}

type window struct {
	count int
	reset time.Time
}

// Memory is a process-local fixed-window limiter.
type Memory struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clock   func() time.Time
	windows map[string]window
}

func NewMemory(limit int, win time.Duration) *Memory {
	return &Memory{limit: limit, window: win, clock: time.Now, windows: make(map[string]window)}
}

func (l *Memory) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.reset) {
		w = window{reset: now.Add(l.window)}
		l.sweep(now)
	}
	w.count++
	l.windows[key] = w
	if w.count > l.limit {
		return false, w.reset.Sub(now), nil
	}
	return true, w.reset.Sub(now), nil
}

// sweep drops elapsed windows so idle keys do not accumulate. Caller holds mu.
func (l *Memory) sweep(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.reset) {
			delete(l.windows, k)
		}
	}
}
