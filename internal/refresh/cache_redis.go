package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedRepo is a read-through Redis cache in front of the durable repository.
// Writes go to the repository first; the cache is invalidated afterwards, so a
// failed cache write can only cost a cache miss, never a stale "active" record.
type CachedRepo struct {
	next   Repository
	rdb    redis.Cmdable
	maxTTL time.Duration
	clock  func() time.Time
	log    *slog.Logger
}

func NewCachedRepo(next Repository, rdb redis.Cmdable, maxTTL time.Duration, log *slog.Logger) *CachedRepo {
	if maxTTL <= 0 {
		maxTTL = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &CachedRepo{next: next, rdb: rdb, maxTTL: maxTTL, clock: time.Now, log: log}
}

func recordKey(hash string) string       { return "refresh:rec:" + hash }
func sessionKey(sessionID string) string { return "refresh:sess:" + sessionID }

func (c *CachedRepo) Save(ctx context.Context, rec Record) error {
	if err := c.next.Save(ctx, rec); err != nil {
		return err
	}
	if err := c.put(ctx, rec); err != nil {
		c.log.WarnContext(ctx, "refresh cache write failed", "err", err)
	}
	return nil
}

func (c *CachedRepo) Get(ctx context.Context, hash string) (Record, error) {
	raw, err := c.rdb.Get(ctx, recordKey(hash)).Bytes()
	switch {
	case err == nil:
		var rec Record
		if jerr := json.Unmarshal(raw, &rec); jerr == nil {
			return rec, nil
		}
	case !errors.Is(err, redis.Nil):
		c.log.WarnContext(ctx, "refresh cache read failed", "err", err)
	}

	rec, err := c.next.Get(ctx, hash)
	if err != nil {
		return Record{}, err
	}
	if err := c.put(ctx, rec); err != nil {
		c.log.WarnContext(ctx, "refresh cache fill failed", "err", err)
	}
	return rec, nil
}

func (c *CachedRepo) RevokeIfActive(ctx context.Context, hash string, now time.Time) (bool, error) {
	ok, err := c.next.RevokeIfActive(ctx, hash, now)
	if err != nil {
		return false, err
	}
	if err := c.rdb.Del(ctx, recordKey(hash)).Err(); err != nil {
		c.log.WarnContext(ctx, "refresh cache invalidate failed", "err", err)
	}
	return ok, nil
}

func (c *CachedRepo) RevokeSession(ctx context.Context, sessionID string, now time.Time) error {
	if err := c.next.RevokeSession(ctx, sessionID, now); err != nil {
		return err
	}
	hashes, err := c.rdb.SMembers(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		c.log.WarnContext(ctx, "refresh cache session lookup failed", "err", err)
		return nil
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, recordKey(h))
	}
	keys = append(keys, sessionKey(sessionID))
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.WarnContext(ctx, "refresh cache session invalidate failed", "err", err)
	}
	return nil
}

// SessionActive always asks the durable store; the cache only indexes single records.
func (c *CachedRepo) SessionActive(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	return c.next.SessionActive(ctx, sessionID, now)
}

func (c *CachedRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	// Cached entries never outlive ExpiresAt, so only the durable store needs a sweep.
	return c.next.DeleteExpired(ctx, now)
}

func (c *CachedRepo) put(ctx context.Context, rec Record) error {
	ttl := rec.ExpiresAt.Sub(c.clock())
	if ttl <= 0 {
		return nil
	}
	if ttl > c.maxTTL {
		ttl = c.maxTTL
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, recordKey(rec.Hash), b, ttl)
	pipe.SAdd(ctx, sessionKey(rec.SessionID), rec.Hash)
	pipe.Expire(ctx, sessionKey(rec.SessionID), c.maxTTL)
	_, err = pipe.Exec(ctx)
	return err
}
