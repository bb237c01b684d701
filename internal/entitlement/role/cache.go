package role

import (
	"context"
	"errors"
	"sync"
	"time"

	"settlement-engine/internal/models"

	"github.com/redis/go-redis/v9"
)

// Cache is the session-scoped role store. Entries are replaced whole and
// dropped by Invalidate on a session refresh.
type Cache interface {
	Get(ctx context.Context, accountID string) (models.Role, bool, error)
	Set(ctx context.Context, accountID string, role models.Role) error
	Invalidate(ctx context.Context, accountID string) error
}

type memoryEntry struct {
	role    models.Role
	expires time.Time
}

// MemoryCache is a process-local Cache. A zero ttl keeps entries until invalidated.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, accountID string) (models.Role, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[accountID]
	c.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if !entry.expires.IsZero() && c.now().After(entry.expires) {
		c.mu.Lock()
		delete(c.entries, accountID)
		c.mu.Unlock()
		return "", false, nil
	}
	return entry.role, true, nil
}

func (c *MemoryCache) Set(_ context.Context, accountID string, role models.Role) error {
	entry := memoryEntry{role: role}
	if c.ttl > 0 {
		entry.expires = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.entries[accountID] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, accountID string) error {
	c.mu.Lock()
	delete(c.entries, accountID)
	c.mu.Unlock()
	return nil
}

const redisKeyPrefix = "role:"

// RedisCache shares resolved roles between worker instances.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func redisKey(accountID string) string {
	return redisKeyPrefix + accountID
}

func (c *RedisCache) Get(ctx context.Context, accountID string) (models.Role, bool, error) {
	val, err := c.client.Get(ctx, redisKey(accountID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	switch models.Role(val) {
	case models.RoleAdmin, models.RoleUser:
		return models.Role(val), true, nil
	default:
		// never trust a value this process would not have written
		return "", false, nil
	}
}

func (c *RedisCache) Set(ctx context.Context, accountID string, role models.Role) error {
	return c.client.Set(ctx, redisKey(accountID), string(role), c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, accountID string) error {
	return c.client.Del(ctx, redisKey(accountID)).Err()
}
