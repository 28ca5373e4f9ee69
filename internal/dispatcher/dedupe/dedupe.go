// Package dedupe tracks in-flight PendingAction dispatches so a
// restarted or horizontally-scaled Dispatcher never double-executes an
// action whose Reply it has already seen, grounded on the SET-NX-with-TTL
// idiom the pack's leader-election backends use against Redis.
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache records a reply id as in-flight and reports whether this call was
// the first to do so (mirroring redis.Client.SetNX's true-if-acquired
// semantics).
type Cache interface {
	MarkInFlight(ctx context.Context, replyID string, ttl time.Duration) (bool, error)
	Clear(ctx context.Context, replyID string) error
}

// RedisCache backs the dedupe set with a Redis instance shared across
// Dispatcher replicas.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache wraps an already-configured redis.Client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, keyPrefix: "thingd:dispatch:"}
}

func (c *RedisCache) MarkInFlight(ctx context.Context, replyID string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.keyPrefix+replyID, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe: redis setnx: %w", err)
	}
	return ok, nil
}

func (c *RedisCache) Clear(ctx context.Context, replyID string) error {
	if err := c.client.Del(ctx, c.keyPrefix+replyID).Err(); err != nil {
		return fmt.Errorf("dedupe: redis del: %w", err)
	}
	return nil
}

// InMemoryCache is the local-mode substitute for RedisCache, used when
// config.LocalMode disables the Redis dependency (single daemon
// instance, no cross-replica coordination needed).
type InMemoryCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewInMemoryCache constructs an empty in-process dedupe cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{entries: make(map[string]time.Time)}
}

func (c *InMemoryCache) MarkInFlight(ctx context.Context, replyID string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	if expiry, ok := c.entries[replyID]; ok && now.Before(expiry) {
		return false, nil
	}
	c.entries[replyID] = now.Add(ttl)
	return true, nil
}

func (c *InMemoryCache) Clear(ctx context.Context, replyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, replyID)
	return nil
}

var _ Cache = (*RedisCache)(nil)
var _ Cache = (*InMemoryCache)(nil)
