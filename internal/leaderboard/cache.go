package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache memoizes computed leaderboards until the next invalidation.
//
// Get reports the cache version it observed, hit or miss. A board computed
// after a miss is stored with Set under that version, and the write never
// becomes visible if Invalidate ran in between.
type Cache interface {
	Get(ctx context.Context, key string) (entries []Entry, version int64, ok bool, err error)
	Set(ctx context.Context, key string, version int64, entries []Entry) error
	Invalidate(ctx context.Context) error
}

type memoryItem struct {
	entries []Entry
	version int64
	expires time.Time
}

// MemoryCache is an in-process Cache. Invalidate bumps a version so stale
// items are ignored without walking the map.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	version int64
	items   map[string]memoryItem
	now     func() time.Time
}

// NewMemoryCache creates a MemoryCache whose items live for at most ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:   ttl,
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]Entry, int64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || item.version != c.version || c.now().After(item.expires) {
		return nil, c.version, false, nil
	}
	return item.entries, c.version, true, nil
}

// Set drops the write when the cache was invalidated after version was read.
func (c *MemoryCache) Set(_ context.Context, key string, version int64, entries []Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if version != c.version {
		return nil
	}
	c.items[key] = memoryItem{
		entries: entries,
		version: c.version,
		expires: c.now().Add(c.ttl),
	}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.version++
	c.items = make(map[string]memoryItem)
	return nil
}

// RedisCache shares memoized leaderboards between server instances.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps client. Keys are namespaced under prefix.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) versionKey() string {
	return c.prefix + ":version"
}

func (c *RedisCache) version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (c *RedisCache) itemKey(version int64, key string) string {
	return fmt.Sprintf("%s:v%d:%s", c.prefix, version, key)
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]Entry, int64, bool, error) {
	version, err := c.version(ctx)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to read leaderboard version: %w", err)
	}
	raw, err := c.client.Get(ctx, c.itemKey(version, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, version, false, fmt.Errorf("failed to read cached leaderboard: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, version, false, fmt.Errorf("failed to decode cached leaderboard: %w", err)
	}
	return entries, version, true, nil
}

// Set stores entries under the version the caller observed. Once Invalidate
// has moved the version key, no reader looks at that slot again.
func (c *RedisCache) Set(ctx context.Context, key string, version int64, entries []Entry) error {
	current, err := c.version(ctx)
	if err != nil {
		return fmt.Errorf("failed to read leaderboard version: %w", err)
	}
	if current != version {
		return nil
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.itemKey(version, key), raw, c.ttl).Err()
}

// Invalidate moves every reader to a fresh version; old keys expire by TTL.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, c.versionKey()).Err()
}
