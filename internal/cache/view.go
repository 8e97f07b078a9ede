package cache

import (
	"context"
	"time"
)

// ViewCache stores encoded dashboard payloads behind a per-key lock
type ViewCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
	Wait(ctx context.Context, key string) ([]byte, error)
}

// RedisViewCache is the ViewCache backed by the global Redis client
type RedisViewCache struct {
	TTL      time.Duration
	MutexTTL time.Duration
	MaxWait  time.Duration
}

// NewRedisViewCache reads the TTLs from the Redis configuration
func NewRedisViewCache(ttl time.Duration) *RedisViewCache {
	config := LoadConfigFromEnv()
	if ttl <= 0 {
		ttl = config.TTL
	}
	return &RedisViewCache{TTL: ttl, MutexTTL: config.MutexTTL, MaxWait: 3 * time.Second}
}

func (c *RedisViewCache) Get(ctx context.Context, key string) ([]byte, error) {
	return GetView(ctx, key)
}

func (c *RedisViewCache) Set(ctx context.Context, key string, data []byte) error {
	return SetView(ctx, key, data, c.TTL)
}

func (c *RedisViewCache) Acquire(ctx context.Context, key string) (bool, error) {
	return AcquireLock(ctx, key, c.MutexTTL)
}

func (c *RedisViewCache) Release(ctx context.Context, key string) error {
	return ReleaseLock(ctx, key)
}

func (c *RedisViewCache) Wait(ctx context.Context, key string) ([]byte, error) {
	return WaitForLock(ctx, key, c.MaxWait)
}
