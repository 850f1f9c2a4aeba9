package cache

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint for SCAN; key enumeration walks the keyspace
// incrementally instead of blocking the server with KEYS.
const scanBatch = 100

// Commands is the part of the redis client API the cache uses;
// redis.UniversalClient satisfies it.
type Commands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// Cache is a namespaced key/value layer over the shared Redis client.
type Cache struct {
	Redis     Commands
	Namespace string
}

func NewCache(namespace string, redisCl Commands) *Cache {
	return &Cache{
		Namespace: namespace,
		Redis:     redisCl,
	}
}

// Get value from Redis
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	cmd := c.Redis.Get(ctx, c.Namespace+":"+key)
	return cmd.Val(), cmd.Err()
}

// Store data to Redis
func (c *Cache) Store(ctx context.Context, key string, ttl time.Duration, value any) error {
	return c.Redis.Set(ctx, c.Namespace+":"+key, value, ttl).Err()
}

// Keys lists all keys in the namespace, trimmed of the prefix.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	var out []string
	err := c.scan(ctx, func(keys []string) error {
		for _, k := range keys {
			out = append(out, strings.TrimPrefix(k, c.Namespace+":"))
		}
		return nil
	})
	return out, err
}

// Delete key from Redis
func (c *Cache) Remove(ctx context.Context, key string) error {
	return c.Redis.Del(ctx, c.Namespace+":"+key).Err()
}

func (c *Cache) Flush(ctx context.Context) error {
	return c.scan(ctx, func(keys []string) error {
		return c.Redis.Del(ctx, keys...).Err()
	})
}

// scan walks the namespace with SCAN, calling fn per non-empty batch.
func (c *Cache) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := c.Redis.Scan(ctx, cursor, c.Namespace+":*", scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
