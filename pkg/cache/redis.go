package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisPrefix namespaces every key so the cache can share a Redis database
// with other applications.
const redisPrefix = "plantpipe:"

// RedisOptions configures the Redis cache backend.
type RedisOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// RedisCache stores cache entries in Redis, for deployments where several
// render servers share one cache.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection with a ping.
func NewRedisCache(ctx context.Context, opts RedisOptions) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return &RedisCache{client: client}, nil
}

// Get retrieves a value from the cache.
func (c *RedisCache) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return data, true, nil
}

// Set stores a value in the cache. Entries do not expire; removal is the
// janitor's job.
func (c *RedisCache) Set(ctx context.Context, key Key, data []byte) error {
	if err := c.client.Set(ctx, redisKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Delete removes a value from the cache.
func (c *RedisCache) Delete(ctx context.Context, key Key) error {
	if err := c.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Prune removes every diagram whose access stamp is older than the cutoff.
// Only stamped diagrams are considered; an entry that never received a stamp
// is not discoverable by the scan and is left alone.
func (c *RedisCache) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	stampPrefix := redisPrefix + string(NamespaceAccess) + ":"
	pruned := 0

	iter := c.client.Scan(ctx, 0, stampPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		stampKey := iter.Val()
		stamp, err := c.client.Get(ctx, stampKey).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return pruned, fmt.Errorf("read access stamp: %w", err)
		}
		if last, err := ParseAccessTime(stamp); err == nil && !last.Before(olderThan) {
			continue
		}

		id := strings.TrimPrefix(stampKey, stampPrefix)
		keys := make([]string, 0, len(allNamespaces))
		for _, ns := range allNamespaces {
			keys = append(keys, redisKey(Key{Namespace: ns, ID: id}))
		}
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return pruned, fmt.Errorf("delete stale entries: %w", err)
		}
		pruned++
	}
	if err := iter.Err(); err != nil {
		return pruned, fmt.Errorf("scan access stamps: %w", err)
	}
	return pruned, nil
}

// Wipe removes every entry under the cache's key prefix.
func (c *RedisCache) Wipe(ctx context.Context) (int, error) {
	removed := 0
	iter := c.client.Scan(ctx, 0, redisPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("delete cache entry: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan cache entries: %w", err)
	}
	return removed, nil
}

// redisKey renders a tagged key as "plantpipe:<namespace>:<id>".
func redisKey(key Key) string {
	return redisPrefix + string(key.Namespace) + ":" + key.ID
}

// Ensure RedisCache implements Cache and Janitor.
var (
	_ Cache   = (*RedisCache)(nil)
	_ Janitor = (*RedisCache)(nil)
)
