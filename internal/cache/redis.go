// Package cache holds the Redis helpers shared by the store cache, the sync
// lock and the notification queue.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key this service writes.
const KeyPrefix = "fiootv:"

// Redis wraps a go-redis client. All keys passed to its helpers are
// relative and get KeyPrefix prepended.
type Redis struct {
	client *redis.Client
}

// New parses a Redis URL (e.g. "redis://host:6379/0") and checks the
// connection.
func New(ctx context.Context, rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	r := &Redis{client: redis.NewClient(opts)}
	if err := r.Ping(ctx); err != nil {
		_ = r.client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return r, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(c *redis.Client) *Redis {
	return &Redis{client: c}
}

// Ping checks the connection to Redis.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close shuts down the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Key returns the absolute key for a relative one.
func Key(parts ...string) string {
	return KeyPrefix + strings.Join(parts, ":")
}

// GetJSON fetches key and decodes it. found is false on a cache miss.
func GetJSON[T any](ctx context.Context, r *Redis, key string) (v T, found bool, err error) {
	raw, err := r.client.Get(ctx, Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("cache unmarshal %s: %w", key, err)
	}
	return v, true, nil
}

// SetJSON encodes v and stores it under key with the given TTL.
func SetJSON(ctx context.Context, r *Redis, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	return r.client.Set(ctx, Key(key), data, ttl).Err()
}

// DeletePattern removes every key matching a relative glob such as
// "channels:*". It walks the keyspace with SCAN rather than KEYS.
func DeletePattern(ctx context.Context, r *Redis, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, Key(pattern), 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("cache scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("cache del pattern %s: %w", pattern, err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Counter returns the integer stored at key, or 0 when it is unset.
func Counter(ctx context.Context, r *Redis, key string) (int64, error) {
	n, err := r.client.Get(ctx, Key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache get %s: %w", key, err)
	}
	return n, nil
}

// Incr atomically increments the counter at key and returns the new value.
func Incr(ctx context.Context, r *Redis, key string) (int64, error) {
	n, err := r.client.Incr(ctx, Key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("cache incr %s: %w", key, err)
	}
	return n, nil
}
