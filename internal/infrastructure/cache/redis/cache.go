// Package redis provides the Redis cache implementation.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is used when neither the caller nor the config sets a TTL.
const DefaultTTL = 5 * time.Minute

// Config holds Redis connection configuration.
type Config struct {
	Host       string
	Port       string
	Password   string
	DB         int
	DefaultTTL time.Duration
	// KeyPrefix namespaces every key, e.g. "docstore:".
	KeyPrefix string
}

// Cache implements the cache.Cache interface for Redis.
type Cache struct {
	client     *redis.Client
	defaultTTL time.Duration
	prefix     string
}

// NewCache connects to Redis and verifies the connection.
func NewCache(ctx context.Context, cfg Config) (*Cache, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("redis host is required")
	}
	port := cfg.Port
	if port == "" {
		port = "6379"
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{
		client:     client,
		defaultTTL: ttl,
		prefix:     cfg.KeyPrefix,
	}, nil
}

// Get retrieves a value from Redis by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, nil
}

// Set stores a value in Redis.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// SetNX stores a value in Redis unless the key already exists.
func (c *Cache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	ok, err := c.client.SetNX(ctx, c.prefix+key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return ok, nil
}

// Delete removes a key from Redis.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Del(ctx, c.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return n > 0, nil
}

// DeletePattern removes all keys matching pattern, scanning in batches.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	var cursor uint64
	var deleted int64

	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys with pattern %s: %w", pattern, err)
		}

		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += n
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Ping checks if the Redis connection is alive.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}
	return nil
}
