// Package cache provides a Redis-backed cache for computed dashboard
// snapshots.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docket/api/internal/logger"
	"docket/api/internal/metrics"
)

// Cache stores JSON-encoded snapshots under a shared key prefix with one
// TTL. A nil *Cache is valid and behaves as a permanent miss, so callers
// can run with caching disabled.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects to Redis and verifies the connection before returning.
func New(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		prefix: "docket:",
		ttl:    ttl,
	}
}

func (c *Cache) key(name string) string {
	return c.prefix + name
}

// Set stores a snapshot under name for the cache TTL.
func (c *Cache) Set(ctx context.Context, name string, value any) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key(name), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	logger.Debug("snapshot cached", zap.String("name", name), zap.Duration("ttl", c.ttl))
	return nil
}

// Get loads a snapshot into value. The boolean reports whether the entry
// existed; an expired or missing entry is a miss, not an error.
func (c *Cache) Get(ctx context.Context, name string, value any) (bool, error) {
	if c == nil {
		return false, nil
	}
	data, err := c.client.Get(ctx, c.key(name)).Bytes()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues(name).Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get snapshot: %w", err)
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	metrics.CacheHits.WithLabelValues(name).Inc()
	logger.Debug("snapshot cache hit", zap.String("name", name))
	return true, nil
}

// Invalidate drops every snapshot so the next read recomputes. Callers run
// it after any document write.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("iterate cache keys: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
