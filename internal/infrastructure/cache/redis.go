package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/ports"
)

const keyPrefix = "fakenews:"

// RedisCache stores credibility results with a TTL. Every failure is logged
// and reported as a miss so callers fall through to the store.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.CredibilityCache = (*RedisCache)(nil)

// NewRedisCache parses a redis:// URL and checks the connection.
func NewRedisCache(ctx context.Context, rawURL string, ttl time.Duration, logger *slog.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client, ttl, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Get returns a cached credibility if present.
func (c *RedisCache) Get(ctx context.Context, key string) (domain.DomainCredibility, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.DomainCredibility{}, false
	}
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return domain.DomainCredibility{}, false
	}

	var value domain.DomainCredibility
	if err := json.Unmarshal(raw, &value); err != nil {
		c.logger.Warn("cache entry unreadable", "key", key, "error", err)
		return domain.DomainCredibility{}, false
	}
	return value, true
}

// Set stores a credibility for the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value domain.DomainCredibility) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Close releases the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
