package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache hashes. Every entry of a hash is dropped together on invalidation.
const (
	transactionsCacheKey = "transactions"
	analyticsCacheKey    = "analytics"

	transactionsCacheTTL = 60 * time.Second
	analyticsCacheTTL    = 5 * time.Minute
)

// responseCache is an optional read-through cache. A nil *responseCache is
// valid and caches nothing.
type responseCache struct {
	client *redis.Client
	log    zerolog.Logger
}

// newResponseCache connects to Redis at redisURL, which may be a redis:// URL
// or a bare host:port.
func newResponseCache(ctx context.Context, redisURL string, log zerolog.Logger) (*responseCache, error) {
	if !strings.Contains(redisURL, "://") {
		redisURL = fmt.Sprintf("redis://%s", redisURL)
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		// Fallback to simple connection
		opt = &redis.Options{Addr: strings.TrimPrefix(redisURL, "redis://")}
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &responseCache{
		client: client,
		log:    log.With().Str("component", "cache").Logger(),
	}, nil
}

// get decodes the cached entry into dst and reports whether it was found.
func (c *responseCache) get(ctx context.Context, key, field string, dst any) bool {
	if c == nil {
		return false
	}
	cached, err := c.client.HGet(ctx, key, field).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(cached), dst); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return false
	}
	return true
}

func (c *responseCache) set(ctx context.Context, key, field string, value any, ttl time.Duration) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, field, data)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

// invalidate drops every cached transaction list and analytics snapshot.
func (c *responseCache) invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, transactionsCacheKey, analyticsCacheKey).Err(); err != nil {
		c.log.Warn().Err(err).Msg("Cache invalidation failed")
	}
}

func (c *responseCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
