package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/epion-news/epion/internal/circuitbreaker"
	"github.com/epion-news/epion/internal/sources"
)

// KindArticle keys article source lists in the cache.
const KindArticle = "article"

// SourceCache keeps source lists in Redis. Every error is treated as a miss
// so callers fall back to the database.
type SourceCache struct {
	client  *redis.Client
	breaker *circuitbreaker.Breaker
	ttl     time.Duration
	logger  *zap.Logger
}

// NewSourceCache creates a cache; a zero ttl defaults to ten minutes.
func NewSourceCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SourceCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SourceCache{
		client:  client,
		breaker: circuitbreaker.New("redis", circuitbreaker.RedisConfig(), logger),
		ttl:     ttl,
		logger:  logger,
	}
}

func cacheKey(kind, id string) string {
	return fmt.Sprintf("epion:sources:%s:%s", kind, id)
}

// Get returns the cached list and whether it was found.
func (c *SourceCache) Get(ctx context.Context, kind, id string) ([]sources.Source, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	var data []byte
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.client.Get(ctx, cacheKey(kind, id)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("Source cache read failed", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	var list []sources.Source
	if err := json.Unmarshal(data, &list); err != nil {
		c.logger.Warn("Discarding corrupt source cache entry", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
		return nil, false
	}
	return list, true
}

// Set stores list under kind/id with the cache TTL.
func (c *SourceCache) Set(ctx context.Context, kind, id string, list []sources.Source) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}
	return c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.client.Set(ctx, cacheKey(kind, id), data, c.ttl).Err()
	})
}

// Invalidate drops a cached list.
func (c *SourceCache) Invalidate(ctx context.Context, kind, id string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.client.Del(ctx, cacheKey(kind, id)).Err()
	})
}
