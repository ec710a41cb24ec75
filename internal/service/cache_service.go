package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"classpoll/pkg/redis"
)

// SnapshotCache caches the JSON snapshots served by the read-only REST
// mirrors with a cache-aside pattern. Redis is optional: with no client
// configured, or on any cache error, callers fall through to a live
// coordinator snapshot.
type SnapshotCache struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewSnapshotCache creates a new snapshot cache
func NewSnapshotCache(redisClient *redis.Client, logger *zap.Logger) *SnapshotCache {
	return &SnapshotCache{
		redis:  redisClient,
		logger: logger,
	}
}

// GetCurrentPoll returns the cached current-poll snapshot, falling back
// to the given snapshot function
func (c *SnapshotCache) GetCurrentPoll(ctx context.Context, fallback func() (interface{}, error)) ([]byte, error) {
	if c.redis == nil {
		return c.marshalFallback(fallback)
	}
	return c.getWithCache(ctx, c.redis.KeyBuilder.KeyCurrentPoll(), redis.TTLCurrentPoll, fallback)
}

// GetParticipants returns the cached roster snapshot, falling back to
// the given snapshot function
func (c *SnapshotCache) GetParticipants(ctx context.Context, fallback func() (interface{}, error)) ([]byte, error) {
	if c.redis == nil {
		return c.marshalFallback(fallback)
	}
	return c.getWithCache(ctx, c.redis.KeyBuilder.KeyParticipants(), redis.TTLParticipants, fallback)
}

// GetHistory returns the cached archive snapshot, falling back to the
// given snapshot function
func (c *SnapshotCache) GetHistory(ctx context.Context, fallback func() (interface{}, error)) ([]byte, error) {
	if c.redis == nil {
		return c.marshalFallback(fallback)
	}
	return c.getWithCache(ctx, c.redis.KeyBuilder.KeyHistory(), redis.TTLHistory, fallback)
}

// InvalidatePollCaches drops every cached poll snapshot. Called when a
// poll closes so the mirrors pick up the new archive immediately.
// Fire-and-forget: mirror staleness is never worth blocking the caller.
func (c *SnapshotCache) InvalidatePollCaches() {
	if c.redis == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := c.redis.InvalidatePattern(ctx, c.redis.KeyBuilder.PollPattern()); err != nil {
			c.logger.Error("failed to invalidate poll caches", zap.Error(err))
			return
		}
		c.logger.Debug("poll caches invalidated")
	}()
}

// Health checks the underlying cache connection
func (c *SnapshotCache) Health(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Health(ctx)
}

// getWithCache implements cache-aside over marshaled JSON snapshots
func (c *SnapshotCache) getWithCache(ctx context.Context, key string, ttl time.Duration, fallback func() (interface{}, error)) ([]byte, error) {
	cached, err := c.redis.Get(ctx, key)
	if err == nil && cached != "" {
		c.logger.Debug("snapshot cache hit", zap.String("key", key))
		return []byte(cached), nil
	}
	if err != nil && err != goredis.Nil {
		c.logger.Warn("snapshot cache error, falling back to live snapshot",
			zap.String("key", key),
			zap.Error(err))
	}

	c.logger.Debug("snapshot cache miss", zap.String("key", key))
	data, err := c.marshalFallback(fallback)
	if err != nil {
		return nil, err
	}

	// Cache the result asynchronously (fire and forget)
	go c.cacheAsync(key, data, ttl)

	return data, nil
}

func (c *SnapshotCache) marshalFallback(fallback func() (interface{}, error)) ([]byte, error) {
	snapshot, err := fallback()
	if err != nil {
		return nil, fmt.Errorf("snapshot fallback failed: %w", err)
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

func (c *SnapshotCache) cacheAsync(key string, data []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.redis.Set(ctx, key, string(data), ttl); err != nil {
		c.logger.Error("failed to cache snapshot",
			zap.String("key", key),
			zap.Error(err))
	}
}
