package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlibekovAA/fincore/internal/common/constants"
	"github.com/AlibekovAA/fincore/internal/observability/metrics"
)

// RedisRefreshCache shares refresh results between service instances.
type RedisRefreshCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisRefreshCache(client redis.Cmdable) *RedisRefreshCache {
	return &RedisRefreshCache{
		client: client,
		prefix: constants.RefreshResultCacheKeyPrefix,
		ttl:    constants.RefreshResultCacheTTL,
	}
}

func (c *RedisRefreshCache) Get(ctx context.Context, key string) (RefreshResult, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheOperations.WithLabelValues("redis", "get", "miss").Inc()
		return RefreshResult{}, false, nil
	}
	if err != nil {
		metrics.CacheOperations.WithLabelValues("redis", "get", "error").Inc()
		return RefreshResult{}, false, fmt.Errorf("redis get refresh result: %w", err)
	}

	var result RefreshResult
	if err := json.Unmarshal(raw, &result); err != nil {
		metrics.CacheOperations.WithLabelValues("redis", "get", "error").Inc()
		return RefreshResult{}, false, fmt.Errorf("decode refresh result: %w", err)
	}
	metrics.CacheOperations.WithLabelValues("redis", "get", "hit").Inc()
	return result, true, nil
}

func (c *RedisRefreshCache) Set(ctx context.Context, key string, result RefreshResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode refresh result: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		metrics.CacheOperations.WithLabelValues("redis", "set", "error").Inc()
		return fmt.Errorf("redis set refresh result: %w", err)
	}
	metrics.CacheOperations.WithLabelValues("redis", "set", "ok").Inc()
	return nil
}

func (c *RedisRefreshCache) SetNX(ctx context.Context, key string, result RefreshResult) (bool, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("encode refresh result: %w", err)
	}
	ok, err := c.client.SetNX(ctx, c.prefix+key, raw, c.ttl).Result()
	if err != nil {
		metrics.CacheOperations.WithLabelValues("redis", "setnx", "error").Inc()
		return false, fmt.Errorf("redis setnx refresh result: %w", err)
	}
	if !ok {
		metrics.CacheOperations.WithLabelValues("redis", "setnx", "exists").Inc()
		return false, nil
	}
	metrics.CacheOperations.WithLabelValues("redis", "setnx", "ok").Inc()
	return true, nil
}

func (c *RedisRefreshCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		metrics.CacheOperations.WithLabelValues("redis", "delete", "error").Inc()
		return fmt.Errorf("redis delete refresh result: %w", err)
	}
	metrics.CacheOperations.WithLabelValues("redis", "delete", "ok").Inc()
	return nil
}
