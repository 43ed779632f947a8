package service

import (
	"context"
	"sync"
	"time"

	"github.com/AlibekovAA/fincore/internal/common/clock"
	"github.com/AlibekovAA/fincore/internal/common/constants"
	"github.com/AlibekovAA/fincore/internal/common/logger"
	"github.com/AlibekovAA/fincore/internal/observability/metrics"
)

// RefreshResult is the outcome of one refresh, kept briefly so that parallel
// requests presenting the same refresh token receive the same tokens.
// It is only served while the account still has TokenVersion and StoredHash.
type RefreshResult struct {
	AccountID    string        `json:"account_id"`
	TokenVersion int64         `json:"token_version"`
	StoredHash   string        `json:"stored_hash"`
	Tokens       SessionTokens `json:"tokens"`
}

type RefreshResultCache interface {
	Get(ctx context.Context, key string) (RefreshResult, bool, error)
	Set(ctx context.Context, key string, result RefreshResult) error
	// SetNX stores result only when no live entry exists for key and reports whether it did.
	SetNX(ctx context.Context, key string, result RefreshResult) (bool, error)
	Delete(ctx context.Context, key string) error
}

type memoryRefreshEntry struct {
	result    RefreshResult
	expiresAt time.Time
}

type MemoryRefreshCache struct {
	cache  sync.Map
	ttl    time.Duration
	clock  clock.Clock
	log    *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewMemoryRefreshCache(ctx context.Context, clock clock.Clock, log *logger.Logger) *MemoryRefreshCache {
	cacheCtx, cancel := context.WithCancel(ctx)
	cache := &MemoryRefreshCache{
		ttl:    constants.RefreshResultCacheTTL,
		clock:  clock,
		log:    log,
		ctx:    cacheCtx,
		cancel: cancel,
	}

	go cache.cleanup()

	return cache
}

func (c *MemoryRefreshCache) Get(_ context.Context, key string) (RefreshResult, bool, error) {
	if entry, ok := c.cache.Load(key); ok {
		e := entry.(*memoryRefreshEntry)
		if c.clock.Now().Before(e.expiresAt) {
			metrics.CacheOperations.WithLabelValues("memory", "get", "hit").Inc()
			return e.result, true, nil
		}
		c.cache.Delete(key)
	}
	metrics.CacheOperations.WithLabelValues("memory", "get", "miss").Inc()
	return RefreshResult{}, false, nil
}

func (c *MemoryRefreshCache) Set(_ context.Context, key string, result RefreshResult) error {
	c.cache.Store(key, &memoryRefreshEntry{
		result:    result,
		expiresAt: c.clock.Now().Add(c.ttl),
	})
	metrics.CacheOperations.WithLabelValues("memory", "set", "ok").Inc()
	return nil
}

func (c *MemoryRefreshCache) SetNX(_ context.Context, key string, result RefreshResult) (bool, error) {
	entry := &memoryRefreshEntry{
		result:    result,
		expiresAt: c.clock.Now().Add(c.ttl),
	}

	for {
		existing, loaded := c.cache.LoadOrStore(key, entry)
		if !loaded {
			metrics.CacheOperations.WithLabelValues("memory", "setnx", "ok").Inc()
			return true, nil
		}
		if c.clock.Now().Before(existing.(*memoryRefreshEntry).expiresAt) {
			metrics.CacheOperations.WithLabelValues("memory", "setnx", "exists").Inc()
			return false, nil
		}
		if c.cache.CompareAndSwap(key, existing, entry) {
			metrics.CacheOperations.WithLabelValues("memory", "setnx", "ok").Inc()
			return true, nil
		}
	}
}

func (c *MemoryRefreshCache) Delete(_ context.Context, key string) error {
	c.cache.Delete(key)
	metrics.CacheOperations.WithLabelValues("memory", "delete", "ok").Inc()
	return nil
}

func (c *MemoryRefreshCache) cleanup() {
	ticker := time.NewTicker(constants.RefreshResultCacheCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *MemoryRefreshCache) removeExpired() int {
	now := c.clock.Now()
	removed := 0
	c.cache.Range(func(key, value any) bool {
		if now.After(value.(*memoryRefreshEntry).expiresAt) {
			c.cache.Delete(key)
			removed++
		}
		return true
	})
	if removed > 0 {
		c.log.Debugf("refresh result cache cleaned up %d expired entries", removed)
	}
	return removed
}

func (c *MemoryRefreshCache) Close() {
	c.cancel()
}
