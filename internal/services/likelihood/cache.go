// File: internal/services/likelihood/cache.go
package likelihood

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

// CacheEntry is a cached report and the time it was stored.
type CacheEntry struct {
	Report   *domain.LikelihoodReport `json:"report"`
	CachedAt time.Time                `json:"cached_at"`
}

// Fresh reports whether the entry was computed from a conversation last
// updated at updatedAt.
func (e *CacheEntry) Fresh(updatedAt time.Time) bool {
	return e != nil && e.Report != nil && e.Report.AnalyzedAt.Equal(updatedAt)
}

// ReportCache stores the latest report per session. Get returns nil, nil on a miss.
type ReportCache interface {
	Get(ctx context.Context, sessionID string) (*CacheEntry, error)
	Put(ctx context.Context, sessionID string, entry *CacheEntry) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryCache is a process-local ReportCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*CacheEntry)}
}

func (c *MemoryCache) Get(_ context.Context, sessionID string) (*CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[sessionID], nil
}

func (c *MemoryCache) Put(_ context.Context, sessionID string, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = entry
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
	return nil
}

// RedisCache keeps reports in Redis as JSON so several server instances
// share them.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "likelihood:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(sessionID string) string {
	return c.prefix + sessionID
}

func (c *RedisCache) Get(ctx context.Context, sessionID string) (*CacheEntry, error) {
	data, err := c.client.Get(ctx, c.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report from cache: %w", err)
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cached report: %w", err)
	}
	return &entry, nil
}

func (c *RedisCache) Put(ctx context.Context, sessionID string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := c.client.Set(ctx, c.key(sessionID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set report in cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, sessionID string) error {
	if err := c.client.Del(ctx, c.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete report from cache: %w", err)
	}
	return nil
}
