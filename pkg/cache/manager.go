package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// StaleRetention is how long an entry outlives its freshness in Redis so
// that it can still be revalidated.
const StaleRetention = 1 * time.Hour

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager handles caching operations with Redis backend.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// Get retrieves a cache entry by key. Stale entries are returned too; use
// CacheEntry.IsExpired to tell them apart. Returns ErrCacheMiss if the key
// doesn't exist.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		_ = m.Delete(ctx, key)
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		CacheHits.WithLabelValues("stale").Inc()
	} else {
		CacheHits.WithLabelValues("fresh").Inc()
	}

	return &entry, nil
}

// Set stores a cache entry. Redis drops it StaleRetention after it stops
// being fresh. Entries without a validator are not kept past freshness, and
// entries that are already stale and carry no validator are not stored.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ShouldMakeConditionalRequest(entry) {
		ttl += StaleRetention
	}
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// Refresh renews an entry after a 304 Not Modified response, taking the new
// freshness and validators from the 304 headers.
func (m *Manager) Refresh(ctx context.Context, key CacheKey, entry *CacheEntry, headers http.Header) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	NotModifiedResponses.Inc()

	entry.Expires = ParseFreshness(headers, time.Now())
	if etag := headers.Get("ETag"); etag != "" {
		entry.ETag = etag
	}
	entry.CachedAt = time.Now()

	return m.Set(ctx, key, entry)
}
