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

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultRevalidateWindow is how long a stale entry is kept around for
// conditional revalidation.
const DefaultRevalidateWindow = time.Hour

// Manager handles caching operations with Redis backend.
type Manager struct {
	redis            *redis.Client
	revalidateWindow time.Duration
}

// NewManager creates a new cache manager with Redis backend.
// revalidateWindow <= 0 uses DefaultRevalidateWindow.
func NewManager(redisClient *redis.Client, revalidateWindow time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if revalidateWindow <= 0 {
		revalidateWindow = DefaultRevalidateWindow
	}
	return &Manager{
		redis:            redisClient,
		revalidateWindow: revalidateWindow,
	}
}

// Get retrieves a cache entry by key.
// Stale entries are returned as well; callers check IsExpired and revalidate.
// Returns ErrCacheMiss if the key doesn't exist.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		CacheHits.WithLabelValues("stale").Inc()
	} else {
		CacheHits.WithLabelValues("fresh").Inc()
	}

	return &entry, nil
}

// Set stores a cache entry. Redis keeps it for its freshness lifetime plus
// the revalidation window, so a stale entry can still be confirmed by a 304.
// Entries that are already stale and cannot be revalidated are skipped.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 && !entry.Revalidatable() {
		return nil
	}
	ttl += m.revalidateWindow

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.Add(float64(len(data)))

	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// Refresh extends a revalidated entry after a 304 Not Modified response,
// taking the new freshness lifetime from the 304's headers.
func (m *Manager) Refresh(ctx context.Context, key Key, entry *Entry, notModified *http.Response) error {
	if entry == nil || notModified == nil {
		return fmt.Errorf("cache entry and response cannot be nil")
	}

	ConditionalRequests.Inc()

	entry.Expires = parseExpiry(notModified.Header, time.Now())
	if etag := notModified.Header.Get("ETag"); etag != "" {
		entry.ETag = etag
	}

	return m.Set(ctx, key, entry)
}
