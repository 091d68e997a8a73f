package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

// Cache stores license verdicts per community.
type Cache interface {
	Get(ctx context.Context, communityID string) (*models.LicenseVerdict, bool, error)
	Set(ctx context.Context, verdict *models.LicenseVerdict, ttl time.Duration) error
	Delete(ctx context.Context, communityID string) error
}

// CacheKey returns the shared cache key of a community.
func CacheKey(communityID string) string {
	return "waddlebot:license:" + communityID
}

// RedisCache shares verdicts between instances through redis.
type RedisCache struct {
	client redis.Cmdable
}

// NewRedisCache creates a redis-backed verdict cache.
func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, communityID string) (*models.LicenseVerdict, bool, error) {
	raw, err := c.client.Get(ctx, CacheKey(communityID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("%w: redis get: %w", ErrCacheUnavailable, err)
	}

	var verdict models.LicenseVerdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached verdict for %s: %w", communityID, err)
	}

	return &verdict, true, nil
}

func (c *RedisCache) Set(ctx context.Context, verdict *models.LicenseVerdict, ttl time.Duration) error {
	data, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}

	if err := c.client.Set(ctx, CacheKey(verdict.CommunityID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %w", ErrCacheUnavailable, err)
	}

	return nil
}

func (c *RedisCache) Delete(ctx context.Context, communityID string) error {
	if err := c.client.Del(ctx, CacheKey(communityID)).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %w", ErrCacheUnavailable, err)
	}

	return nil
}

// MemoryCache is an in-process verdict cache. Expired entries are kept so
// Peek can still serve them as the last known verdict.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	verdict   models.LicenseVerdict
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}

	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

func (c *MemoryCache) Get(_ context.Context, communityID string) (*models.LicenseVerdict, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[communityID]
	c.mu.RUnlock()

	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false, nil
	}

	verdict := entry.verdict

	return &verdict, true, nil
}

// Peek returns the stored verdict regardless of its cache expiry.
func (c *MemoryCache) Peek(communityID string) (*models.LicenseVerdict, bool) {
	c.mu.RLock()
	entry, ok := c.entries[communityID]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	verdict := entry.verdict

	return &verdict, true
}

func (c *MemoryCache) Set(_ context.Context, verdict *models.LicenseVerdict, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[verdict.CommunityID] = memoryEntry{verdict: *verdict, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()

	return nil
}

func (c *MemoryCache) Delete(_ context.Context, communityID string) error {
	c.mu.Lock()
	delete(c.entries, communityID)
	c.mu.Unlock()

	return nil
}

// FallbackCache reads and writes a shared cache and mirrors every write into
// an in-process cache that answers whenever the shared one fails.
type FallbackCache struct {
	primary  Cache
	fallback *MemoryCache
	logger   *slog.Logger
}

// NewFallbackCache wraps primary with an in-process fallback.
func NewFallbackCache(primary Cache, fallback *MemoryCache, logger *slog.Logger) *FallbackCache {
	return &FallbackCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With("module", "license_cache"),
	}
}

func (c *FallbackCache) Get(ctx context.Context, communityID string) (*models.LicenseVerdict, bool, error) {
	verdict, ok, err := c.primary.Get(ctx, communityID)
	if err == nil {
		return verdict, ok, nil
	}

	c.logger.WarnContext(ctx, "shared cache read failed, using in-process cache",
		"community_id", communityID, "error", err)

	return c.fallback.Get(ctx, communityID)
}

func (c *FallbackCache) Set(ctx context.Context, verdict *models.LicenseVerdict, ttl time.Duration) error {
	_ = c.fallback.Set(ctx, verdict, ttl)

	if err := c.primary.Set(ctx, verdict, ttl); err != nil {
		c.logger.WarnContext(ctx, "shared cache write failed, kept in-process copy",
			"community_id", verdict.CommunityID, "error", err)
	}

	return nil
}

func (c *FallbackCache) Delete(ctx context.Context, communityID string) error {
	_ = c.fallback.Delete(ctx, communityID)

	if err := c.primary.Delete(ctx, communityID); err != nil {
		c.logger.WarnContext(ctx, "shared cache delete failed",
			"community_id", communityID, "error", err)
	}

	return nil
}
