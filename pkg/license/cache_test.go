package license

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

func TestMemoryCache(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryCache(clock.Now)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "community-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, &models.LicenseVerdict{
		CommunityID: "community-1",
		Tier:        models.TierPremium,
		Status:      models.LicenseStatusActive,
	}, time.Minute))

	verdict, ok, err := cache.Get(ctx, "community-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.TierPremium, verdict.Tier)

	clock.Advance(time.Minute)

	_, ok, err = cache.Get(ctx, "community-1")
	require.NoError(t, err)
	assert.False(t, ok)

	stale, ok := cache.Peek("community-1")
	require.True(t, ok)
	assert.Equal(t, models.TierPremium, stale.Tier)

	require.NoError(t, cache.Delete(ctx, "community-1"))

	_, ok = cache.Peek("community-1")
	assert.False(t, ok)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "waddlebot:license:community-1", CacheKey("community-1"))
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (*models.LicenseVerdict, bool, error) {
	return nil, false, ErrCacheUnavailable
}

func (brokenCache) Set(context.Context, *models.LicenseVerdict, time.Duration) error {
	return ErrCacheUnavailable
}

func (brokenCache) Delete(context.Context, string) error {
	return ErrCacheUnavailable
}

func TestFallbackCache_ServesInProcessCopyWhenSharedCacheFails(t *testing.T) {
	cache := NewFallbackCache(brokenCache{}, NewMemoryCache(nil), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &models.LicenseVerdict{
		CommunityID: "community-1",
		Tier:        models.TierFree,
		Status:      models.LicenseStatusActive,
	}, time.Minute))

	verdict, ok, err := cache.Get(ctx, "community-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.TierFree, verdict.Tier)

	require.NoError(t, cache.Delete(ctx, "community-1"))

	_, ok, err = cache.Get(ctx, "community-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRedisCache(client)

	_, _, err := cache.Get(context.Background(), "community-1")
	require.ErrorIs(t, err, ErrCacheUnavailable)

	err = cache.Set(context.Background(), &models.LicenseVerdict{CommunityID: "community-1"}, time.Minute)
	require.ErrorIs(t, err, ErrCacheUnavailable)
}

func TestRedisCache_Container(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRedisCache(client)
	limit := 1

	require.NoError(t, cache.Set(ctx, &models.LicenseVerdict{
		CommunityID:   "community-1",
		Tier:          models.TierFree,
		Status:        models.LicenseStatusActive,
		WorkflowLimit: &limit,
	}, time.Minute))

	ttl, err := client.TTL(ctx, CacheKey("community-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	verdict, ok, err := cache.Get(ctx, "community-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, verdict.WorkflowLimit)
	assert.Equal(t, 1, *verdict.WorkflowLimit)

	require.NoError(t, cache.Delete(ctx, "community-1"))

	_, ok, err = cache.Get(ctx, "community-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
