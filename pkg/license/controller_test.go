package license

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/penguintechinc/waddlebot-sub014/pkg/mocks"
	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// licenseServer answers /validate with the tier registered per community.
type licenseServer struct {
	*httptest.Server

	hits  atomic.Int32
	mu    sync.Mutex
	tiers map[string]string
	fail  bool
}

func newLicenseServer(t *testing.T) *licenseServer {
	t.Helper()

	ls := &licenseServer{tiers: map[string]string{}}
	ls.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ls.hits.Add(1)

		var req validateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		ls.mu.Lock()
		tier, ok := ls.tiers[req.CommunityID]
		fail := ls.fail
		ls.mu.Unlock()

		if fail {
			http.Error(w, "down", http.StatusServiceUnavailable)

			return
		}

		w.Header().Set("Content-Type", "application/json")

		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "unlicensed", "tier": "free"})

			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"status": "active", "tier": tier})
	}))
	t.Cleanup(ls.Close)

	return ls
}

func (ls *licenseServer) setTier(communityID, tier string) {
	ls.mu.Lock()
	ls.tiers[communityID] = tier
	ls.mu.Unlock()
}

func (ls *licenseServer) setFailing(fail bool) {
	ls.mu.Lock()
	ls.fail = fail
	ls.mu.Unlock()
}

func newTestController(ls *licenseServer, counter WorkflowCounter, clock *fakeClock, opts ...Option) *Controller {
	client := NewClient(ClientConfig{BaseURL: ls.URL, APIKey: "test-key", Now: clock.Now})

	return NewController(client, counter,
		append([]Option{WithLogger(discardLogger()), WithClock(clock.Now)}, opts...)...)
}

func TestController_CachesVerdict(t *testing.T) {
	ls := newLicenseServer(t)
	ls.setTier("community-1", "premium")

	clock := newFakeClock()
	controller := newTestController(ls, &mocks.MockWorkflowCounter{}, clock)
	ctx := context.Background()

	first, err := controller.CheckLicenseStatus(ctx, "community-1")
	require.NoError(t, err)
	assert.Equal(t, models.TierPremium, first.Tier)

	clock.Advance(4 * time.Minute)

	second, err := controller.CheckLicenseStatus(ctx, "community-1")
	require.NoError(t, err)
	assert.Equal(t, first.Tier, second.Tier)
	assert.Equal(t, int32(1), ls.hits.Load())

	require.NoError(t, controller.InvalidateCache(ctx, "community-1"))

	_, err = controller.CheckLicenseStatus(ctx, "community-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), ls.hits.Load())

	clock.Advance(CacheTTL)

	_, err = controller.CheckLicenseStatus(ctx, "community-1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), ls.hits.Load())
}

func TestController_ConcurrentMissesShareOneFetch(t *testing.T) {
	release := make(chan struct{})

	var hits atomic.Int32

	server := &mocks.MockLicenseServer{}
	server.On("Validate", mock.Anything, "community-1").
		Run(func(mock.Arguments) {
			hits.Add(1)
			<-release
		}).
		Return(&models.LicenseVerdict{Tier: models.TierPremium, Status: models.LicenseStatusActive}, nil)

	controller := NewController(server, &mocks.MockWorkflowCounter{}, WithLogger(discardLogger()))

	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			verdict, err := controller.CheckLicenseStatus(context.Background(), "community-1")
			assert.NoError(t, err)
			assert.Equal(t, models.TierPremium, verdict.Tier)
		}()
	}

	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
}

func TestController_ValidateWorkflowCreation(t *testing.T) {
	ls := newLicenseServer(t)
	ls.setTier("free-community", "free")
	ls.setTier("premium-community", "premium")

	counter := &mocks.MockWorkflowCounter{}
	counter.On("CountWorkflows", mock.Anything, "free-community").Return(1, nil)
	counter.On("CountWorkflows", mock.Anything, "empty-community").Return(0, nil)

	controller := newTestController(ls, counter, newFakeClock())
	ctx := context.Background()

	err := controller.ValidateWorkflowCreation(ctx, "free-community", "wf-2")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLicenseDenied)

	var deniedErr *DeniedError
	require.True(t, errors.As(err, &deniedErr))
	assert.Equal(t, "free-community", deniedErr.CommunityID)

	assert.NoError(t, controller.ValidateWorkflowCreation(ctx, "premium-community", "wf-2"))
	counter.AssertNotCalled(t, "CountWorkflows", mock.Anything, "premium-community")

	ls.setTier("empty-community", "free")
	assert.NoError(t, controller.ValidateWorkflowCreation(ctx, "empty-community", "wf-1"))

	err = controller.ValidateWorkflowCreation(ctx, "unknown-community", "wf-1")
	assert.ErrorIs(t, err, ErrLicenseDenied)
}

func TestController_ValidateWorkflowExecution(t *testing.T) {
	ls := newLicenseServer(t)
	ls.setTier("free-community", "free")

	counter := &mocks.MockWorkflowCounter{}
	controller := newTestController(ls, counter, newFakeClock())
	ctx := context.Background()

	assert.NoError(t, controller.ValidateWorkflowExecution(ctx, "wf-1", "free-community"))
	counter.AssertNotCalled(t, "CountWorkflows", mock.Anything, mock.Anything)

	err := controller.ValidateWorkflowExecution(ctx, "wf-1", "unknown-community")
	assert.ErrorIs(t, err, ErrLicenseDenied)
}

func TestController_ExpiredLicense(t *testing.T) {
	clock := newFakeClock()
	expiresAt := clock.Now().Add(time.Minute)

	server := &mocks.MockLicenseServer{}
	server.On("Validate", mock.Anything, "community-1").Return(&models.LicenseVerdict{
		Tier:      models.TierPremium,
		Status:    models.LicenseStatusActive,
		ExpiresAt: &expiresAt,
	}, nil)

	controller := NewController(server, &mocks.MockWorkflowCounter{},
		WithLogger(discardLogger()), WithClock(clock.Now))

	require.NoError(t, controller.ValidateWorkflowExecution(context.Background(), "wf-1", "community-1"))

	clock.Advance(2 * time.Minute)

	err := controller.ValidateWorkflowExecution(context.Background(), "wf-1", "community-1")
	assert.ErrorIs(t, err, ErrLicenseDenied)
}

func TestController_ServerFailure(t *testing.T) {
	ls := newLicenseServer(t)
	ls.setTier("community-1", "premium")

	clock := newFakeClock()
	controller := newTestController(ls, &mocks.MockWorkflowCounter{}, clock)
	ctx := context.Background()

	_, err := controller.CheckLicenseStatus(ctx, "community-1")
	require.NoError(t, err)

	ls.setFailing(true)
	clock.Advance(CacheTTL + time.Second)

	verdict, err := controller.CheckLicenseStatus(ctx, "community-1")
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusActive, verdict.Status, "still-valid last known verdict is served")

	verdict, err = controller.CheckLicenseStatus(ctx, "community-2")
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusUnlicensed, verdict.Status)

	// failures are not cached
	ls.setFailing(false)
	ls.setTier("community-2", "premium")

	verdict, err = controller.CheckLicenseStatus(ctx, "community-2")
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusActive, verdict.Status)
}

func TestController_NonEnforcing(t *testing.T) {
	server := &mocks.MockLicenseServer{}
	counter := &mocks.MockWorkflowCounter{}

	controller := NewController(server, counter, WithEnforcement(false), WithLogger(discardLogger()))
	ctx := context.Background()

	verdict, err := controller.CheckLicenseStatus(ctx, "community-1")
	require.NoError(t, err)
	assert.Equal(t, models.TierPremium, verdict.Tier)
	assert.Equal(t, models.LicenseStatusActive, verdict.Status)

	assert.NoError(t, controller.ValidateWorkflowCreation(ctx, "community-1", "wf-9"))
	assert.NoError(t, controller.ValidateWorkflowExecution(ctx, "wf-9", "community-1"))
	assert.False(t, controller.Enforcing())

	server.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
	counter.AssertNotCalled(t, "CountWorkflows", mock.Anything, mock.Anything)
}

func TestController_CustomFreeLimit(t *testing.T) {
	ls := newLicenseServer(t)
	ls.setTier("community-1", "free")

	counter := &mocks.MockWorkflowCounter{}
	counter.On("CountWorkflows", mock.Anything, "community-1").Return(1, nil)

	controller := newTestController(ls, counter, newFakeClock(), WithFreeWorkflowLimit(3))

	assert.NoError(t, controller.ValidateWorkflowCreation(context.Background(), "community-1", "wf-2"))
}

func TestController_UnreachableRedisFallsBack(t *testing.T) {
	ls := newLicenseServer(t)
	ls.setTier("community-1", "premium")

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	clock := newFakeClock()
	cache := NewFallbackCache(NewRedisCache(client), NewMemoryCache(clock.Now), discardLogger())
	controller := newTestController(ls, &mocks.MockWorkflowCounter{}, clock, WithCache(cache))
	ctx := context.Background()

	for range 3 {
		verdict, err := controller.CheckLicenseStatus(ctx, "community-1")
		require.NoError(t, err)
		assert.Equal(t, models.TierPremium, verdict.Tier)
	}

	assert.Equal(t, int32(1), ls.hits.Load())

	require.NoError(t, controller.InvalidateCache(ctx, "community-1"))

	_, err := controller.CheckLicenseStatus(ctx, "community-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), ls.hits.Load())
}

func TestController_RequiresCommunity(t *testing.T) {
	controller := NewController(&mocks.MockLicenseServer{}, &mocks.MockWorkflowCounter{}, WithLogger(discardLogger()))

	_, err := controller.CheckLicenseStatus(context.Background(), "")
	assert.Error(t, err)
}
