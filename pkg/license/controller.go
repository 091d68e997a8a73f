// Package license decides whether a community may create and run workflows.
package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

const (
	// CacheTTL is how long a fetched verdict is served without asking the server.
	CacheTTL = 5 * time.Minute

	// FreeTierWorkflowLimit is the number of workflows a free community may own.
	FreeTierWorkflowLimit = 1
)

// WorkflowCounter counts the workflows a community already owns.
type WorkflowCounter interface {
	CountWorkflows(ctx context.Context, communityID string) (int, error)
}

// Controller is the admission controller. It is safe for concurrent use.
type Controller struct {
	server    Server
	counter   WorkflowCounter
	cache     Cache
	lastKnown *MemoryCache
	logger    *slog.Logger
	enforce   bool
	freeLimit int
	ttl       time.Duration
	now       func() time.Time
	group     singleflight.Group
}

// Option configures a Controller.
type Option func(*Controller)

// WithCache replaces the default in-process cache.
func WithCache(cache Cache) Option {
	return func(c *Controller) {
		c.cache = cache
	}
}

// WithEnforcement toggles admission checks. When disabled every community is
// treated as active premium and the server is never contacted.
func WithEnforcement(enforce bool) Option {
	return func(c *Controller) {
		c.enforce = enforce
	}
}

// WithFreeWorkflowLimit overrides FreeTierWorkflowLimit.
func WithFreeWorkflowLimit(limit int) Option {
	return func(c *Controller) {
		if limit >= 0 {
			c.freeLimit = limit
		}
	}
}

// WithCacheTTL overrides CacheTTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Controller) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController creates an enforcing controller backed by server.
func NewController(server Server, counter WorkflowCounter, opts ...Option) *Controller {
	c := &Controller{
		server:    server,
		counter:   counter,
		logger:    slog.Default(),
		enforce:   true,
		freeLimit: FreeTierWorkflowLimit,
		ttl:       CacheTTL,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.lastKnown = NewMemoryCache(c.now)
	if c.cache == nil {
		c.cache = NewMemoryCache(c.now)
	}

	c.logger = c.logger.With("module", "license")

	return c
}

// Enforcing reports whether admission checks are active.
func (c *Controller) Enforcing() bool {
	return c.enforce
}

// CheckLicenseStatus returns the verdict of a community, from cache when fresh.
func (c *Controller) CheckLicenseStatus(ctx context.Context, communityID string) (*models.LicenseVerdict, error) {
	if communityID == "" {
		return nil, errors.New("community id is required")
	}

	if !c.enforce {
		return c.unenforced(communityID), nil
	}

	if verdict, ok := c.cached(ctx, communityID); ok {
		return verdict, nil
	}

	// concurrent misses for one community share a single server call
	value, _, _ := c.group.Do(communityID, func() (any, error) {
		if verdict, ok := c.cached(ctx, communityID); ok {
			return verdict, nil
		}

		return c.fetch(context.WithoutCancel(ctx), communityID), nil
	})

	verdict, _ := value.(*models.LicenseVerdict)
	copied := *verdict

	return &copied, nil
}

// ValidateWorkflowCreation denies creation for inactive licenses and for
// communities that already own their tier's workflow allotment.
func (c *Controller) ValidateWorkflowCreation(ctx context.Context, communityID, entityID string) error {
	if !c.enforce {
		return nil
	}

	verdict, err := c.CheckLicenseStatus(ctx, communityID)
	if err != nil {
		return err
	}

	if err := c.requireActive(verdict); err != nil {
		return err
	}

	if verdict.WorkflowLimit == nil {
		return nil
	}

	count, err := c.counter.CountWorkflows(ctx, communityID)
	if err != nil {
		return fmt.Errorf("count workflows of community %s: %w", communityID, err)
	}

	if count >= *verdict.WorkflowLimit {
		c.logger.InfoContext(ctx, "workflow creation denied",
			"community_id", communityID,
			"entity_id", entityID,
			"tier", verdict.Tier,
			"workflows", count,
			"limit", *verdict.WorkflowLimit)

		return denied(communityID, "%s tier allows %d workflows, community has %d",
			verdict.Tier, *verdict.WorkflowLimit, count)
	}

	return nil
}

// ValidateWorkflowExecution denies execution for inactive licenses.
func (c *Controller) ValidateWorkflowExecution(ctx context.Context, workflowID, communityID string) error {
	if !c.enforce {
		return nil
	}

	verdict, err := c.CheckLicenseStatus(ctx, communityID)
	if err != nil {
		return err
	}

	if err := c.requireActive(verdict); err != nil {
		c.logger.InfoContext(ctx, "workflow execution denied",
			"community_id", communityID,
			"workflow_id", workflowID,
			"status", verdict.Status)

		return err
	}

	return nil
}

// InvalidateCache forgets the cached verdict so the next check asks the server.
func (c *Controller) InvalidateCache(ctx context.Context, communityID string) error {
	if err := c.cache.Delete(ctx, communityID); err != nil {
		c.logger.WarnContext(ctx, "failed to invalidate cached verdict",
			"community_id", communityID, "error", err)
	}

	_ = c.lastKnown.Delete(ctx, communityID)

	return nil
}

func (c *Controller) requireActive(verdict *models.LicenseVerdict) error {
	if !verdict.IsActive() {
		return denied(verdict.CommunityID, "license status is %s", verdict.Status)
	}

	if !verdict.StillValid(c.now()) {
		return denied(verdict.CommunityID, "license expired at %s", verdict.ExpiresAt.Format(time.RFC3339))
	}

	return nil
}

func (c *Controller) cached(ctx context.Context, communityID string) (*models.LicenseVerdict, bool) {
	verdict, ok, err := c.cache.Get(ctx, communityID)
	if err != nil {
		c.logger.WarnContext(ctx, "license cache read failed", "community_id", communityID, "error", err)

		return nil, false
	}

	return verdict, ok
}

// fetch asks the server. Failures fall back to a still-valid last known
// verdict, otherwise to unlicensed; failures are never cached.
func (c *Controller) fetch(ctx context.Context, communityID string) *models.LicenseVerdict {
	verdict, err := c.server.Validate(ctx, communityID)
	if err != nil {
		if last, ok := c.lastKnown.Peek(communityID); ok && last.StillValid(c.now()) {
			c.logger.WarnContext(ctx, "license server failed, using last known verdict",
				"community_id", communityID, "error", err)

			return last
		}

		c.logger.WarnContext(ctx, "license server failed, treating community as unlicensed",
			"community_id", communityID, "error", err)

		return &models.LicenseVerdict{
			CommunityID: communityID,
			Tier:        models.TierFree,
			Status:      models.LicenseStatusUnlicensed,
			FetchedAt:   c.now(),
		}
	}

	verdict.CommunityID = communityID
	verdict.FetchedAt = c.now()

	if verdict.Tier == models.TierFree && verdict.WorkflowLimit == nil {
		limit := c.freeLimit
		verdict.WorkflowLimit = &limit
	}

	if err := c.cache.Set(ctx, verdict, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "license cache write failed", "community_id", communityID, "error", err)
	}

	_ = c.lastKnown.Set(ctx, verdict, c.ttl)

	c.logger.DebugContext(ctx, "license verdict fetched",
		"community_id", communityID, "tier", verdict.Tier, "status", verdict.Status)

	return verdict
}

func (c *Controller) unenforced(communityID string) *models.LicenseVerdict {
	return &models.LicenseVerdict{
		CommunityID: communityID,
		Tier:        models.TierPremium,
		Status:      models.LicenseStatusActive,
		FetchedAt:   c.now(),
	}
}
