package services

import (
	"context"
	"log/slog"

	"github.com/penguintechinc/waddlebot-sub014/pkg/eventbus"
	"github.com/penguintechinc/waddlebot-sub014/pkg/events"
	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

// License exposes a community's verdict and cache control to operators.
type License struct {
	admission Admission
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewLicense(admission Admission, publisher eventbus.EventPublisher, logger *slog.Logger) *License {
	return &License{
		admission: admission,
		publisher: publisher,
		logger:    logger.With("module", "license_service"),
	}
}

func (l *License) Status(ctx context.Context, communityID string) (*models.LicenseVerdict, error) {
	if communityID == "" {
		return nil, NewValidationError("LicenseStatus", "community id is required", ErrCommunityRequired)
	}

	verdict, err := l.admission.CheckLicenseStatus(ctx, communityID)
	if err != nil {
		return nil, wrap("LicenseStatus", err)
	}

	return verdict, nil
}

// InvalidateCache drops the cached verdict, e.g. after a purchase or downgrade.
func (l *License) InvalidateCache(ctx context.Context, communityID string) error {
	if communityID == "" {
		return NewValidationError("InvalidateLicenseCache", "community id is required", ErrCommunityRequired)
	}

	if err := l.admission.InvalidateCache(ctx, communityID); err != nil {
		return wrap("InvalidateLicenseCache", err)
	}

	l.logger.InfoContext(ctx, "license cache invalidated", "community_id", communityID)

	publish(ctx, l.logger, l.publisher, communityID, &events.LicenseCacheInvalidated{
		BaseEvent: events.NewBaseEvent(events.LicenseCacheInvalidatedEvent, "", communityID),
	})

	return nil
}
