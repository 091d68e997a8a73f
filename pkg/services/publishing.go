package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/penguintechinc/waddlebot-sub014/pkg/eventbus"
	"github.com/penguintechinc/waddlebot-sub014/pkg/events"
	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/persistence"
	"github.com/penguintechinc/waddlebot-sub014/pkg/workflow"
)

// Publishing handles the draft/published version lifecycle.
type Publishing struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewPublishing creates a new workflow publishing service. publisher may be nil.
func NewPublishing(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Publishing {
	return &Publishing{
		persistence: persistence,
		publisher:   publisher,
		logger:      logger.With("module", "publishing_service"),
	}
}

// PublishWorkflow validates a draft and stores its immutable published copy.
// The draft itself is left untouched.
func (p *Publishing) PublishWorkflow(ctx context.Context, draftID string) (*models.WorkflowDefinition, error) {
	draft, err := p.persistence.WorkflowByID(ctx, draftID)
	if err != nil {
		return nil, wrap("PublishWorkflow", err)
	}

	published, err := workflow.Publish(draft, time.Now().UTC())
	if err != nil {
		return nil, wrap("PublishWorkflow", err)
	}

	if err := p.persistence.SaveWorkflow(ctx, published); err != nil {
		return nil, wrap("PublishWorkflow", err)
	}

	p.logger.InfoContext(ctx, "workflow published",
		"draft_id", draft.ID,
		"workflow_id", published.ID,
		"version", published.Version)

	publish(ctx, p.logger, p.publisher, published.CommunityID, &events.WorkflowPublished{
		BaseEvent: events.NewBaseEvent(events.WorkflowPublishedEvent, published.ID, published.CommunityID),
		DraftID:   draft.ID,
		Version:   published.Version,
	})

	return published, nil
}

// CreateDraftFromPublished stores an editable copy of a published version with the next version number.
func (p *Publishing) CreateDraftFromPublished(ctx context.Context, publishedID string) (*models.WorkflowDefinition, error) {
	published, err := p.persistence.WorkflowByID(ctx, publishedID)
	if err != nil {
		return nil, wrap("CreateDraftFromPublished", err)
	}

	draft, err := workflow.NewDraft(published, time.Now().UTC())
	if err != nil {
		return nil, wrap("CreateDraftFromPublished", err)
	}

	if err := p.persistence.SaveWorkflow(ctx, draft); err != nil {
		return nil, wrap("CreateDraftFromPublished", err)
	}

	return draft, nil
}

// publish delivers a lifecycle event. Delivery failures never fail the use-case.
func publish(ctx context.Context, logger *slog.Logger, publisher eventbus.EventPublisher, key string, event eventbus.Event) {
	if publisher == nil {
		return
	}

	if err := publisher.Publish(ctx, key, event); err != nil {
		logger.WarnContext(ctx, "failed to publish event",
			"event_type", event.GetType(),
			"error", err)
	}
}
