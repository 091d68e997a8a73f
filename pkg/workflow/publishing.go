package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

var (
	ErrAlreadyPublished = errors.New("workflow is already published")
	ErrNotPublished     = errors.New("workflow is not published")
)

// Publish validates a draft and returns an immutable published copy. The copy
// gets a new id, keeps the draft's version and points back at the draft.
func Publish(draft *models.WorkflowDefinition, now time.Time) (*models.WorkflowDefinition, error) {
	if draft == nil {
		return nil, Validate(nil)
	}

	if draft.IsPublished() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPublished, draft.ID)
	}

	if err := Validate(draft); err != nil {
		return nil, err
	}

	published := draft.Clone()
	published.ID = uuid.NewString()
	published.ParentID = draft.ID
	published.Status = models.WorkflowStatusPublished
	published.CreatedAt = now
	published.UpdatedAt = now
	published.PublishedAt = &now

	if published.Version == 0 {
		published.Version = 1
	}

	return published, nil
}

// NewDraft returns an editable copy of a published definition with the next version number.
func NewDraft(published *models.WorkflowDefinition, now time.Time) (*models.WorkflowDefinition, error) {
	if !published.IsPublished() {
		return nil, fmt.Errorf("%w: %s", ErrNotPublished, published.ID)
	}

	draft := published.Clone()
	draft.ID = uuid.NewString()
	draft.ParentID = published.ID
	draft.Status = models.WorkflowStatusDraft
	draft.Version = published.Version + 1
	draft.CreatedAt = now
	draft.UpdatedAt = now
	draft.PublishedAt = nil

	return draft, nil
}
