package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/persistence"
)

// Admission is the license gate consulted before workflows are created or run.
type Admission interface {
	CheckLicenseStatus(ctx context.Context, communityID string) (*models.LicenseVerdict, error)
	ValidateWorkflowCreation(ctx context.Context, communityID, entityID string) error
	ValidateWorkflowExecution(ctx context.Context, workflowID, communityID string) error
	InvalidateCache(ctx context.Context, communityID string) error
}

type Workflow struct {
	persistence persistence.Persistence
	admission   Admission
	logger      *slog.Logger
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence, admission Admission, logger *slog.Logger) *Workflow {
	return &Workflow{
		persistence: persistence,
		admission:   admission,
		logger:      logger.With("module", "workflow_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflows returns every definition of a community, drafts and published versions alike.
func (w *Workflow) ListWorkflows(ctx context.Context, communityID string) ([]*models.WorkflowDefinition, error) {
	if communityID == "" {
		return nil, NewValidationError("ListWorkflows", "community id is required", ErrCommunityRequired)
	}

	workflows, err := w.persistence.WorkflowsByCommunity(ctx, communityID)
	if err != nil {
		return nil, wrap("ListWorkflows", err)
	}

	return workflows, nil
}

func (w *Workflow) GetWorkflow(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	def, err := w.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, wrap("GetWorkflow", err)
	}

	return def, nil
}

// CreateWorkflow stores a new draft lineage once the community's license admits it.
// Drafts are not validated; only publishing enforces graph validity.
func (w *Workflow) CreateWorkflow(ctx context.Context, def *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if err := checkDefinition("CreateWorkflow", def); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	created := def.Clone()
	if created.ID == "" {
		created.ID = uuid.NewString()
	}

	created.Status = models.WorkflowStatusDraft
	created.ParentID = ""
	created.Version = 1
	created.CreatedAt = now
	created.UpdatedAt = now
	created.PublishedAt = nil

	if err := w.admission.ValidateWorkflowCreation(ctx, created.CommunityID, created.ID); err != nil {
		return nil, wrap("CreateWorkflow", err)
	}

	if err := w.persistence.SaveWorkflow(ctx, created); err != nil {
		return nil, wrap("CreateWorkflow", err)
	}

	w.logger.InfoContext(ctx, "workflow created",
		"workflow_id", created.ID,
		"community_id", created.CommunityID)

	return created, nil
}

// UpdateWorkflow replaces the graph and name of a draft. Published definitions are immutable.
func (w *Workflow) UpdateWorkflow(ctx context.Context, id string, def *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if err := checkDefinition("UpdateWorkflow", def); err != nil {
		return nil, err
	}

	existing, err := w.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, wrap("UpdateWorkflow", err)
	}

	if existing.IsPublished() {
		return nil, &ServiceError{
			Op:      "UpdateWorkflow",
			Code:    CodeConflict,
			Message: "published workflow " + id + " is immutable; create a draft instead",
			Err:     ErrCannotModifyPublished,
		}
	}

	if def.CommunityID != existing.CommunityID {
		return nil, NewValidationError("UpdateWorkflow", "community id cannot change", ErrInvalidRequest)
	}

	updated := def.Clone()
	updated.ID = existing.ID
	updated.Status = existing.Status
	updated.Version = existing.Version
	updated.ParentID = existing.ParentID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	updated.PublishedAt = nil

	if err := w.persistence.SaveWorkflow(ctx, updated); err != nil {
		return nil, wrap("UpdateWorkflow", err)
	}

	return updated, nil
}

func (w *Workflow) DeleteWorkflow(ctx context.Context, id string) error {
	if err := w.persistence.DeleteWorkflow(ctx, id); err != nil {
		return wrap("DeleteWorkflow", err)
	}

	w.logger.InfoContext(ctx, "workflow deleted", "workflow_id", id)

	return nil
}

func checkDefinition(op string, def *models.WorkflowDefinition) error {
	switch {
	case def == nil:
		return NewValidationError(op, "workflow cannot be nil", ErrWorkflowNil)
	case def.CommunityID == "":
		return NewValidationError(op, "community id is required", ErrCommunityRequired)
	case def.Name == "":
		return NewValidationError(op, "workflow name is required", ErrWorkflowNameRequired)
	}

	return nil
}
