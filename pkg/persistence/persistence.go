// Package persistence provides data storage abstraction layer for workflow definitions and executions.
package persistence

import (
	"context"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

type Persistence interface {
	Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error)
	WorkflowsByCommunity(ctx context.Context, communityID string) ([]*models.WorkflowDefinition, error)
	WorkflowByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	SaveWorkflow(ctx context.Context, workflow *models.WorkflowDefinition) error
	DeleteWorkflow(ctx context.Context, id string) error

	// CountWorkflows counts the workflow lineages of a community: definitions
	// without a parent. Versions derived by publishing or drafting are not counted.
	CountWorkflows(ctx context.Context, communityID string) (int, error)

	SaveExecution(ctx context.Context, execution *models.ExecutionResult) error
	ExecutionByID(ctx context.Context, id string) (*models.ExecutionResult, error)
	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionResult, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// IsLineageRoot reports whether a definition counts against the community allotment.
func IsLineageRoot(workflow *models.WorkflowDefinition) bool {
	return workflow.ParentID == ""
}
