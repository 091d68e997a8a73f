package services

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/penguintechinc/waddlebot-sub014/pkg/eventbus"
	"github.com/penguintechinc/waddlebot-sub014/pkg/events"
	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/persistence"
	"github.com/penguintechinc/waddlebot-sub014/pkg/workflow"
)

// DefaultDispatchConcurrency bounds how many matched workflows one event runs at once.
const DefaultDispatchConcurrency = 4

// Runner executes a definition against an event.
type Runner interface {
	Execute(ctx context.Context, def *models.WorkflowDefinition, event models.TriggerEvent) (*models.ExecutionResult, error)
}

type Execution struct {
	persistence persistence.Persistence
	admission   Admission
	runner      Runner
	matcher     *workflow.TriggerMatcher
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	concurrency int
}

// NewExecution creates the execution service. publisher may be nil.
func NewExecution(
	persistence persistence.Persistence,
	admission Admission,
	runner Runner,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Execution {
	return &Execution{
		persistence: persistence,
		admission:   admission,
		runner:      runner,
		matcher:     workflow.NewTriggerMatcher(logger),
		publisher:   publisher,
		logger:      logger.With("module", "execution_service"),
		concurrency: DefaultDispatchConcurrency,
	}
}

// ExecuteWorkflow runs one stored definition. Drafts are validated first since
// they may have been saved invalid. Admission is checked before anything runs.
func (e *Execution) ExecuteWorkflow(ctx context.Context, workflowID string, event models.TriggerEvent) (*models.ExecutionResult, error) {
	def, err := e.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, wrap("ExecuteWorkflow", err)
	}

	if !def.IsPublished() {
		if err := workflow.Validate(def); err != nil {
			return nil, wrap("ExecuteWorkflow", err)
		}
	}

	switch event.CommunityID {
	case "":
		event.CommunityID = def.CommunityID
	case def.CommunityID:
	default:
		return nil, NewValidationError("ExecuteWorkflow", "event community does not match workflow community", ErrCommunityMismatch)
	}

	return e.run(ctx, def, event)
}

// DispatchEvent runs every published workflow of the event's community whose
// triggers match. Workflows denied by admission are skipped and logged.
func (e *Execution) DispatchEvent(ctx context.Context, event models.TriggerEvent) ([]*models.ExecutionResult, error) {
	if event.CommunityID == "" {
		return nil, NewValidationError("DispatchEvent", "community id is required", ErrCommunityRequired)
	}

	workflows, err := e.persistence.WorkflowsByCommunity(ctx, event.CommunityID)
	if err != nil {
		return nil, wrap("DispatchEvent", err)
	}

	matches := e.matcher.MatchWorkflows(event, workflows)
	results := make([]*models.ExecutionResult, len(matches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, match := range matches {
		g.Go(func() error {
			result, err := e.run(gctx, match.Workflow, event)
			if err != nil {
				if IsEntitlementError(err) {
					e.logger.InfoContext(gctx, "skipping workflow denied by license",
						"workflow_id", match.Workflow.ID,
						"error", err)

					return nil
				}

				return err
			}

			results[i] = result

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	ran := make([]*models.ExecutionResult, 0, len(results))

	for _, result := range results {
		if result != nil {
			ran = append(ran, result)
		}
	}

	return ran, nil
}

func (e *Execution) GetExecution(ctx context.Context, id string) (*models.ExecutionResult, error) {
	result, err := e.persistence.ExecutionByID(ctx, id)
	if err != nil {
		return nil, wrap("GetExecution", err)
	}

	return result, nil
}

func (e *Execution) ListExecutions(ctx context.Context, workflowID string) ([]*models.ExecutionResult, error) {
	results, err := e.persistence.ExecutionsByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, wrap("ListExecutions", err)
	}

	return results, nil
}

func (e *Execution) run(ctx context.Context, def *models.WorkflowDefinition, event models.TriggerEvent) (*models.ExecutionResult, error) {
	if err := e.admission.ValidateWorkflowExecution(ctx, def.ID, def.CommunityID); err != nil {
		return nil, wrap("ExecuteWorkflow", err)
	}

	result, err := e.runner.Execute(ctx, def, event)
	if err != nil {
		return nil, wrap("ExecuteWorkflow", err)
	}

	if result.Status == models.ExecutionStatusNotMatched {
		return result, nil
	}

	// Persisting must outlive a cancelled caller so cancelled runs keep their trace.
	saveCtx := context.WithoutCancel(ctx)

	if err := e.persistence.SaveExecution(saveCtx, result); err != nil {
		return nil, wrap("ExecuteWorkflow", err)
	}

	publish(saveCtx, e.logger, e.publisher, def.CommunityID, events.FromExecution(def.CommunityID, result))

	return result, nil
}
