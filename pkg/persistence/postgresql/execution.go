package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/persistence"
)

const selectExecution = `
	SELECT id, workflow_id, status, error, steps, output, start_time, end_time
	FROM executions
`

// ExecutionRepository stores execution results and their traces.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Save inserts or replaces an execution result.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.ExecutionResult) error {
	steps := execution.Steps
	if steps == nil {
		steps = []models.ExecutionStep{}
	}

	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	outputJSON, err := json.Marshal(execution.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO executions (id, workflow_id, status, error, steps, output, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			steps = EXCLUDED.steps,
			output = EXCLUDED.output,
			end_time = EXCLUDED.end_time
	`,
		execution.ID,
		execution.WorkflowID,
		execution.Status,
		execution.Error,
		stepsJSON,
		outputJSON,
		execution.StartTime,
		execution.EndTime,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	return nil
}

// GetByID returns one execution result.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.ExecutionResult, error) {
	execution, err := scanExecution(r.db.QueryRowContext(ctx, selectExecution+`WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// GetByWorkflow returns the executions of a workflow, newest first.
func (r *ExecutionRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionResult, error) {
	rows, err := r.db.QueryContext(ctx, selectExecution+`WHERE workflow_id = $1 ORDER BY start_time DESC`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.ExecutionResult, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func scanExecution(row scanner) (*models.ExecutionResult, error) {
	var (
		execution  models.ExecutionResult
		stepsJSON  []byte
		outputJSON []byte
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Status,
		&execution.Error,
		&stepsJSON,
		&outputJSON,
		&execution.StartTime,
		&execution.EndTime,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stepsJSON, &execution.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps of execution %s: %w", execution.ID, err)
	}

	if len(outputJSON) > 0 {
		if err := json.Unmarshal(outputJSON, &execution.Output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output of execution %s: %w", execution.ID, err)
		}
	}

	return &execution, nil
}
