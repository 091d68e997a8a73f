package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/persistence"
)

// ExecutionRepository stores execution results as JSON files.
type ExecutionRepository struct {
	root string
	mu   sync.RWMutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

// Save writes an execution result.
func (er *ExecutionRepository) Save(_ context.Context, execution *models.ExecutionResult) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	dir := path.Join(er.root, "executions")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	return os.WriteFile(path.Join(dir, filepath.Base(execution.ID)+".json"), data, 0o600)
}

// GetByID reads an execution result.
func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.ExecutionResult, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	return er.read(id)
}

// GetByWorkflow returns the executions of a workflow, newest first.
func (er *ExecutionRepository) GetByWorkflow(_ context.Context, workflowID string) ([]*models.ExecutionResult, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	files, err := fs.Glob(os.DirFS(path.Join(er.root, "executions")), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.ExecutionResult, 0)

	for _, file := range files {
		execution, err := er.read(file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartTime.After(executions[j].StartTime)
	})

	return executions, nil
}

func (er *ExecutionRepository) read(id string) (*models.ExecutionResult, error) {
	body, err := os.ReadFile(filepath.Clean(path.Join(er.root, "executions", filepath.Base(id)+".json")))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to fetch execution %s: %w", id, err)
	}

	var execution models.ExecutionResult
	if err := json.Unmarshal(body, &execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}

	return &execution, nil
}
