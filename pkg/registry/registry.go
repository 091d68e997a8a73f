// Package registry maps node types to their executors.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/protocol"
)

// ErrExecutorNotRegistered is returned when no executor handles a node type.
var ErrExecutorNotRegistered = errors.New("executor not registered")

type Registry struct {
	logger    *slog.Logger
	mu        sync.RWMutex
	executors map[models.NodeType]protocol.NodeExecutor
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log.With("module", "registry"),
		executors: make(map[models.NodeType]protocol.NodeExecutor),
	}
}

// Register adds or replaces the executor for its node type.
func (r *Registry) Register(executor protocol.NodeExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[executor.Type()]; exists {
		r.logger.Warn("replacing node executor", "type", executor.Type())
	}

	r.executors[executor.Type()] = executor
}

// Executor returns the executor registered for nodeType.
//
//nolint:ireturn // one executor per node type
func (r *Registry) Executor(nodeType models.NodeType) (protocol.NodeExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, ok := r.executors[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutorNotRegistered, nodeType)
	}

	return executor, nil
}

// Types returns the registered node types in sorted order.
func (r *Registry) Types() []models.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]models.NodeType, 0, len(r.executors))
	for nodeType := range r.executors {
		types = append(types, nodeType)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// HealthCheck reports whether an executor exists for every node type.
func (r *Registry) HealthCheck() error {
	all := []models.NodeType{
		models.NodeTypeTrigger,
		models.NodeTypeCondition,
		models.NodeTypeAction,
		models.NodeTypeData,
		models.NodeTypeLoop,
		models.NodeTypeFlow,
	}

	var missing []error

	for _, nodeType := range all {
		if _, err := r.Executor(nodeType); err != nil {
			missing = append(missing, err)
		}
	}

	return errors.Join(missing...)
}
