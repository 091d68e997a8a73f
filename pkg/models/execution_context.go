package models

import (
	"strings"
	"sync"
	"time"
)

// ExecutionStatus is the terminal status of one execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning    ExecutionStatus = "running"
	ExecutionStatusCompleted  ExecutionStatus = "completed"
	ExecutionStatusFailed     ExecutionStatus = "failed"
	ExecutionStatusStopped    ExecutionStatus = "stopped"
	ExecutionStatusCancelled  ExecutionStatus = "cancelled"
	ExecutionStatusTimeout    ExecutionStatus = "timeout"
	ExecutionStatusNotMatched ExecutionStatus = "not_matched"
)

// StepStatus defines the possible states of a node execution step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// ExecutionStep is one entry of the execution trace.
type ExecutionStep struct {
	NodeID    string         `json:"node_id"`
	Branch    string         `json:"branch,omitempty"`
	Status    StepStatus     `json:"status"`
	Port      string         `json:"port,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Output    map[string]any `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// ExecutionResult is returned by the engine once a run reaches a terminal status.
type ExecutionResult struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	Status     ExecutionStatus `json:"status"`
	Steps      []ExecutionStep `json:"steps"`
	Output     map[string]any  `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    time.Time       `json:"end_time"`
}

// ExecutionContext is the variable scope of one run. Concurrent split branches
// read freely; writes go through a single writer lock, last writer wins.
type ExecutionContext struct {
	ID           string
	WorkflowID   string
	CommunityID  string
	TriggerInput TriggerEvent

	mu         sync.RWMutex
	variables  map[string]any
	lastWriter map[string]string
	loops      map[string]int
}

// NewExecutionContext creates the scope for one run seeded with initial variables.
func NewExecutionContext(id, workflowID string, input TriggerEvent) *ExecutionContext {
	return &ExecutionContext{
		ID:           id,
		WorkflowID:   workflowID,
		CommunityID:  input.CommunityID,
		TriggerInput: input,
		variables:    make(map[string]any),
		lastWriter:   make(map[string]string),
		loops:        make(map[string]int),
	}
}

// Variable resolves a dot-separated path such as "event.amount".
func (c *ExecutionContext) Variable(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return lookupPath(c.variables, path)
}

// SetVariable writes a top-level variable on behalf of branch.
func (c *ExecutionContext) SetVariable(branch, key string, value any) {
	c.mu.Lock()
	c.variables[key] = value
	c.lastWriter[key] = branch
	c.mu.Unlock()
}

// SetVariables writes several variables under one lock acquisition.
func (c *ExecutionContext) SetVariables(branch string, values map[string]any) {
	c.mu.Lock()
	for key, value := range values {
		c.variables[key] = value
		c.lastWriter[key] = branch
	}
	c.mu.Unlock()
}

// LastWriter returns the branch that last wrote key.
func (c *ExecutionContext) LastWriter(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastWriter[key]
}

// Variables returns a shallow snapshot of the variable map.
func (c *ExecutionContext) Variables() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		snapshot[k] = v
	}

	return snapshot
}

// LoopCounter returns the iteration counter of a loop node.
func (c *ExecutionContext) LoopCounter(nodeID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.loops[nodeID]
}

// SetLoopCounter stores the iteration counter of a loop node.
func (c *ExecutionContext) SetLoopCounter(nodeID string, value int) {
	c.mu.Lock()
	if value == 0 {
		delete(c.loops, nodeID)
	} else {
		c.loops[nodeID] = value
	}
	c.mu.Unlock()
}

func lookupPath(root map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = root

	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}
