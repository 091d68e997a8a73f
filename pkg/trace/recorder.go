// Package trace records the ordered steps of one execution and renders the
// trace document consumed by debugging and test tooling.
package trace

import (
	"sync"
	"time"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

// Recorder is an append-only step log shared by every branch of one execution.
type Recorder struct {
	mu    sync.Mutex
	steps []models.ExecutionStep
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a finished step.
func (r *Recorder) Record(step models.ExecutionStep) {
	r.mu.Lock()
	r.steps = append(r.steps, step)
	r.mu.Unlock()
}

// Skip appends a skipped step for a node that was queued but never ran.
func (r *Recorder) Skip(nodeID, branch string, at time.Time) {
	r.Record(models.ExecutionStep{
		NodeID:    nodeID,
		Branch:    branch,
		Status:    models.StepStatusSkipped,
		StartedAt: at,
	})
}

// Len returns the number of recorded steps.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.steps)
}

// Steps returns a copy of the recorded steps in order.
func (r *Recorder) Steps() []models.ExecutionStep {
	r.mu.Lock()
	defer r.mu.Unlock()

	steps := make([]models.ExecutionStep, len(r.steps))
	copy(steps, r.steps)

	return steps
}
