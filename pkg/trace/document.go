package trace

import (
	"time"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

// Document is the serialized execution trace.
type Document struct {
	ID         string                 `json:"id"`
	WorkflowID string                 `json:"workflowId"`
	Status     models.ExecutionStatus `json:"status"`
	Error      string                 `json:"error,omitempty"`
	StartTime  time.Time              `json:"startTime"`
	EndTime    time.Time              `json:"endTime"`
	Steps      []Step                 `json:"steps"`
}

// Step is one trace entry. Duration is in milliseconds.
type Step struct {
	NodeID   string            `json:"nodeId"`
	Branch   string            `json:"branch,omitempty"`
	Status   models.StepStatus `json:"status"`
	Port     string            `json:"port,omitempty"`
	Duration int64             `json:"duration"`
	Output   map[string]any    `json:"output,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// NewDocument renders an execution result as a trace document.
func NewDocument(result *models.ExecutionResult) Document {
	doc := Document{
		ID:         result.ID,
		WorkflowID: result.WorkflowID,
		Status:     result.Status,
		Error:      result.Error,
		StartTime:  result.StartTime,
		EndTime:    result.EndTime,
		Steps:      make([]Step, 0, len(result.Steps)),
	}

	for _, step := range result.Steps {
		doc.Steps = append(doc.Steps, Step{
			NodeID:   step.NodeID,
			Branch:   step.Branch,
			Status:   step.Status,
			Port:     step.Port,
			Duration: step.Duration.Milliseconds(),
			Output:   step.Output,
			Error:    step.Error,
		})
	}

	return doc
}
