// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

type EventType string

// Event is implemented by every payload published on the bus.
type Event interface {
	GetType() EventType
}

// Topic carries every workflow lifecycle event.
const Topic = "waddlebot.workflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"

	// Definition lifecycle events.
	WorkflowPublishedEvent EventType = "workflow.published"

	// License lifecycle events.
	LicenseCacheInvalidatedEvent EventType = "license.cache_invalidated"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	CommunityID string         `json:"community_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ExecutionCompleted is published when a run ends in a non-failure status
// (completed, stopped or not_matched).
type ExecutionCompleted struct {
	BaseEvent

	ExecutionID   string                 `json:"execution_id"`
	Status        models.ExecutionStatus `json:"status"`
	DurationMs    int64                  `json:"duration_ms"`
	NodesExecuted int                    `json:"nodes_executed"`
	Output        map[string]any         `json:"output,omitempty"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

// ExecutionFailed is published for failed, cancelled and timed out runs.
type ExecutionFailed struct {
	BaseEvent

	ExecutionID   string                 `json:"execution_id"`
	Status        models.ExecutionStatus `json:"status"`
	DurationMs    int64                  `json:"duration_ms"`
	NodesExecuted int                    `json:"nodes_executed"`
	FailedNode    string                 `json:"failed_node,omitempty"`
	Error         string                 `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type WorkflowPublished struct {
	BaseEvent

	DraftID string `json:"draft_id"`
	Version int    `json:"version"`
}

func (e WorkflowPublished) GetType() EventType {
	return WorkflowPublishedEvent
}

type LicenseCacheInvalidated struct {
	BaseEvent
}

func (e LicenseCacheInvalidated) GetType() EventType {
	return LicenseCacheInvalidatedEvent
}

func NewBaseEvent(eventType EventType, workflowID, communityID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  workflowID,
		CommunityID: communityID,
		Metadata:    make(map[string]any),
	}
}

// FromExecution builds the lifecycle event matching the result's terminal status.
func FromExecution(communityID string, result *models.ExecutionResult) Event {
	duration := result.EndTime.Sub(result.StartTime).Milliseconds()
	executed := 0

	var failedNode string

	for _, step := range result.Steps {
		if step.Status == models.StepStatusSkipped {
			continue
		}

		executed++

		if step.Status == models.StepStatusFailed {
			failedNode = step.NodeID
		}
	}

	switch result.Status {
	case models.ExecutionStatusFailed, models.ExecutionStatusCancelled, models.ExecutionStatusTimeout:
		return &ExecutionFailed{
			BaseEvent:     NewBaseEvent(ExecutionFailedEvent, result.WorkflowID, communityID),
			ExecutionID:   result.ID,
			Status:        result.Status,
			DurationMs:    duration,
			NodesExecuted: executed,
			FailedNode:    failedNode,
			Error:         result.Error,
		}
	default:
		return &ExecutionCompleted{
			BaseEvent:     NewBaseEvent(ExecutionCompletedEvent, result.WorkflowID, communityID),
			ExecutionID:   result.ID,
			Status:        result.Status,
			DurationMs:    duration,
			NodesExecuted: executed,
			Output:        result.Output,
		}
	}
}
