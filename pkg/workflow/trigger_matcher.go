package workflow

import (
	"log/slog"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

// TriggerMatcher handles matching trigger events against workflow definitions.
type TriggerMatcher struct {
	logger *slog.Logger
}

// MatchResult is a published workflow with the trigger nodes an event matched.
type MatchResult struct {
	Workflow *models.WorkflowDefinition
	Triggers []*models.Node
}

// NewTriggerMatcher creates a new trigger matcher.
func NewTriggerMatcher(logger *slog.Logger) *TriggerMatcher {
	return &TriggerMatcher{
		logger: logger.With("module", "trigger_matcher"),
	}
}

// MatchWorkflows finds the published workflows of the event's community that match the event.
func (tm *TriggerMatcher) MatchWorkflows(event models.TriggerEvent, workflows []*models.WorkflowDefinition) []MatchResult {
	var results []MatchResult

	tm.logger.Debug("Matching trigger event against workflows",
		"trigger_type", event.Type,
		"platform", event.Platform,
		"workflows_count", len(workflows))

	for _, def := range workflows {
		if !def.IsPublished() {
			continue
		}

		if event.CommunityID != "" && def.CommunityID != event.CommunityID {
			continue
		}

		if matched := MatchTriggers(def, event); len(matched) > 0 {
			results = append(results, MatchResult{Workflow: def, Triggers: matched})

			tm.logger.Debug("Found matching workflow",
				"workflow_id", def.ID,
				"workflow_name", def.Name,
				"triggers", len(matched))
		}
	}

	tm.logger.Info("Completed trigger matching",
		"trigger_type", event.Type,
		"community_id", event.CommunityID,
		"matches_found", len(results))

	return results
}
