// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

// CreateTestNode creates a node with the given config. The node type follows the config.
func CreateTestNode(id string, config models.NodeConfig, overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:     id,
		Type:   config.NodeType(),
		Label:  id,
		Config: config,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithLabel sets the node label.
func WithLabel(label string) func(*models.Node) {
	return func(n *models.Node) {
		n.Label = label
	}
}

// CommandTrigger returns a command trigger config.
func CommandTrigger(command, platform string) *models.TriggerConfig {
	return &models.TriggerConfig{TriggerType: models.TriggerTypeCommand, Command: command, Platform: platform}
}

// SendMessage returns a send_message action config.
func SendMessage(message string) *models.ActionConfig {
	return &models.ActionConfig{ActionType: models.ActionTypeSendMessage, Message: message}
}

// Delay returns a delay action config.
func Delay(d time.Duration) *models.ActionConfig {
	return &models.ActionConfig{ActionType: models.ActionTypeDelay, Duration: models.Duration(d)}
}

// Condition returns a variable condition config.
func Condition(field, operator string, value any) *models.ConditionConfig {
	return &models.ConditionConfig{ConditionType: "variable", Field: field, Operator: operator, Value: value}
}

// SetVariable returns a set_variable data config.
func SetVariable(name string, value any) *models.DataConfig {
	return &models.DataConfig{DataType: models.DataTypeSetVariable, Variable: name, Value: value}
}

// Repeat returns a repeat loop config.
func Repeat(maxIterations int) *models.LoopConfig {
	return &models.LoopConfig{LoopType: models.LoopTypeRepeat, MaxIterations: maxIterations}
}

// Split returns a split flow config.
func Split() *models.FlowConfig {
	return &models.FlowConfig{FlowType: models.FlowTypeSplit}
}

// Merge returns a merge flow config with the given policy.
func Merge(policy string, waitFor ...string) *models.FlowConfig {
	return &models.FlowConfig{FlowType: models.FlowTypeMerge, Policy: policy, WaitFor: waitFor}
}

// Stop returns a stop flow config.
func Stop() *models.FlowConfig {
	return &models.FlowConfig{FlowType: models.FlowTypeStop}
}

// Edge connects source to target through the default port.
func Edge(source, target string) *models.Edge {
	return &models.Edge{Source: source, Target: target}
}

// PortEdge connects source to target through port.
func PortEdge(source, port, target string) *models.Edge {
	return &models.Edge{Source: source, SourcePort: port, Target: target}
}

// CreateTestWorkflow creates a draft workflow with the given graph.
func CreateTestWorkflow(nodes []*models.Node, edges []*models.Edge, overrides ...func(*models.WorkflowDefinition)) *models.WorkflowDefinition {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	def := &models.WorkflowDefinition{
		ID:          uuid.New().String(),
		CommunityID: "community-1",
		Name:        "Test Workflow",
		Status:      models.WorkflowStatusDraft,
		Version:     1,
		Nodes:       nodes,
		Edges:       edges,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, override := range overrides {
		override(def)
	}

	return def
}

// WithCommunity sets the owning community.
func WithCommunity(communityID string) func(*models.WorkflowDefinition) {
	return func(w *models.WorkflowDefinition) {
		w.CommunityID = communityID
	}
}

// WithStatus sets the workflow status.
func WithStatus(status models.WorkflowStatus) func(*models.WorkflowDefinition) {
	return func(w *models.WorkflowDefinition) {
		w.Status = status
	}
}

// CreateWeatherWorkflow creates the command trigger to send_message workflow used across tests.
func CreateWeatherWorkflow(overrides ...func(*models.WorkflowDefinition)) *models.WorkflowDefinition {
	return CreateTestWorkflow(
		[]*models.Node{
			CreateTestNode("trigger", CommandTrigger("!weather", "twitch")),
			CreateTestNode("action", SendMessage("Sunny for {{ .user }}")),
		},
		[]*models.Edge{Edge("trigger", "action")},
		overrides...,
	)
}

// WeatherEvent is the event matching CreateWeatherWorkflow.
func WeatherEvent() models.TriggerEvent {
	return models.TriggerEvent{
		Type:        models.TriggerTypeCommand,
		Platform:    "twitch",
		CommunityID: "community-1",
		Command:     "!weather",
		User:        "penguin",
		ChannelID:   "channel-1",
	}
}
