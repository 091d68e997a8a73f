// Package models defines the core domain models for node-based community workflows.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "draft"     // Editable, may be invalid
	WorkflowStatusPublished WorkflowStatus = "published" // Immutable, validated, executable
)

// WorkflowDefinition is a directed graph of typed nodes owned by a community.
type WorkflowDefinition struct {
	ID          string         `json:"id"`
	CommunityID string         `json:"community_id"           validate:"required"`
	Name        string         `json:"name"                   validate:"required,min=1"`
	Status      WorkflowStatus `json:"status"                 validate:"required,oneof=draft published"`
	Version     int            `json:"version"`
	ParentID    string         `json:"parent_id,omitempty"` // Version this one was derived from
	Nodes       []*Node        `json:"nodes"`
	Edges       []*Edge        `json:"edges"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
}

// IsPublished reports whether the definition is an immutable published version.
func (w *WorkflowDefinition) IsPublished() bool {
	return w.Status == WorkflowStatusPublished
}

// NodeByID returns the node with the given id.
func (w *WorkflowDefinition) NodeByID(id string) (*Node, bool) {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// OutgoingEdges returns the edges leaving nodeID through port, in declaration order.
func (w *WorkflowDefinition) OutgoingEdges(nodeID, port string) []*Edge {
	var edges []*Edge

	for _, edge := range w.Edges {
		if edge.Source == nodeID && edge.Port() == port {
			edges = append(edges, edge)
		}
	}

	return edges
}

// IncomingEdges returns the edges arriving at nodeID, in declaration order.
func (w *WorkflowDefinition) IncomingEdges(nodeID string) []*Edge {
	var edges []*Edge

	for _, edge := range w.Edges {
		if edge.Target == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// TriggerNodes returns the trigger nodes in declaration order.
func (w *WorkflowDefinition) TriggerNodes() []*Node {
	var triggers []*Node

	for _, node := range w.Nodes {
		if node.Type == NodeTypeTrigger {
			triggers = append(triggers, node)
		}
	}

	return triggers
}

// Clone returns a deep copy of the definition's graph and metadata.
func (w *WorkflowDefinition) Clone() *WorkflowDefinition {
	clone := *w

	if w.PublishedAt != nil {
		publishedAt := *w.PublishedAt
		clone.PublishedAt = &publishedAt
	}

	clone.Nodes = make([]*Node, len(w.Nodes))
	for i, node := range w.Nodes {
		clone.Nodes[i] = node.Clone()
	}

	clone.Edges = make([]*Edge, len(w.Edges))
	for i, edge := range w.Edges {
		e := *edge
		clone.Edges[i] = &e
	}

	return &clone
}

// Edge connects a named output port of a source node to a target node.
type Edge struct {
	Source     string `json:"source"                validate:"required"`
	SourcePort string `json:"source_port,omitempty"`
	Target     string `json:"target"                validate:"required"`
}

// Port returns the edge's source port, defaulting to PortDefault.
func (e *Edge) Port() string {
	if e.SourcePort == "" {
		return PortDefault
	}

	return e.SourcePort
}
