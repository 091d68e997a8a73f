package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NodeType is the discriminator of the node tagged union.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeCondition NodeType = "condition"
	NodeTypeAction    NodeType = "action"
	NodeTypeData      NodeType = "data"
	NodeTypeLoop      NodeType = "loop"
	NodeTypeFlow      NodeType = "flow"
)

// ErrUnknownNodeType is returned when a node carries a type outside the six known kinds.
var ErrUnknownNodeType = errors.New("unknown node type")

// Node is a typed vertex of a workflow graph. UI position is not part of the model.
type Node struct {
	ID     string     `json:"id"              validate:"required"`
	Type   NodeType   `json:"type"            validate:"required,oneof=trigger condition action data loop flow"`
	Label  string     `json:"label,omitempty"`
	Config NodeConfig `json:"config"          validate:"-"`
}

// ContinueOnError reports whether a failing executor should not abort the execution.
func (n *Node) ContinueOnError() bool {
	if n.Config == nil {
		return false
	}

	return n.Config.NodeOptions().ContinueOnError
}

// UnmarshalJSON decodes the config into the typed struct selected by the node type.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID     string          `json:"id"`
		Type   NodeType        `json:"type"`
		Label  string          `json:"label"`
		Config json.RawMessage `json:"config"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	config, err := NewNodeConfig(raw.Type)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}

	if len(raw.Config) > 0 && string(raw.Config) != "null" {
		if err := json.Unmarshal(raw.Config, config); err != nil {
			return fmt.Errorf("node %s: invalid %s config: %w", raw.ID, raw.Type, err)
		}
	}

	n.ID = raw.ID
	n.Type = raw.Type
	n.Label = raw.Label
	n.Config = config

	return nil
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	data, err := json.Marshal(n)
	if err != nil {
		clone := *n

		return &clone
	}

	var clone Node
	if err := json.Unmarshal(data, &clone); err != nil {
		shallow := *n

		return &shallow
	}

	return &clone
}

// NodeResult represents the result of a node executor invocation.
type NodeResult struct {
	Port   string         `json:"port"`
	Output map[string]any `json:"output,omitempty"`
}
