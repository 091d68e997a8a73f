// Package flow provides the split, merge and stop node executor. The engine
// owns branch scheduling and merge barriers; this executor only reports what
// the node asks for.
package flow

import (
	"context"
	"fmt"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/protocol"
)

// Executor runs flow-control nodes.
type Executor struct{}

// New creates a flow executor.
func New() *Executor {
	return &Executor{}
}

// Type returns the node type.
func (e *Executor) Type() models.NodeType {
	return models.NodeTypeFlow
}

// Execute returns the directive for the configured flow type.
func (e *Executor) Execute(_ context.Context, req protocol.Request) (protocol.Result, error) {
	cfg, err := protocol.ConfigAs[*models.FlowConfig](req.Node)
	if err != nil {
		return protocol.Result{}, err
	}

	switch cfg.FlowType {
	case models.FlowTypeSplit:
		return protocol.Result{
			Port:      models.PortDefault,
			Directive: protocol.DirectiveSplit,
			Output:    map[string]any{"split": true},
		}, nil

	case models.FlowTypeMerge:
		return protocol.Result{
			Port:      models.PortDefault,
			Directive: protocol.DirectiveContinue,
			Output:    map[string]any{"merged": true, "policy": cfg.MergePolicy()},
		}, nil

	case models.FlowTypeStop:
		return protocol.Result{
			Directive: protocol.DirectiveStop,
			Output:    map[string]any{"stopped": true},
		}, nil

	default:
		return protocol.Result{}, fmt.Errorf("%w: unsupported flow type %q", protocol.ErrInvalidConfig, cfg.FlowType)
	}
}
