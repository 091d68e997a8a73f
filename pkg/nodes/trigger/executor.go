package trigger

import (
	"context"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/protocol"
)

// Executor records the matched event. Trigger nodes only run as the entry
// point of an execution.
type Executor struct{}

// New creates a trigger executor.
func New() *Executor {
	return &Executor{}
}

// Type returns the node type.
func (e *Executor) Type() models.NodeType {
	return models.NodeTypeTrigger
}

// Execute seeds the execution variables from the trigger input.
func (e *Executor) Execute(_ context.Context, req protocol.Request) (protocol.Result, error) {
	cfg, err := protocol.ConfigAs[*models.TriggerConfig](req.Node)
	if err != nil {
		return protocol.Result{}, err
	}

	vars := Variables(req.Context.TriggerInput)
	req.Context.SetVariables(req.Branch, vars)

	return protocol.Result{
		Port: models.PortDefault,
		Output: map[string]any{
			"matched":      true,
			"trigger_type": cfg.TriggerType,
			"variables":    vars,
		},
	}, nil
}
