// Package protocol defines the interfaces and contracts for pluggable node executors.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

var (
	// ErrInvalidConfig is returned when a node carries a config of the wrong type.
	ErrInvalidConfig = errors.New("invalid node config")

	// ErrLoopLimitExceeded is returned by a while/for_each loop still running at its ceiling.
	ErrLoopLimitExceeded = errors.New("loop limit exceeded")
)

// Directive tells the engine how to continue after a flow-control node.
type Directive int

const (
	DirectiveContinue Directive = iota
	DirectiveSplit
	DirectiveStop
)

// Request carries everything an executor needs for one node invocation.
type Request struct {
	Node    *models.Node
	Context *models.ExecutionContext
	Branch  string
	Logger  *slog.Logger
}

// Result is the outcome of one node invocation.
type Result struct {
	Port      string
	Output    map[string]any
	Directive Directive
}

// NodeExecutor executes one node type.
type NodeExecutor interface {
	// Type returns the node type this executor handles
	Type() models.NodeType

	// Execute runs the node and returns the output port to follow
	Execute(ctx context.Context, req Request) (Result, error)
}

// ConfigAs returns the node's typed config.
func ConfigAs[T models.NodeConfig](node *models.Node) (T, error) {
	cfg, ok := node.Config.(T)
	if !ok {
		var zero T

		return zero, fmt.Errorf("%w: node %s has %T", ErrInvalidConfig, node.ID, node.Config)
	}

	return cfg, nil
}
