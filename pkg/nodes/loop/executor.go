// Package loop provides the iteration node executor.
package loop

import (
	"context"
	"fmt"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/nodes/condition"
	"github.com/penguintechinc/waddlebot-sub014/pkg/protocol"
)

const (
	defaultItemVariable = "item"
	indexVariable       = "index"
)

// Executor emits "iteration" while its predicate holds and "complete" afterwards.
// The iteration counter lives in the execution context, keyed by node id.
type Executor struct{}

// New creates a loop executor.
func New() *Executor {
	return &Executor{}
}

// Type returns the node type.
func (e *Executor) Type() models.NodeType {
	return models.NodeTypeLoop
}

// Execute advances the loop by one step.
func (e *Executor) Execute(_ context.Context, req protocol.Request) (protocol.Result, error) {
	cfg, err := protocol.ConfigAs[*models.LoopConfig](req.Node)
	if err != nil {
		return protocol.Result{}, err
	}

	ectx := req.Context
	counter := ectx.LoopCounter(req.Node.ID)
	ceiling := cfg.Ceiling()

	switch cfg.LoopType {
	case models.LoopTypeRepeat:
		limit := ceiling
		if cfg.Count > 0 && cfg.Count < ceiling {
			limit = cfg.Count
		}

		if counter < limit {
			return e.iterate(req, counter, nil), nil
		}

		return e.complete(req, counter), nil

	case models.LoopTypeForEach:
		items, err := resolveItems(ectx, cfg.Items)
		if err != nil {
			ectx.SetLoopCounter(req.Node.ID, 0)

			return protocol.Result{}, err
		}

		if counter >= len(items) {
			return e.complete(req, counter), nil
		}

		if counter >= ceiling {
			ectx.SetLoopCounter(req.Node.ID, 0)

			return protocol.Result{}, fmt.Errorf("%w: %d items exceed ceiling %d", protocol.ErrLoopLimitExceeded, len(items), ceiling)
		}

		itemVariable := cfg.ItemVariable
		if itemVariable == "" {
			itemVariable = defaultItemVariable
		}

		ectx.SetVariables(req.Branch, map[string]any{
			itemVariable:  items[counter],
			indexVariable: counter,
		})

		return e.iterate(req, counter, items[counter]), nil

	case models.LoopTypeWhile:
		if cfg.Condition == nil {
			return protocol.Result{}, fmt.Errorf("%w: while loop %s has no condition", protocol.ErrInvalidConfig, req.Node.ID)
		}

		holds, err := condition.Evaluate(cfg.Condition, ectx)
		if err != nil {
			ectx.SetLoopCounter(req.Node.ID, 0)

			return protocol.Result{}, err
		}

		if !holds {
			return e.complete(req, counter), nil
		}

		if counter >= ceiling {
			ectx.SetLoopCounter(req.Node.ID, 0)

			return protocol.Result{}, fmt.Errorf("%w: condition still true after %d iterations", protocol.ErrLoopLimitExceeded, ceiling)
		}

		return e.iterate(req, counter, nil), nil

	default:
		return protocol.Result{}, fmt.Errorf("%w: unsupported loop type %q", protocol.ErrInvalidConfig, cfg.LoopType)
	}
}

func (e *Executor) iterate(req protocol.Request, counter int, item any) protocol.Result {
	req.Context.SetLoopCounter(req.Node.ID, counter+1)

	output := map[string]any{
		"iteration": counter + 1,
		"index":     counter,
	}
	if item != nil {
		output["item"] = item
	}

	return protocol.Result{Port: models.PortIteration, Output: output}
}

func (e *Executor) complete(req protocol.Request, counter int) protocol.Result {
	req.Context.SetLoopCounter(req.Node.ID, 0)

	return protocol.Result{
		Port:   models.PortComplete,
		Output: map[string]any{"iterations": counter},
	}
}

func resolveItems(ectx *models.ExecutionContext, path string) ([]any, error) {
	value, ok := ectx.Variable(path)
	if !ok {
		return nil, fmt.Errorf("loop items %q not found", path)
	}

	switch v := value.(type) {
	case []any:
		return v, nil
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}

		return items, nil
	case []map[string]any:
		items := make([]any, len(v))
		for i, m := range v {
			items[i] = m
		}

		return items, nil
	default:
		return nil, fmt.Errorf("loop items %q is %T, not a list", path, value)
	}
}
