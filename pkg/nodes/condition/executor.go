// Package condition provides the branching node executor.
package condition

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/protocol"
	"github.com/penguintechinc/waddlebot-sub014/pkg/template"
)

// Executor routes execution to the "true" or "false" port.
type Executor struct{}

// New creates a condition executor.
func New() *Executor {
	return &Executor{}
}

// Type returns the node type.
func (e *Executor) Type() models.NodeType {
	return models.NodeTypeCondition
}

// Execute evaluates the configured comparison against the execution context.
func (e *Executor) Execute(_ context.Context, req protocol.Request) (protocol.Result, error) {
	cfg, err := protocol.ConfigAs[*models.ConditionConfig](req.Node)
	if err != nil {
		return protocol.Result{}, err
	}

	left, right, result, err := evaluate(cfg, req.Context)
	if err != nil {
		return protocol.Result{}, err
	}

	port := models.PortFalse
	if result {
		port = models.PortTrue
	}

	return protocol.Result{
		Port: port,
		Output: map[string]any{
			"condition_result": result,
			"left":             left,
			"right":            right,
		},
	}, nil
}

// Evaluate resolves the field, renders the value and applies the operator.
func Evaluate(cfg *models.ConditionConfig, executionCtx *models.ExecutionContext) (bool, error) {
	_, _, result, err := evaluate(cfg, executionCtx)

	return result, err
}

func evaluate(cfg *models.ConditionConfig, executionCtx *models.ExecutionContext) (any, any, bool, error) {
	left, _ := executionCtx.Variable(FieldPath(cfg))

	right := cfg.Value
	if s, ok := right.(string); ok {
		rendered, err := template.RenderStringWithContext(s, executionCtx)
		if err != nil {
			return left, right, false, fmt.Errorf("condition value: %w", err)
		}

		right = rendered
	}

	result, err := Compare(cfg.Operator, left, right)

	return left, right, result, err
}

// FieldPath returns the variable path compared by the condition.
func FieldPath(cfg *models.ConditionConfig) string {
	if cfg.Field != "" {
		return cfg.Field
	}

	switch cfg.ConditionType {
	case "message", "user", "platform", "command", "args_text":
		return cfg.ConditionType
	default:
		return ""
	}
}

// Compare applies operator to left and right. Numeric operators parse both
// operands as numbers and fall back to string comparison when either fails.
func Compare(operator string, left, right any) (bool, error) {
	switch operator {
	case models.OperatorEquals:
		return equal(left, right), nil
	case models.OperatorNotEquals:
		return !equal(left, right), nil
	case models.OperatorContains:
		return contains(left, right), nil
	case models.OperatorStartsWith:
		return strings.HasPrefix(toString(left), toString(right)), nil
	case models.OperatorEndsWith:
		return strings.HasSuffix(toString(left), toString(right)), nil
	case models.OperatorGreaterThan:
		if l, r, ok := numbers(left, right); ok {
			return l > r, nil
		}

		return toString(left) > toString(right), nil
	case models.OperatorLessThan:
		if l, r, ok := numbers(left, right); ok {
			return l < r, nil
		}

		return toString(left) < toString(right), nil
	default:
		return false, fmt.Errorf("unsupported operator %q", operator)
	}
}

func equal(left, right any) bool {
	if l, r, ok := numbers(left, right); ok {
		return l == r
	}

	return toString(left) == toString(right)
}

func contains(left, right any) bool {
	needle := toString(right)

	switch v := left.(type) {
	case []any:
		for _, item := range v {
			if toString(item) == needle {
				return true
			}
		}

		return false
	case []string:
		for _, item := range v {
			if item == needle {
				return true
			}
		}

		return false
	default:
		return strings.Contains(toString(left), needle)
	}
}

func numbers(left, right any) (float64, float64, bool) {
	l, ok := toFloat(left)
	if !ok {
		return 0, 0, false
	}

	r, ok := toFloat(right)
	if !ok {
		return 0, 0, false
	}

	return l, r, true
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return f, err == nil
	default:
		return 0, false
	}
}

func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []string:
		return strings.Join(v, " ")
	default:
		return fmt.Sprint(v)
	}
}
