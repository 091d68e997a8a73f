package condition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/protocol"
)

func newContext(vars map[string]any) *models.ExecutionContext {
	ectx := models.NewExecutionContext("exec-1", "wf-1", models.TriggerEvent{Type: models.TriggerTypeMessage})
	ectx.SetVariables("main", vars)

	return ectx
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		operator string
		left     any
		right    any
		expected bool
	}{
		{"numeric greater than", models.OperatorGreaterThan, "10", "3", true},
		{"numeric not greater", models.OperatorGreaterThan, "3", "10", false},
		{"string fallback greater than", models.OperatorGreaterThan, "b", "a", true},
		{"mixed falls back to string", models.OperatorGreaterThan, "10", "abc", false},
		{"numeric less than", models.OperatorLessThan, 2.5, "3", true},
		{"contains substring", models.OperatorContains, "hello world", "world", true},
		{"contains missing", models.OperatorContains, "hello world", "moon", false},
		{"contains list member", models.OperatorContains, []any{"a", "b"}, "b", true},
		{"equals numeric forms", models.OperatorEquals, "1.0", 1, true},
		{"equals strings", models.OperatorEquals, "twitch", "twitch", true},
		{"not equals", models.OperatorNotEquals, "twitch", "discord", true},
		{"starts with", models.OperatorStartsWith, "!weather berlin", "!weather", true},
		{"ends with", models.OperatorEndsWith, "report.pdf", ".pdf", true},
		{"nil left", models.OperatorEquals, nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Compare(tt.operator, tt.left, tt.right)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCompare_UnsupportedOperator(t *testing.T) {
	_, err := Compare("matches", "a", "b")
	assert.Error(t, err)
}

func TestExecutor_Execute(t *testing.T) {
	executor := New()
	assert.Equal(t, models.NodeTypeCondition, executor.Type())

	t.Run("greater than routes to true", func(t *testing.T) {
		node := &models.Node{
			ID:   "cond",
			Type: models.NodeTypeCondition,
			Config: &models.ConditionConfig{
				ConditionType: "variable",
				Field:         "amount",
				Operator:      models.OperatorGreaterThan,
				Value:         "3",
			},
		}

		result, err := executor.Execute(context.Background(), protocol.Request{
			Node:    node,
			Context: newContext(map[string]any{"amount": "10"}),
		})
		require.NoError(t, err)
		assert.Equal(t, models.PortTrue, result.Port)
		assert.Equal(t, true, result.Output["condition_result"])
	})

	t.Run("message contains routes to false", func(t *testing.T) {
		node := &models.Node{
			ID:   "cond",
			Type: models.NodeTypeCondition,
			Config: &models.ConditionConfig{
				ConditionType: "message",
				Operator:      models.OperatorContains,
				Value:         "world",
			},
		}

		result, err := executor.Execute(context.Background(), protocol.Request{
			Node:    node,
			Context: newContext(map[string]any{"message": "hello moon"}),
		})
		require.NoError(t, err)
		assert.Equal(t, models.PortFalse, result.Port)
	})

	t.Run("templated value", func(t *testing.T) {
		node := &models.Node{
			ID:   "cond",
			Type: models.NodeTypeCondition,
			Config: &models.ConditionConfig{
				ConditionType: "user",
				Operator:      models.OperatorEquals,
				Value:         "{{ .owner }}",
			},
		}

		result, err := executor.Execute(context.Background(), protocol.Request{
			Node:    node,
			Context: newContext(map[string]any{"user": "penguin", "owner": "penguin"}),
		})
		require.NoError(t, err)
		assert.Equal(t, models.PortTrue, result.Port)
	})

	t.Run("wrong config type", func(t *testing.T) {
		node := &models.Node{ID: "cond", Type: models.NodeTypeCondition, Config: &models.ActionConfig{}}

		_, err := executor.Execute(context.Background(), protocol.Request{Node: node, Context: newContext(nil)})
		assert.ErrorIs(t, err, protocol.ErrInvalidConfig)
	})
}

func TestFieldPath(t *testing.T) {
	assert.Equal(t, "event.amount", FieldPath(&models.ConditionConfig{ConditionType: "variable", Field: "event.amount"}))
	assert.Equal(t, "args_text", FieldPath(&models.ConditionConfig{ConditionType: "args_text"}))
	assert.Equal(t, "", FieldPath(&models.ConditionConfig{ConditionType: "variable"}))
}
