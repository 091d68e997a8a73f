package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_UnmarshalJSON_TypedConfig(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		assert func(t *testing.T, node *Node)
	}{
		{
			name:  "trigger",
			input: `{"id":"t","type":"trigger","config":{"triggerType":"command","command":"!hi","platform":"discord"}}`,
			assert: func(t *testing.T, node *Node) {
				cfg, ok := node.Config.(*TriggerConfig)
				require.True(t, ok)
				assert.Equal(t, TriggerTypeCommand, cfg.TriggerType)
				assert.Equal(t, "!hi", cfg.Command)
				assert.Equal(t, "discord", cfg.Platform)
			},
		},
		{
			name:  "action with options",
			input: `{"id":"a","type":"action","config":{"actionType":"delay","duration":"1.5","continue_on_error":true}}`,
			assert: func(t *testing.T, node *Node) {
				cfg, ok := node.Config.(*ActionConfig)
				require.True(t, ok)
				assert.Equal(t, 1500*time.Millisecond, cfg.Duration.Std())
				assert.True(t, node.ContinueOnError())
			},
		},
		{
			name:  "loop",
			input: `{"id":"l","type":"loop","config":{"loopType":"while","condition":{"conditionType":"variable","field":"n","operator":"less_than","value":3}}}`,
			assert: func(t *testing.T, node *Node) {
				cfg, ok := node.Config.(*LoopConfig)
				require.True(t, ok)
				require.NotNil(t, cfg.Condition)
				assert.Equal(t, OperatorLessThan, cfg.Condition.Operator)
				assert.Equal(t, DefaultMaxIterations, cfg.Ceiling())
			},
		},
		{
			name:  "null config",
			input: `{"id":"f","type":"flow","config":null}`,
			assert: func(t *testing.T, node *Node) {
				cfg, ok := node.Config.(*FlowConfig)
				require.True(t, ok)
				assert.Equal(t, MergePolicyAll, cfg.MergePolicy())
				assert.False(t, node.ContinueOnError())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var node Node
			require.NoError(t, json.Unmarshal([]byte(tt.input), &node))
			tt.assert(t, &node)
		})
	}
}

func TestNode_UnmarshalJSON_Errors(t *testing.T) {
	var node Node

	err := json.Unmarshal([]byte(`{"id":"x","type":"teleport"}`), &node)
	require.ErrorIs(t, err, ErrUnknownNodeType)

	err = json.Unmarshal([]byte(`{"id":"a","type":"action","config":{"duration":"soon"}}`), &node)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid action config")
}

func TestNode_Clone(t *testing.T) {
	node := &Node{
		ID:   "a",
		Type: NodeTypeAction,
		Config: &ActionConfig{
			ActionType: ActionTypeCallModule,
			Module:     "points",
			Parameters: map[string]any{"amount": float64(5)},
		},
	}

	clone := node.Clone()
	clone.Config.(*ActionConfig).Parameters["amount"] = float64(10)

	assert.Equal(t, float64(5), node.Config.(*ActionConfig).Parameters["amount"])
	assert.Equal(t, "points", clone.Config.(*ActionConfig).Module)
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{input: `2`, expected: 2 * time.Second},
		{input: `"250ms"`, expected: 250 * time.Millisecond},
		{input: `"3"`, expected: 3 * time.Second},
		{input: `""`, expected: 0},
		{input: `null`, expected: 0},
		{input: `"later"`, wantErr: true},
		{input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, d.Std())
		})
	}
}

func TestAllowedPorts(t *testing.T) {
	stop := &Node{ID: "s", Type: NodeTypeFlow, Config: &FlowConfig{FlowType: FlowTypeStop}}
	split := &Node{ID: "p", Type: NodeTypeFlow, Config: &FlowConfig{FlowType: FlowTypeSplit}}
	cond := &Node{ID: "c", Type: NodeTypeCondition, Config: &ConditionConfig{}}

	assert.Empty(t, AllowedPorts(stop))
	assert.Equal(t, []string{PortDefault}, AllowedPorts(split))
	assert.Equal(t, []string{PortTrue, PortFalse, PortError}, AllowedPorts(cond))
	assert.Equal(t, []string{PortIteration, PortComplete}, RequiredPorts(NodeTypeLoop))
	assert.Nil(t, RequiredPorts(NodeTypeAction))
}
