package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/testutil"
)

func requireProblem(t *testing.T, err error, code string) {
	t.Helper()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidWorkflow)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.True(t, validationErr.HasCode(code), "expected %s in %v", code, validationErr.Problems)
}

func loopWorkflow() *models.WorkflowDefinition {
	return testutil.CreateTestWorkflow(
		[]*models.Node{
			testutil.CreateTestNode("trigger", testutil.CommandTrigger("!count", "")),
			testutil.CreateTestNode("loop", testutil.Repeat(3)),
			testutil.CreateTestNode("body", testutil.SetVariable("tick", "{{ .index }}")),
			testutil.CreateTestNode("done", testutil.SendMessage("done")),
		},
		[]*models.Edge{
			testutil.Edge("trigger", "loop"),
			testutil.PortEdge("loop", models.PortIteration, "body"),
			testutil.Edge("body", "loop"),
			testutil.PortEdge("loop", models.PortComplete, "done"),
		},
	)
}

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, Validate(testutil.CreateWeatherWorkflow()))
	require.NoError(t, Validate(loopWorkflow()))
}

func TestValidate_NoTrigger(t *testing.T) {
	def := testutil.CreateTestWorkflow(
		[]*models.Node{testutil.CreateTestNode("action", testutil.SendMessage("hi"))},
		nil,
	)

	requireProblem(t, Validate(def), CodeNoTrigger)
}

func TestValidate_TriggerWithIncomingEdge(t *testing.T) {
	def := testutil.CreateWeatherWorkflow()
	def.Edges = append(def.Edges, testutil.Edge("action", "trigger"))

	requireProblem(t, Validate(def), CodeTriggerHasInput)
}

func TestValidate_MissingRequiredPort(t *testing.T) {
	def := testutil.CreateTestWorkflow(
		[]*models.Node{
			testutil.CreateTestNode("trigger", testutil.CommandTrigger("!check", "")),
			testutil.CreateTestNode("cond", testutil.Condition("amount", models.OperatorGreaterThan, "3")),
			testutil.CreateTestNode("yes", testutil.SendMessage("big")),
		},
		[]*models.Edge{
			testutil.Edge("trigger", "cond"),
			testutil.PortEdge("cond", models.PortTrue, "yes"),
		},
	)

	requireProblem(t, Validate(def), CodeMissingPort)

	loop := loopWorkflow()
	loop.Edges = loop.Edges[:3]
	loop.Nodes = loop.Nodes[:3]

	requireProblem(t, Validate(loop), CodeMissingPort)
}

func TestValidate_UnknownNode(t *testing.T) {
	def := testutil.CreateWeatherWorkflow()
	def.Edges = append(def.Edges, testutil.Edge("action", "ghost"))

	requireProblem(t, Validate(def), CodeUnknownNode)
}

func TestValidate_CycleOutsideLoop(t *testing.T) {
	def := testutil.CreateTestWorkflow(
		[]*models.Node{
			testutil.CreateTestNode("trigger", testutil.CommandTrigger("!ping", "")),
			testutil.CreateTestNode("a", testutil.SetVariable("a", 1)),
			testutil.CreateTestNode("b", testutil.SetVariable("b", 2)),
		},
		[]*models.Edge{
			testutil.Edge("trigger", "a"),
			testutil.Edge("a", "b"),
			testutil.Edge("b", "a"),
		},
	)

	requireProblem(t, Validate(def), CodeCycle)
}

func TestValidate_CycleThroughLoopCompletePort(t *testing.T) {
	def := loopWorkflow()
	def.Edges = append(def.Edges, testutil.Edge("done", "loop"))

	requireProblem(t, Validate(def), CodeCycle)
}

func TestValidate_Unreachable(t *testing.T) {
	def := testutil.CreateWeatherWorkflow()
	def.Nodes = append(def.Nodes, testutil.CreateTestNode("orphan", testutil.SendMessage("nobody")))

	requireProblem(t, Validate(def), CodeUnreachable)
}

func TestValidate_DuplicateNode(t *testing.T) {
	def := testutil.CreateWeatherWorkflow()
	def.Nodes = append(def.Nodes, testutil.CreateTestNode("action", testutil.SendMessage("again")))

	requireProblem(t, Validate(def), CodeDuplicateNode)
}

func TestValidate_InvalidPort(t *testing.T) {
	def := testutil.CreateWeatherWorkflow()
	def.Nodes = append(def.Nodes, testutil.CreateTestNode("next", testutil.SendMessage("next")))
	def.Edges = append(def.Edges, testutil.PortEdge("action", models.PortTrue, "next"))

	requireProblem(t, Validate(def), CodeInvalidPort)
}

func TestValidate_InvalidConfig(t *testing.T) {
	t.Run("send_message without message", func(t *testing.T) {
		def := testutil.CreateWeatherWorkflow()
		def.Nodes[1].Config = &models.ActionConfig{ActionType: models.ActionTypeSendMessage}

		requireProblem(t, Validate(def), CodeInvalidConfig)
	})

	t.Run("bad cron expression", func(t *testing.T) {
		def := testutil.CreateWeatherWorkflow()
		def.Nodes[0].Config = &models.TriggerConfig{TriggerType: models.TriggerTypeCron, CronExpression: "every day"}

		requireProblem(t, Validate(def), CodeInvalidConfig)
	})

	t.Run("config type does not match node type", func(t *testing.T) {
		def := testutil.CreateWeatherWorkflow()
		def.Nodes[1].Config = testutil.Split()

		requireProblem(t, Validate(def), CodeInvalidConfig)
	})
}

func TestValidate_MissingDefinitionFields(t *testing.T) {
	def := testutil.CreateWeatherWorkflow(testutil.WithCommunity(""))

	requireProblem(t, Validate(def), CodeInvalidDefinition)
}

func TestValidate_WaitForUnknownSource(t *testing.T) {
	def := testutil.CreateTestWorkflow(
		[]*models.Node{
			testutil.CreateTestNode("trigger", testutil.CommandTrigger("!go", "")),
			testutil.CreateTestNode("split", testutil.Split()),
			testutil.CreateTestNode("a", testutil.SetVariable("a", 1)),
			testutil.CreateTestNode("merge", testutil.Merge(models.MergePolicyAll, "a", "z")),
		},
		[]*models.Edge{
			testutil.Edge("trigger", "split"),
			testutil.Edge("split", "a"),
			testutil.Edge("a", "merge"),
		},
	)

	requireProblem(t, Validate(def), CodeInvalidWaitFor)
}

func TestValidate_StopHasNoOutputs(t *testing.T) {
	def := testutil.CreateTestWorkflow(
		[]*models.Node{
			testutil.CreateTestNode("trigger", testutil.CommandTrigger("!halt", "")),
			testutil.CreateTestNode("stop", testutil.Stop()),
			testutil.CreateTestNode("after", testutil.SendMessage("never")),
		},
		[]*models.Edge{
			testutil.Edge("trigger", "stop"),
			testutil.Edge("stop", "after"),
		},
	)

	requireProblem(t, Validate(def), CodeInvalidPort)
}

func TestValidate_Nil(t *testing.T) {
	requireProblem(t, Validate(nil), CodeInvalidDefinition)
}
