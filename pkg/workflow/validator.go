// Package workflow validates, versions, encodes and executes workflow definitions.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/nodes/trigger"
)

// ErrInvalidWorkflow is matched by every ValidationError.
var ErrInvalidWorkflow = errors.New("invalid workflow")

// Problem codes reported by Validate.
const (
	CodeInvalidDefinition = "invalid_definition"
	CodeInvalidConfig     = "invalid_config"
	CodeDuplicateNode     = "duplicate_node"
	CodeUnknownNode       = "unknown_node"
	CodeInvalidPort       = "invalid_port"
	CodeMissingPort       = "missing_port"
	CodeNoTrigger         = "no_trigger"
	CodeTriggerHasInput   = "trigger_has_input"
	CodeCycle             = "cycle"
	CodeUnreachable       = "unreachable"
	CodeInvalidWaitFor    = "invalid_wait_for"
)

// Problem is one structural or configuration defect.
type Problem struct {
	NodeID  string `json:"node_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	if p.NodeID == "" {
		return p.Message
	}

	return fmt.Sprintf("node %s: %s", p.NodeID, p.Message)
}

// ValidationError lists every problem found in a definition.
type ValidationError struct {
	Problems []Problem `json:"problems"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}

	return fmt.Sprintf("%s: %s", ErrInvalidWorkflow, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidWorkflow
}

// HasCode reports whether a problem with code was found.
func (e *ValidationError) HasCode(code string) bool {
	for _, p := range e.Problems {
		if p.Code == code {
			return true
		}
	}

	return false
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})

	return validate
}

// Validate checks a definition. It returns nil or a *ValidationError.
func Validate(def *models.WorkflowDefinition) error {
	if def == nil {
		return &ValidationError{Problems: []Problem{{Code: CodeInvalidDefinition, Message: "workflow is nil"}}}
	}

	v := &graphValidator{def: def, nodes: make(map[string]*models.Node, len(def.Nodes))}
	v.checkDefinition()
	v.checkNodes()
	v.checkEdges()
	v.checkTriggers()
	v.checkRequiredPorts()
	v.checkMerges()
	v.checkCycles()
	v.checkReachability()

	if len(v.problems) == 0 {
		return nil
	}

	return &ValidationError{Problems: v.problems}
}

type graphValidator struct {
	def      *models.WorkflowDefinition
	nodes    map[string]*models.Node
	problems []Problem
}

func (v *graphValidator) add(nodeID, code, format string, args ...any) {
	v.problems = append(v.problems, Problem{NodeID: nodeID, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (v *graphValidator) checkDefinition() {
	if err := structValidator().Struct(v.def); err != nil {
		for _, msg := range fieldErrors(err) {
			v.add("", CodeInvalidDefinition, "%s", msg)
		}
	}
}

func (v *graphValidator) checkNodes() {
	for _, node := range v.def.Nodes {
		if node == nil {
			v.add("", CodeInvalidDefinition, "null node")

			continue
		}

		if _, exists := v.nodes[node.ID]; exists {
			v.add(node.ID, CodeDuplicateNode, "duplicate node id")

			continue
		}

		v.nodes[node.ID] = node

		if err := structValidator().Struct(node); err != nil {
			for _, msg := range fieldErrors(err) {
				v.add(node.ID, CodeInvalidDefinition, "%s", msg)
			}
		}

		if node.Config == nil {
			v.add(node.ID, CodeInvalidConfig, "missing config")

			continue
		}

		if node.Config.NodeType() != node.Type {
			v.add(node.ID, CodeInvalidConfig, "config of type %s on %s node", node.Config.NodeType(), node.Type)

			continue
		}

		if err := structValidator().Struct(node.Config); err != nil {
			for _, msg := range fieldErrors(err) {
				v.add(node.ID, CodeInvalidConfig, "%s", msg)
			}
		}

		if cfg, ok := node.Config.(*models.TriggerConfig); ok && cfg.TriggerType == models.TriggerTypeCron && cfg.CronExpression != "" {
			if _, err := trigger.ParseCron(cfg.CronExpression); err != nil {
				v.add(node.ID, CodeInvalidConfig, "%v", err)
			}
		}
	}
}

func (v *graphValidator) checkEdges() {
	for _, edge := range v.def.Edges {
		if edge == nil {
			v.add("", CodeInvalidDefinition, "null edge")

			continue
		}

		source, ok := v.nodes[edge.Source]
		if !ok {
			v.add(edge.Source, CodeUnknownNode, "edge source %q does not exist", edge.Source)
		}

		if _, ok := v.nodes[edge.Target]; !ok {
			v.add(edge.Target, CodeUnknownNode, "edge target %q does not exist", edge.Target)
		}

		if source != nil && !contains(models.AllowedPorts(source), edge.Port()) {
			v.add(source.ID, CodeInvalidPort, "port %q is not valid for %s node", edge.Port(), source.Type)
		}
	}
}

func (v *graphValidator) checkTriggers() {
	triggers := v.def.TriggerNodes()
	if len(triggers) == 0 {
		v.add("", CodeNoTrigger, "workflow has no trigger node")

		return
	}

	for _, node := range triggers {
		if len(v.def.IncomingEdges(node.ID)) > 0 {
			v.add(node.ID, CodeTriggerHasInput, "trigger node has incoming edges")
		}
	}
}

func (v *graphValidator) checkRequiredPorts() {
	for _, node := range v.def.Nodes {
		if node == nil {
			continue
		}

		for _, port := range models.RequiredPorts(node.Type) {
			if len(v.def.OutgoingEdges(node.ID, port)) == 0 {
				v.add(node.ID, CodeMissingPort, "required port %q is not connected", port)
			}
		}
	}
}

func (v *graphValidator) checkMerges() {
	for _, node := range v.def.Nodes {
		if node == nil {
			continue
		}

		cfg, ok := node.Config.(*models.FlowConfig)
		if !ok || cfg.FlowType != models.FlowTypeMerge {
			continue
		}

		inbound := make(map[string]bool)
		for _, edge := range v.def.IncomingEdges(node.ID) {
			inbound[edge.Source] = true
		}

		for _, source := range cfg.WaitFor {
			if !inbound[source] {
				v.add(node.ID, CodeInvalidWaitFor, "waitFor %q has no edge into the merge", source)
			}
		}
	}
}

// checkCycles rejects any cycle left once loop "iteration" edges are removed.
func (v *graphValidator) checkCycles() {
	const (
		white = iota
		grey
		black
	)

	color := make(map[string]int, len(v.nodes))
	adjacency := make(map[string][]string, len(v.nodes))

	for _, edge := range v.def.Edges {
		if edge == nil {
			continue
		}

		if source, ok := v.nodes[edge.Source]; ok && source.Type == models.NodeTypeLoop && edge.Port() == models.PortIteration {
			continue
		}

		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	var visit func(id string)
	visit = func(id string) {
		color[id] = grey

		for _, next := range adjacency[id] {
			switch color[next] {
			case grey:
				v.add(next, CodeCycle, "cycle through %s -> %s outside a loop body", id, next)
			case white:
				if _, ok := v.nodes[next]; ok {
					visit(next)
				}
			}
		}

		color[id] = black
	}

	for _, node := range v.def.Nodes {
		if node != nil && color[node.ID] == white {
			visit(node.ID)
		}
	}
}

func (v *graphValidator) checkReachability() {
	reached := make(map[string]bool, len(v.nodes))

	var queue []string

	for _, node := range v.def.TriggerNodes() {
		reached[node.ID] = true
		queue = append(queue, node.ID)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, edge := range v.def.Edges {
			if edge == nil || edge.Source != id || reached[edge.Target] {
				continue
			}

			reached[edge.Target] = true
			queue = append(queue, edge.Target)
		}
	}

	for _, node := range v.def.Nodes {
		if node != nil && !reached[node.ID] && node.Type != models.NodeTypeTrigger {
			v.add(node.ID, CodeUnreachable, "node is not reachable from any trigger")
		}
	}
}

func fieldErrors(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	messages := make([]string, len(validationErrors))
	for i, fe := range validationErrors {
		if fe.Param() != "" {
			messages[i] = fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
		} else {
			messages[i] = fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
		}
	}

	return messages
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}

	return false
}
