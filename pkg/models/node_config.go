package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DefaultMaxIterations is the loop ceiling used when a loop node does not configure one.
const DefaultMaxIterations = 100

// Trigger types.
const (
	TriggerTypeCommand = "command"
	TriggerTypeMessage = "message"
	TriggerTypeCron    = "cron"
	TriggerTypeEvent   = "event"
)

// Condition operators.
const (
	OperatorEquals      = "equals"
	OperatorNotEquals   = "not_equals"
	OperatorContains    = "contains"
	OperatorStartsWith  = "starts_with"
	OperatorEndsWith    = "ends_with"
	OperatorGreaterThan = "greater_than"
	OperatorLessThan    = "less_than"
)

// Action types.
const (
	ActionTypeSendMessage = "send_message"
	ActionTypeCallModule  = "call_module"
	ActionTypeHTTPRequest = "http_request"
	ActionTypeWebhook     = "webhook"
	ActionTypeDelay       = "delay"
)

// Data types.
const (
	DataTypeGetVariable = "get_variable"
	DataTypeSetVariable = "set_variable"
	DataTypeQuery       = "query"
	DataTypeTransform   = "transform"
	DataTypeParseJSON   = "parse_json"
)

// Loop types.
const (
	LoopTypeForEach = "for_each"
	LoopTypeWhile   = "while"
	LoopTypeRepeat  = "repeat"
)

// Flow types and merge policies.
const (
	FlowTypeSplit = "split"
	FlowTypeMerge = "merge"
	FlowTypeStop  = "stop"

	MergePolicyAll = "all"
	MergePolicyAny = "any"
)

// NodeConfig is implemented by every typed node configuration.
type NodeConfig interface {
	NodeType() NodeType
	NodeOptions() Options
}

// Options holds settings shared by every node type.
type Options struct {
	ContinueOnError bool `json:"continue_on_error,omitempty"`
}

// NodeOptions returns the shared options.
func (o Options) NodeOptions() Options { return o }

// NewNodeConfig returns an empty typed config for the node type.
//
//nolint:ireturn // tagged union constructor
func NewNodeConfig(nodeType NodeType) (NodeConfig, error) {
	switch nodeType {
	case NodeTypeTrigger:
		return &TriggerConfig{}, nil
	case NodeTypeCondition:
		return &ConditionConfig{}, nil
	case NodeTypeAction:
		return &ActionConfig{}, nil
	case NodeTypeData:
		return &DataConfig{}, nil
	case NodeTypeLoop:
		return &LoopConfig{}, nil
	case NodeTypeFlow:
		return &FlowConfig{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, nodeType)
	}
}

// TriggerConfig matches incoming events.
type TriggerConfig struct {
	Options

	TriggerType    string `json:"triggerType"              validate:"required,oneof=command message cron event"`
	Platform       string `json:"platform,omitempty"`
	Command        string `json:"command,omitempty"        validate:"required_if=TriggerType command"`
	CronExpression string `json:"cronExpression,omitempty" validate:"required_if=TriggerType cron"`
	EventName      string `json:"eventName,omitempty"      validate:"required_if=TriggerType event"`
	Contains       string `json:"contains,omitempty"`
}

func (c *TriggerConfig) NodeType() NodeType { return NodeTypeTrigger }

// ConditionConfig compares a context-resolved field against a configured value.
type ConditionConfig struct {
	Options

	ConditionType string `json:"conditionType"   validate:"required,oneof=variable message user platform command args_text"`
	Field         string `json:"field,omitempty" validate:"required_if=ConditionType variable"`
	Operator      string `json:"operator"        validate:"required,oneof=equals not_equals contains starts_with ends_with greater_than less_than"`
	Value         any    `json:"value"`
}

func (c *ConditionConfig) NodeType() NodeType { return NodeTypeCondition }

// ActionConfig dispatches to an external collaborator.
type ActionConfig struct {
	Options

	ActionType   string            `json:"actionType"             validate:"required,oneof=send_message call_module http_request webhook delay"`
	Message      string            `json:"message,omitempty"      validate:"required_if=ActionType send_message"`
	Platform     string            `json:"platform,omitempty"`
	ChannelID    string            `json:"channelId,omitempty"`
	Module       string            `json:"module,omitempty"       validate:"required_if=ActionType call_module"`
	ModuleAction string            `json:"moduleAction,omitempty"`
	Parameters   map[string]any    `json:"parameters,omitempty"`
	URL          string            `json:"url,omitempty"          validate:"required_if=ActionType http_request,required_if=ActionType webhook"`
	Method       string            `json:"method,omitempty"       validate:"omitempty,oneof=GET POST PUT PATCH DELETE get post put patch delete"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         string            `json:"body,omitempty"`
	Duration     Duration          `json:"duration,omitempty"     validate:"required_if=ActionType delay,gte=0"`
	Timeout      Duration          `json:"timeout,omitempty"      validate:"gte=0"`
}

func (c *ActionConfig) NodeType() NodeType { return NodeTypeAction }

// DataConfig reads, writes or reshapes workflow-scoped variables.
type DataConfig struct {
	Options

	DataType   string         `json:"dataType"             validate:"required,oneof=get_variable set_variable query transform parse_json"`
	Source     string         `json:"source,omitempty"     validate:"required_if=DataType get_variable,required_if=DataType parse_json"`
	Variable   string         `json:"variable,omitempty"   validate:"required_if=DataType set_variable,required_if=DataType query"`
	Value      any            `json:"value,omitempty"`
	Query      string         `json:"query,omitempty"      validate:"required_if=DataType query"`
	Params     []string       `json:"params,omitempty"`
	Expression string         `json:"expression,omitempty" validate:"required_if=DataType transform"`
	Schema     map[string]any `json:"schema,omitempty"`
}

func (c *DataConfig) NodeType() NodeType { return NodeTypeData }

// LoopConfig drives iteration over a loop body.
type LoopConfig struct {
	Options

	LoopType      string           `json:"loopType"               validate:"required,oneof=for_each while repeat"`
	MaxIterations int              `json:"maxIterations,omitempty" validate:"gte=0"`
	Count         int              `json:"count,omitempty"         validate:"gte=0"`
	Items         string           `json:"items,omitempty"         validate:"required_if=LoopType for_each"`
	ItemVariable  string           `json:"itemVariable,omitempty"`
	Condition     *ConditionConfig `json:"condition,omitempty"     validate:"required_if=LoopType while"`
}

func (c *LoopConfig) NodeType() NodeType { return NodeTypeLoop }

// Ceiling returns the iteration ceiling applied to every loop type.
func (c *LoopConfig) Ceiling() int {
	if c.MaxIterations <= 0 {
		return DefaultMaxIterations
	}

	return c.MaxIterations
}

// FlowConfig controls fan-out, fan-in and early termination.
type FlowConfig struct {
	Options

	FlowType string   `json:"flowType"          validate:"required,oneof=split merge stop"`
	Policy   string   `json:"policy,omitempty"  validate:"omitempty,oneof=all any"`
	WaitFor  []string `json:"waitFor,omitempty"`
}

func (c *FlowConfig) NodeType() NodeType { return NodeTypeFlow }

// MergePolicy returns the configured policy, defaulting to all-of.
func (c *FlowConfig) MergePolicy() string {
	if c.Policy == "" {
		return MergePolicyAll
	}

	return c.Policy
}

// Duration accepts either a number of seconds or a Go duration string.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}

	switch v := value.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(v * float64(time.Second))
	case string:
		if v == "" {
			*d = 0

			return nil
		}

		if seconds, err := strconv.ParseFloat(v, 64); err == nil {
			*d = Duration(seconds * float64(time.Second))

			return nil
		}

		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}

		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration type %T", value)
	}

	return nil
}
