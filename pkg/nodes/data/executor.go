// Package data provides the node executor for workflow-scoped variables.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/blues/jsonata-go"
	"github.com/xeipuuv/gojsonschema"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
	"github.com/penguintechinc/waddlebot-sub014/pkg/protocol"
	"github.com/penguintechinc/waddlebot-sub014/pkg/template"
)

var (
	ErrVariableNotFound = errors.New("variable not found")
	ErrNoQueryRunner    = errors.New("no query runner configured")
	ErrSchemaMismatch   = errors.New("document does not match schema")
)

// Executor reads, writes and reshapes execution variables.
type Executor struct {
	queries protocol.QueryRunner
}

// New creates a data executor. queries may be nil when no query nodes are used.
func New(queries protocol.QueryRunner) *Executor {
	return &Executor{queries: queries}
}

// Type returns the node type.
func (e *Executor) Type() models.NodeType {
	return models.NodeTypeData
}

// Execute applies the configured data operation.
func (e *Executor) Execute(ctx context.Context, req protocol.Request) (protocol.Result, error) {
	cfg, err := protocol.ConfigAs[*models.DataConfig](req.Node)
	if err != nil {
		return protocol.Result{}, err
	}

	var output map[string]any

	switch cfg.DataType {
	case models.DataTypeGetVariable:
		output, err = e.getVariable(cfg, req)
	case models.DataTypeSetVariable:
		output, err = e.setVariable(cfg, req)
	case models.DataTypeQuery:
		output, err = e.query(ctx, cfg, req)
	case models.DataTypeTransform:
		output, err = e.transform(cfg, req)
	case models.DataTypeParseJSON:
		output, err = e.parseJSON(cfg, req)
	default:
		return protocol.Result{}, fmt.Errorf("%w: unsupported data type %q", protocol.ErrInvalidConfig, cfg.DataType)
	}

	if err != nil {
		return protocol.Result{}, fmt.Errorf("%s: %w", cfg.DataType, err)
	}

	return protocol.Result{Port: models.PortDefault, Output: output}, nil
}

func (e *Executor) getVariable(cfg *models.DataConfig, req protocol.Request) (map[string]any, error) {
	value, ok := req.Context.Variable(cfg.Source)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrVariableNotFound, cfg.Source)
	}

	if cfg.Variable != "" {
		req.Context.SetVariable(req.Branch, cfg.Variable, value)
	}

	return map[string]any{"value": value}, nil
}

func (e *Executor) setVariable(cfg *models.DataConfig, req protocol.Request) (map[string]any, error) {
	value := cfg.Value

	if s, ok := value.(string); ok {
		rendered, err := template.RenderWithContext(s, req.Context)
		if err != nil {
			return nil, err
		}

		value = rendered
	}

	req.Context.SetVariable(req.Branch, cfg.Variable, value)

	return map[string]any{
		"variable": cfg.Variable,
		"value":    value,
		"branch":   req.Branch,
	}, nil
}

func (e *Executor) query(ctx context.Context, cfg *models.DataConfig, req protocol.Request) (map[string]any, error) {
	if e.queries == nil {
		return nil, ErrNoQueryRunner
	}

	args := make([]any, 0, len(cfg.Params))

	for i, param := range cfg.Params {
		rendered, err := template.RenderStringWithContext(param, req.Context)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i+1, err)
		}

		args = append(args, rendered)
	}

	rows, err := e.queries.Query(ctx, cfg.Query, args...)
	if err != nil {
		return nil, err
	}

	items := make([]any, len(rows))
	for i, row := range rows {
		items[i] = row
	}

	req.Context.SetVariable(req.Branch, cfg.Variable, items)

	return map[string]any{
		"variable": cfg.Variable,
		"count":    len(items),
	}, nil
}

func (e *Executor) transform(cfg *models.DataConfig, req protocol.Request) (map[string]any, error) {
	expr, err := jsonata.Compile(cfg.Expression)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression '%s': %w", cfg.Expression, err)
	}

	input := any(req.Context.Variables())
	if cfg.Source != "" {
		value, ok := req.Context.Variable(cfg.Source)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrVariableNotFound, cfg.Source)
		}

		input = value
	}

	result, err := expr.Eval(input)
	if err != nil && !errors.Is(err, jsonata.ErrUndefined) {
		return nil, fmt.Errorf("failed to evaluate expression '%s': %w", cfg.Expression, err)
	}

	if cfg.Variable != "" {
		req.Context.SetVariable(req.Branch, cfg.Variable, result)
	}

	return map[string]any{"value": result}, nil
}

func (e *Executor) parseJSON(cfg *models.DataConfig, req protocol.Request) (map[string]any, error) {
	raw, ok := req.Context.Variable(cfg.Source)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrVariableNotFound, cfg.Source)
	}

	var text string

	switch v := raw.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		return nil, fmt.Errorf("source %q is %T, not a JSON string", cfg.Source, raw)
	}

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("malformed JSON in %q: %w", cfg.Source, err)
	}

	if len(cfg.Schema) > 0 {
		if err := validateSchema(cfg.Schema, parsed); err != nil {
			return nil, err
		}
	}

	if cfg.Variable != "" {
		req.Context.SetVariable(req.Branch, cfg.Variable, parsed)
	} else if object, ok := parsed.(map[string]any); ok {
		req.Context.SetVariables(req.Branch, object)
	}

	return map[string]any{"value": parsed}, nil
}

func validateSchema(schema map[string]any, document any) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrSchemaMismatch, strings.Join(problems, "; "))
	}

	return nil
}
