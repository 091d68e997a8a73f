package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

// Format is a serialization format for workflow definitions.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrMalformedDefinition is returned when a document is not a workflow definition.
var ErrMalformedDefinition = errors.New("malformed workflow definition")

var schemaLoader = gojsonschema.NewStringLoader(definitionSchema)

// FormatFromPath picks the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode reads a definition in the given format.
func Decode(data []byte, format Format) (*models.WorkflowDefinition, error) {
	if format == FormatYAML {
		return DecodeYAML(data)
	}

	return DecodeJSON(data)
}

// DecodeJSON checks the document shape and decodes it into the execution
// model. Editor-only fields such as node positions are dropped.
func DecodeJSON(data []byte) (*models.WorkflowDefinition, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDefinition, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrMalformedDefinition, strings.Join(problems, "; "))
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDefinition, err)
	}

	if def.Status == "" {
		def.Status = models.WorkflowStatusDraft
	}

	if def.Edges == nil {
		def.Edges = []*models.Edge{}
	}

	return &def, nil
}

// DecodeYAML converts a YAML document to JSON and decodes it.
func DecodeYAML(data []byte) (*models.WorkflowDefinition, error) {
	var document any
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDefinition, err)
	}

	jsonData, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDefinition, err)
	}

	return DecodeJSON(jsonData)
}

// Encode writes a definition in the given format.
func Encode(def *models.WorkflowDefinition, format Format) ([]byte, error) {
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode workflow: %w", err)
	}

	if format != FormatYAML {
		return data, nil
	}

	var document any
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to encode workflow: %w", err)
	}

	return yaml.Marshal(document)
}
