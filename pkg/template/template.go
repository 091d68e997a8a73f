// Package template provides templating functionality for dynamic node configuration.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

// ContextData builds the template data for an execution. Variables are
// available both at the top level and under .vars.
func ContextData(executionCtx *models.ExecutionContext) map[string]any {
	vars := executionCtx.Variables()

	data := make(map[string]any, len(vars)+3)
	for k, v := range vars {
		data[k] = v
	}

	data["vars"] = vars
	data["trigger"] = executionCtx.TriggerInput
	data["execution"] = map[string]any{
		"id":           executionCtx.ID,
		"workflow_id":  executionCtx.WorkflowID,
		"community_id": executionCtx.CommunityID,
	}

	return data
}

// RenderWithContext renders input against the execution variables and coerces the result.
func RenderWithContext(input string, executionCtx *models.ExecutionContext) (any, error) {
	if !NeedsTemplating(input) {
		return input, nil
	}

	return Render(input, ContextData(executionCtx))
}

// RenderStringWithContext renders input against the execution variables without coercion.
func RenderStringWithContext(input string, executionCtx *models.ExecutionContext) (string, error) {
	if !NeedsTemplating(input) {
		return input, nil
	}

	return RenderString(input, ContextData(executionCtx))
}

// NeedsTemplating checks if a string contains template actions.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

// RenderString executes the template and returns the raw text.
func RenderString(templateStr string, data any) (string, error) {
	tmpl, err := template.
		New("render").
		Option("missingkey=zero").
		Funcs(funcs()).
		Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}

// Render executes the template and converts the text into JSON values,
// numbers or booleans when it looks like one.
func Render(templateStr string, data any) (any, error) {
	result, err := RenderString(templateStr, data)
	if err != nil {
		return nil, err
	}

	// Try to parse as JSON if it looks like JSON
	result = strings.TrimSpace(result)
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return jsonResult, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"now": func() string {
			return time.Now().UTC().Format(time.RFC3339)
		},
		"rand": func(max int) int {
			if max <= 0 {
				return 0
			}
			num := make([]byte, 1)
			_, err := rand.Read(num)
			if err != nil {
				return 0
			}

			return int(num[0]) % max
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"join": func(sep string, items []string) string {
			return strings.Join(items, sep)
		},
	}
}
