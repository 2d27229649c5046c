// Package template renders message texts and variable values against a conversation's state.
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/KallebyX/simao-sub001/pkg/models"
)

var funcs = template.FuncMap{
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"trim":  strings.TrimSpace,
	"default": func(fallback, value any) any {
		if value == nil {
			return fallback
		}

		if s, ok := value.(string); ok && s == "" {
			return fallback
		}

		return value
	},
}

// DataFor builds the template data of a step. It only reads the context and
// the event, so rendering stays deterministic.
func DataFor(executionCtx *models.ExecutionContext, event models.InboundEvent) map[string]any {
	variables := executionCtx.PublicVariables()

	return map[string]any{
		"variables": variables,
		"vars":      variables,
		"event":     event.AsMap(),
		"conversation": map[string]any{
			"id":        executionCtx.ConversationID,
			"tenant_id": executionCtx.TenantID,
			"flow_id":   executionCtx.FlowID,
		},
	}
}

// NeedsTemplating reports whether input contains template actions.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

// Parse compiles a template so authoring errors surface at graph load.
func Parse(templateStr string) (*template.Template, error) {
	tmpl, err := template.New("flow").Funcs(funcs).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	return tmpl, nil
}

// RenderString executes templateStr and returns the raw text.
func RenderString(templateStr string, data any) (string, error) {
	if !NeedsTemplating(templateStr) {
		return templateStr, nil
	}

	tmpl, err := Parse(templateStr)
	if err != nil {
		return "", err
	}

	return Execute(tmpl, data)
}

// Execute runs a parsed template.
func Execute(tmpl *template.Template, data any) (string, error) {
	var buf strings.Builder

	err := tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// Render executes templateStr and coerces the output into JSON values,
// numbers or booleans when it looks like one.
func Render(templateStr string, data any) (any, error) {
	rendered, err := RenderString(templateStr, data)
	if err != nil {
		return nil, err
	}

	result := strings.TrimSpace(rendered)
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return nil, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}
