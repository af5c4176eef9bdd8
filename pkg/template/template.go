// Package template renders agent-to-agent message templates.
package template

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// MessageData is what a message template can reference: {{.from.name}},
// {{.input.message}}, {{.upstream}}, {{.execution.id}}.
type MessageData struct {
	From      map[string]any
	To        map[string]any
	Input     map[string]any
	Upstream  any
	Execution map[string]any
}

func (d MessageData) context() map[string]any {
	return map[string]any{
		"from":      d.From,
		"to":        d.To,
		"input":     d.Input,
		"upstream":  d.Upstream,
		"execution": d.Execution,
	}
}

// RenderMessage renders a message template. An empty template renders the
// upstream value as JSON, or the input when there is no upstream value.
func RenderMessage(templateStr string, data MessageData) (string, error) {
	if strings.TrimSpace(templateStr) == "" {
		payload := data.Upstream
		if payload == nil {
			payload = data.Input
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("failed to encode message payload: %w", err)
		}

		return string(raw), nil
	}

	return Render(templateStr, data.context())
}

func Render(templateStr string, data any) (string, error) {
	tmpl, err := template.
		New("message").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"json": func(v any) (string, error) {
				raw, err := json.Marshal(v)

				return string(raw), err
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
		}).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return strings.TrimSpace(buf.String()), nil
}
