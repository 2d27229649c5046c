package webhook

import (
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
)

// WebhookNodeFactory creates WebhookNode instances.
type WebhookNodeFactory struct{}

// Create creates a new WebhookNode instance.
func (f *WebhookNodeFactory) Create(id string, config map[string]any) (protocol.FlowNode, error) {
	return NewWebhookNode(id, config)
}

// Kind returns the node kind.
func (f *WebhookNodeFactory) Kind() models.NodeKind {
	return models.NodeKindWebhook
}

// Name returns the factory name.
func (f *WebhookNodeFactory) Name() string {
	return "Webhook"
}

// Description returns the factory description.
func (f *WebhookNodeFactory) Description() string {
	return "Calls an external HTTP endpoint in the background. The conversation continues on 'success' (or the default port) or on 'error' once the call completes."
}

// Schema returns the JSON schema for Webhook node configuration.
func (f *WebhookNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Endpoint URL, may be a template",
				"examples":    []string{"https://crm.example.com/leads", "https://api.example.com/orders/{{.variables.order_id}}"},
			},
			"method": map[string]any{
				"type":    "string",
				"enum":    []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
				"default": "POST",
			},
			"headers": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"body": map[string]any{
				"type":        "object",
				"description": "Extra payload fields keyed by JSON path",
				"examples":    []any{map[string]any{"customer.name": "{{.variables.name}}"}},
			},
			"response_mapping": map[string]any{
				"type":                 "object",
				"description":          "Variable name to response JSON path",
				"additionalProperties": map[string]any{"type": "string"},
				"examples":             []any{map[string]any{"ticket": "data.id"}},
			},
		},
		"required": []string{"url"},
	}
}

// NewWebhookNodeFactory creates a new factory instance.
func NewWebhookNodeFactory() protocol.NodeFactory {
	return &WebhookNodeFactory{}
}
