package webhook

import (
	"testing"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func targets(ports map[string]string) func(string) (string, bool) {
	return func(port string) (string, bool) {
		target, ok := ports[port]

		return target, ok
	}
}

func TestWebhookNode_Visit(t *testing.T) {
	node, err := NewWebhookNode("hook", map[string]any{
		"url":              "https://crm.example.com/leads/{{.variables.lead}}",
		"method":           "put",
		"headers":          map[string]any{"X-Tenant": "{{.conversation.tenant_id}}"},
		"body":             map[string]any{"customer.name": "{{.variables.name}}", "source": 1},
		"response_mapping": map[string]any{"ticket": "data.id"},
	})
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("acme", "conv-1", "f", "hook", time.Now())
	execCtx.Variables["lead"] = "42"
	execCtx.Variables["name"] = "Ana"

	outcome, err := node.Visit(&protocol.Visit{
		Context: execCtx,
		Target:  targets(map[string]string{OutputPortSuccess: "thanks", OutputPortError: "sorry"}),
	})
	require.NoError(t, err)

	assert.True(t, outcome.Suspend)
	require.NotNil(t, outcome.Effect)
	assert.Equal(t, models.EffectCallWebhook, outcome.Effect.Kind)

	request := outcome.Effect.Webhook
	require.NotNil(t, request)
	assert.Equal(t, "https://crm.example.com/leads/42", request.URL)
	assert.Equal(t, "PUT", request.Method)
	assert.Equal(t, "acme", request.Headers["X-Tenant"])
	assert.Equal(t, "Ana", request.Fields["customer.name"])
	assert.Equal(t, float64(1), request.Fields["source"])
	assert.Equal(t, map[string]string{"ticket": "data.id"}, request.ResponseMapping)
	assert.Equal(t, "thanks", request.OnSuccess)
	assert.Equal(t, "sorry", request.OnError)
	assert.Equal(t, "conv-1", request.Payload["conversation_id"])

	assert.Equal(t, "pending", execCtx.Variables[models.ReservedKey(models.ReservedWebhook, "hook")])
}

func TestWebhookNode_DefaultPortIsSuccess(t *testing.T) {
	node, err := NewWebhookNode("hook", map[string]any{"url": "https://example.com"})
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("t", "c", "f", "hook", time.Now())

	outcome, err := node.Visit(&protocol.Visit{
		Context: execCtx,
		Target:  targets(map[string]string{models.PortDefault: "next"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "POST", outcome.Effect.Webhook.Method)
	assert.Equal(t, "next", outcome.Effect.Webhook.OnSuccess)
	assert.Empty(t, outcome.Effect.Webhook.OnError)
}

func TestWebhookNode_PendingRevisit(t *testing.T) {
	node, err := NewWebhookNode("hook", map[string]any{"url": "https://example.com"})
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("t", "c", "f", "hook", time.Now())

	first, err := node.Visit(&protocol.Visit{Context: execCtx})
	require.NoError(t, err)
	require.NotNil(t, first.Effect)

	second, err := node.Visit(&protocol.Visit{Context: execCtx})
	require.NoError(t, err)
	assert.True(t, second.Suspend)
	assert.Nil(t, second.Effect)
}

func TestNewWebhookNode_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
	}{
		{name: "missing url", config: map[string]any{}},
		{name: "relative url", config: map[string]any{"url": "/leads"}},
		{name: "bad method", config: map[string]any{"url": "https://example.com", "method": "TRACE"}},
		{name: "reserved mapping", config: map[string]any{"url": "https://example.com", "response_mapping": map[string]any{"__wait:x": "id"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWebhookNode("hook", tt.config)
			assert.Error(t, err)
		})
	}
}
