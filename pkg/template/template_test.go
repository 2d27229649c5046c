package template

import (
	"testing"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SimpleExpression(t *testing.T) {
	data := map[string]any{
		"name":  "John",
		"age":   30,
		"isNew": true,
	}

	result, err := Render("{{ .name }}", data)
	require.NoError(t, err)
	assert.Equal(t, "John", result)

	result, err = Render("{{ .isNew }}", data)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	// Numbers always come back as float64
	result, err = Render("{{ .age }}", data)
	require.NoError(t, err)
	assert.Equal(t, 30.0, result)
}

func TestRender_JSONObject(t *testing.T) {
	data := map[string]any{
		"user":   map[string]any{"name": "Alice"},
		"orders": []any{1, 2},
	}

	result, err := Render(`{"user_name": "{{ .user.name }}", "total_orders": {{ len .orders }}}`, data)
	require.NoError(t, err)

	resultMap, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alice", resultMap["user_name"])
	assert.Equal(t, 2.0, resultMap["total_orders"])
}

func TestRenderString(t *testing.T) {
	data := map[string]any{"variables": map[string]any{"name": "Ana"}}

	result, err := RenderString("Olá {{ .variables.name | upper }}!", data)
	require.NoError(t, err)
	assert.Equal(t, "Olá ANA!", result)

	result, err = RenderString("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", result)

	result, err = RenderString(`{{ default "cliente" .variables.missing }}`, data)
	require.NoError(t, err)
	assert.Equal(t, "cliente", result)
}

func TestRender_InvalidTemplate(t *testing.T) {
	_, err := Render("{{ .name ", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse template")

	_, err = Parse("{{ if }}")
	require.Error(t, err)
}

func TestDataFor(t *testing.T) {
	execCtx := models.NewExecutionContext("tenant-1", "conv-1", "flow-1", "n1", time.Now())
	execCtx.Variables["age"] = 21
	execCtx.Variables[models.ReservedKey(models.ReservedRandom, "n1")] = "A"

	data := DataFor(execCtx, models.InboundEvent{Text: "oi", Timestamp: time.Unix(0, 0)})

	assert.Equal(t, map[string]any{"age": 21}, data["variables"])
	assert.Equal(t, "oi", data["event"].(map[string]any)["text"])
	assert.Equal(t, "conv-1", data["conversation"].(map[string]any)["id"])

	text, err := RenderString("{{ .event.text }} / {{ .conversation.flow_id }}", data)
	require.NoError(t, err)
	assert.Equal(t, "oi / flow-1", text)
}
