package condition

import (
	"testing"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func visitWith(t *testing.T, node *ConditionNode, variables map[string]any, text string) (protocol.Outcome, error) {
	t.Helper()

	execCtx := models.NewExecutionContext("t", "c", "f", node.ID(), time.Now())
	for k, v := range variables {
		execCtx.Variables[k] = v
	}

	return node.Visit(&protocol.Visit{
		Context: execCtx,
		Event:   models.InboundEvent{Text: text, Timestamp: time.Now()},
	})
}

func TestConditionNode_Visit(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		variables  map[string]any
		text       string
		port       string
	}{
		{name: "adult", expression: "variables.age >= 18", variables: map[string]any{"age": 21}, port: OutputPortTrue},
		{name: "minor", expression: "variables.age >= 18", variables: map[string]any{"age": 16}, port: OutputPortFalse},
		{name: "missing variable is falsy", expression: "variables.age >= 18", port: OutputPortFalse},
		{name: "event text", expression: `event.text.toLowerCase() === "sim"`, text: "SIM", port: OutputPortTrue},
		{name: "truthy string", expression: "variables.name", variables: map[string]any{"name": "Ana"}, port: OutputPortTrue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := NewConditionNode("cond", map[string]any{"expression": tt.expression}, time.Second)
			require.NoError(t, err)

			outcome, err := visitWith(t, node, tt.variables, tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.port, outcome.Port)
			assert.Nil(t, outcome.Effect)
		})
	}
}

func TestConditionNode_InvalidExpression(t *testing.T) {
	_, err := NewConditionNode("cond", map[string]any{"expression": "variables.age >="}, time.Second)
	require.Error(t, err)

	_, err = NewConditionNode("cond", map[string]any{}, time.Second)
	require.Error(t, err)
}

func TestConditionNode_RuntimeErrorIsConfigInvalid(t *testing.T) {
	node, err := NewConditionNode("cond", map[string]any{"expression": "variables.profile.age > 1"}, time.Second)
	require.NoError(t, err)

	_, err = visitWith(t, node, nil, "")
	require.Error(t, err)
	assert.True(t, models.IsNodeConfigInvalid(err))
}

func TestConditionNode_Timeout(t *testing.T) {
	node, err := NewConditionNode("cond", map[string]any{"expression": "(function(){ while (true) {} })()"}, 20*time.Millisecond)
	require.NoError(t, err)

	_, err = visitWith(t, node, nil, "")
	require.Error(t, err)
	assert.True(t, models.IsNodeConfigInvalid(err))
	assert.Contains(t, err.Error(), "exceeded")
}
