package registry

import (
	"log/slog"
	"slices"
	"testing"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultRegistry() *Registry {
	registry := NewRegistry(slog.Default())
	registry.RegisterDefaultNodes(DefaultNodeSettings())

	return registry
}

func TestRegisterDefaultNodes(t *testing.T) {
	registry := newDefaultRegistry()

	available := registry.GetAvailableNodes()
	require.Len(t, available, len(models.NodeKinds))

	kinds := make([]models.NodeKind, 0, len(available))
	for _, factory := range available {
		kinds = append(kinds, factory.Kind())
	}

	assert.ElementsMatch(t, models.NodeKinds, kinds)
	assert.True(t, slices.IsSorted(kinds))
}

func TestCreateNode(t *testing.T) {
	registry := newDefaultRegistry()

	tests := []struct {
		kind   models.NodeKind
		config map[string]any
		ports  []string
	}{
		{kind: models.NodeKindMessage, config: map[string]any{"text": "hi"}, ports: []string{models.PortDefault}},
		{kind: models.NodeKindCondition, config: map[string]any{"expression": "true"}, ports: []string{models.PortTrue, models.PortFalse}},
		{kind: models.NodeKindRandomBranch, config: nil, ports: []string{models.PortA, models.PortB}},
		{kind: models.NodeKindWait, config: map[string]any{"seconds": 5}, ports: []string{models.PortDefault}},
		{kind: models.NodeKindSetVariable, config: map[string]any{"name": "x", "value": 1}, ports: []string{models.PortDefault}},
		{kind: models.NodeKindWebhook, config: map[string]any{"url": "https://example.com"}, ports: []string{models.PortSuccess, models.PortError, models.PortDefault}},
		{kind: models.NodeKindEndFlow, config: nil},
		{kind: models.NodeKindHandoffToQueue, config: map[string]any{"queue_id": "q"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			node, err := registry.CreateNode(tt.kind, "n1", tt.config)
			require.NoError(t, err)
			assert.Equal(t, "n1", node.ID())
			assert.Equal(t, tt.kind, node.Kind())
			assert.ElementsMatch(t, tt.ports, node.OutputPorts())
		})
	}
}

func TestCreateNode_UnknownKind(t *testing.T) {
	registry := newDefaultRegistry()

	_, err := registry.CreateNode("carousel", "n1", nil)
	assert.ErrorContains(t, err, "not registered")
}

func TestCatalogue(t *testing.T) {
	catalogue := newDefaultRegistry().Catalogue()
	require.Len(t, catalogue, len(models.NodeKinds))

	for _, entry := range catalogue {
		assert.NotEmpty(t, entry.Name, entry.Kind)
		assert.NotEmpty(t, entry.Description, entry.Kind)
		assert.Equal(t, "object", entry.Schema["type"], entry.Kind)
	}
}

func TestDefaultProbabilityIsApplied(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.RegisterDefaultNodes(Defaults{Probability: 1})

	node, err := registry.CreateNode(models.NodeKindRandomBranch, "split", nil)
	require.NoError(t, err)

	execCtx := models.NewExecutionContext("t", "c", "f", "split", testTime)
	outcome, err := node.Visit(visitFor(execCtx))
	require.NoError(t, err)
	assert.Equal(t, models.PortA, outcome.Port)
}
