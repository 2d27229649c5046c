package setvariable

import (
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
)

// SetVariableNodeFactory creates SetVariableNode instances.
type SetVariableNodeFactory struct{}

// Create creates a new SetVariableNode instance.
func (f *SetVariableNodeFactory) Create(id string, config map[string]any) (protocol.FlowNode, error) {
	return NewSetVariableNode(id, config)
}

// Kind returns the node kind.
func (f *SetVariableNodeFactory) Kind() models.NodeKind {
	return models.NodeKindSetVariable
}

// Name returns the factory name.
func (f *SetVariableNodeFactory) Name() string {
	return "Set Variable"
}

// Description returns the factory description.
func (f *SetVariableNodeFactory) Description() string {
	return "Stores a value in the conversation variables. String values are rendered as templates."
}

// Schema returns the JSON schema for Set Variable node configuration.
func (f *SetVariableNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "Variable name",
				"pattern":     "^[^_]|^_[^_]",
			},
			"value": map[string]any{
				"description": "Value to store. Strings may use {{.variables.x}} or {{.event.text}}.",
				"examples":    []any{"{{.event.text}}", 42, true},
			},
		},
		"required": []string{"name"},
	}
}

// NewSetVariableNodeFactory creates a new factory instance.
func NewSetVariableNodeFactory() protocol.NodeFactory {
	return &SetVariableNodeFactory{}
}
