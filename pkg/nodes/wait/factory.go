package wait

import (
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
)

// WaitNodeFactory creates WaitNode instances.
type WaitNodeFactory struct{}

// Create creates a new WaitNode instance.
func (f *WaitNodeFactory) Create(id string, config map[string]any) (protocol.FlowNode, error) {
	return NewWaitNode(id, config)
}

// Kind returns the node kind.
func (f *WaitNodeFactory) Kind() models.NodeKind {
	return models.NodeKindWait
}

// Name returns the factory name.
func (f *WaitNodeFactory) Name() string {
	return "Wait"
}

// Description returns the factory description.
func (f *WaitNodeFactory) Description() string {
	return "Pauses the conversation and continues once the scheduler resumes it after the configured delay."
}

// Schema returns the JSON schema for Wait node configuration.
func (f *WaitNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"seconds": map[string]any{
				"type":             "number",
				"exclusiveMinimum": 0,
				"description":      "Delay in seconds",
			},
			"duration": map[string]any{
				"type":        "string",
				"description": "Delay as a duration string",
				"examples":    []string{"30s", "15m", "1h30m"},
			},
		},
		"oneOf": []any{
			map[string]any{"required": []string{"seconds"}},
			map[string]any{"required": []string{"duration"}},
		},
	}
}

// NewWaitNodeFactory creates a new factory instance.
func NewWaitNodeFactory() protocol.NodeFactory {
	return &WaitNodeFactory{}
}
