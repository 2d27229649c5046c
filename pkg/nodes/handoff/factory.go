package handoff

import (
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
)

// HandoffNodeFactory creates HandoffNode instances.
type HandoffNodeFactory struct{}

// Create creates a new HandoffNode instance.
func (f *HandoffNodeFactory) Create(id string, config map[string]any) (protocol.FlowNode, error) {
	return NewHandoffNode(id, config)
}

// Kind returns the node kind.
func (f *HandoffNodeFactory) Kind() models.NodeKind {
	return models.NodeKindHandoffToQueue
}

// Name returns the factory name.
func (f *HandoffNodeFactory) Name() string {
	return "Handoff to Queue"
}

// Description returns the factory description.
func (f *HandoffNodeFactory) Description() string {
	return "Stops automation and routes the ticket to a human queue, optionally to a specific agent."
}

// Schema returns the JSON schema for Handoff node configuration.
func (f *HandoffNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"queue_id": map[string]any{
				"type":        "string",
				"description": "Destination queue",
			},
			"user_id": map[string]any{
				"type":        "string",
				"description": "Optional agent inside the queue",
			},
		},
		"required": []string{"queue_id"},
	}
}

// NewHandoffNodeFactory creates a new factory instance.
func NewHandoffNodeFactory() protocol.NodeFactory {
	return &HandoffNodeFactory{}
}
