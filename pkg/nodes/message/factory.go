package message

import (
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
)

// MessageNodeFactory creates MessageNode instances.
type MessageNodeFactory struct{}

// Create creates a new MessageNode instance.
func (f *MessageNodeFactory) Create(id string, config map[string]any) (protocol.FlowNode, error) {
	return NewMessageNode(id, config)
}

// Kind returns the node kind.
func (f *MessageNodeFactory) Kind() models.NodeKind {
	return models.NodeKindMessage
}

// Name returns the factory name.
func (f *MessageNodeFactory) Name() string {
	return "Message"
}

// Description returns the factory description.
func (f *MessageNodeFactory) Description() string {
	return "Sends a text and/or media message to the conversation, then follows its single outgoing connection."
}

// Schema returns the JSON schema for Message node configuration.
func (f *MessageNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "Message text. Supports templating over variables, event and conversation.",
				"examples": []string{
					"Olá {{.variables.name}}, como posso ajudar?",
					"Você disse: {{.event.text}}",
				},
			},
			"media_refs": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Opaque media references resolved by the channel.",
			},
		},
		"anyOf": []map[string]any{
			{"required": []string{"text"}},
			{"required": []string{"media_refs"}},
		},
	}
}

// NewMessageNodeFactory creates a new factory instance.
func NewMessageNodeFactory() protocol.NodeFactory {
	return &MessageNodeFactory{}
}
