package endflow

import (
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
)

// EndFlowNodeFactory creates EndFlowNode instances.
type EndFlowNodeFactory struct{}

// Create creates a new EndFlowNode instance.
func (f *EndFlowNodeFactory) Create(id string, config map[string]any) (protocol.FlowNode, error) {
	return NewEndFlowNode(id, config)
}

// Kind returns the node kind.
func (f *EndFlowNodeFactory) Kind() models.NodeKind {
	return models.NodeKindEndFlow
}

// Name returns the factory name.
func (f *EndFlowNodeFactory) Name() string {
	return "End Flow"
}

// Description returns the factory description.
func (f *EndFlowNodeFactory) Description() string {
	return "Finishes the automated conversation."
}

// Schema returns the JSON schema for End Flow node configuration.
func (f *EndFlowNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// NewEndFlowNodeFactory creates a new factory instance.
func NewEndFlowNodeFactory() protocol.NodeFactory {
	return &EndFlowNodeFactory{}
}
