package randombranch

import (
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
)

// RandomBranchNodeFactory creates RandomBranchNode instances.
type RandomBranchNodeFactory struct {
	defaultProbability float64
}

// Create creates a new RandomBranchNode instance.
func (f *RandomBranchNodeFactory) Create(id string, config map[string]any) (protocol.FlowNode, error) {
	return NewRandomBranchNode(id, config, f.defaultProbability)
}

// Kind returns the node kind.
func (f *RandomBranchNodeFactory) Kind() models.NodeKind {
	return models.NodeKindRandomBranch
}

// Name returns the factory name.
func (f *RandomBranchNodeFactory) Name() string {
	return "Random Branch"
}

// Description returns the factory description.
func (f *RandomBranchNodeFactory) Description() string {
	return "Splits conversations between path 'A' and path 'B'. The choice sticks for the rest of the execution."
}

// Schema returns the JSON schema for Random Branch node configuration.
func (f *RandomBranchNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"probability": map[string]any{
				"type":        "number",
				"minimum":     0,
				"maximum":     1,
				"default":     f.defaultProbability,
				"description": "Chance of following path 'A'",
			},
		},
	}
}

// NewRandomBranchNodeFactory creates a new factory instance.
func NewRandomBranchNodeFactory(defaultProbability float64) protocol.NodeFactory {
	return &RandomBranchNodeFactory{defaultProbability: defaultProbability}
}
