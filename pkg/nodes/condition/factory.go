package condition

import (
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
)

// ConditionNodeFactory creates ConditionNode instances.
type ConditionNodeFactory struct {
	timeout time.Duration
}

// Create creates a new ConditionNode instance.
func (f *ConditionNodeFactory) Create(id string, config map[string]any) (protocol.FlowNode, error) {
	return NewConditionNode(id, config, f.timeout)
}

// Kind returns the node kind.
func (f *ConditionNodeFactory) Kind() models.NodeKind {
	return models.NodeKindCondition
}

// Name returns the factory name.
func (f *ConditionNodeFactory) Name() string {
	return "Condition"
}

// Description returns the factory description.
func (f *ConditionNodeFactory) Description() string {
	return "Evaluates a predicate over the conversation variables and the inbound event and follows the 'true' or 'false' port."
}

// Schema returns the JSON schema for Condition node configuration.
func (f *ConditionNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "JavaScript expression with 'variables' and 'event' in scope. Truthy results follow the 'true' port.",
				"examples": []string{
					"variables.age >= 18",
					`event.text.toLowerCase() === "sim"`,
					`variables.plan === "premium" && variables.paid`,
				},
			},
		},
		"required": []string{"expression"},
	}
}

// NewConditionNodeFactory creates a new factory instance.
func NewConditionNodeFactory(timeout time.Duration) protocol.NodeFactory {
	return &ConditionNodeFactory{timeout: timeout}
}
