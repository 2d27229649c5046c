// Package models defines the flow graph, execution state and message envelopes of the engine.
package models

// NodeKind is the discriminator of a node's config shape.
type NodeKind string

const (
	NodeKindMessage        NodeKind = "message"
	NodeKindCondition      NodeKind = "condition"
	NodeKindRandomBranch   NodeKind = "random_branch"
	NodeKindWait           NodeKind = "wait"
	NodeKindSetVariable    NodeKind = "set_variable"
	NodeKindWebhook        NodeKind = "webhook"
	NodeKindEndFlow        NodeKind = "end_flow"
	NodeKindHandoffToQueue NodeKind = "handoff_to_queue"
)

// NodeKinds lists every kind the interpreter understands.
var NodeKinds = []NodeKind{
	NodeKindMessage,
	NodeKindCondition,
	NodeKindRandomBranch,
	NodeKindWait,
	NodeKindSetVariable,
	NodeKindWebhook,
	NodeKindEndFlow,
	NodeKindHandoffToQueue,
}

// Valid reports whether k is a known node kind.
func (k NodeKind) Valid() bool {
	for _, known := range NodeKinds {
		if k == known {
			return true
		}
	}

	return false
}

// Node is one step of a flow. Config is decoded into a kind-specific shape
// when the graph is compiled.
type Node struct {
	ID     string         `json:"id"               validate:"required"`
	Kind   NodeKind       `json:"kind"             validate:"required"`
	Name   string         `json:"name,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// Connection is a directed edge. SourcePort disambiguates the outgoing
// edges of branching nodes.
type Connection struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"source_node_id" validate:"required"`
	SourcePort   string `json:"source_port,omitempty"`
	TargetNodeID string `json:"target_node_id" validate:"required"`
}
