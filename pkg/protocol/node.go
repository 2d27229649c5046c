// Package protocol defines the contracts between the interpreter and node kinds.
package protocol

import (
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/randomizer"
)

// Visit is the input of one node visit. Context is a private copy owned by
// the current step; nodes mutate its variables directly.
type Visit struct {
	FlowID  string
	Context *models.ExecutionContext
	Event   models.InboundEvent
	Random  randomizer.Source
	Now     time.Time

	// Target resolves an output port of the visited node to the connected node id.
	Target func(port string) (string, bool)
}

// Outcome is what a node decided.
type Outcome struct {
	// Port selects the outgoing connection when the flow continues.
	Port     string
	Effect   *models.Effect
	Suspend  bool
	ResumeAt *time.Time
	Terminal bool
	Reason   models.Reason
}

// FlowNode is a compiled node: config already decoded and validated.
type FlowNode interface {
	ID() string
	Kind() models.NodeKind

	// Visit decides the node's outcome. Returned errors terminate the
	// conversation's flow and never the engine.
	Visit(v *Visit) (Outcome, error)

	// OutputPorts lists the ports this node may choose.
	OutputPorts() []string
}

// NodeFactory creates node instances and provides metadata about the node kind.
type NodeFactory interface {
	// Create decodes and validates config eagerly.
	Create(id string, config map[string]any) (FlowNode, error)

	// Kind returns the node kind this factory builds
	Kind() models.NodeKind

	// Name returns the human-readable name for this node kind
	Name() string

	// Description returns a description of what this node does
	Description() string

	// Schema returns the JSON schema for configuring this node
	Schema() map[string]any
}
