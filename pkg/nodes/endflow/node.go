// Package endflow provides the node that finishes a conversation's flow.
package endflow

import (
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
)

// EndFlowNode terminates the execution. It takes no configuration.
type EndFlowNode struct {
	id string
}

// NewEndFlowNode creates a new end flow node.
func NewEndFlowNode(id string, _ map[string]any) (*EndFlowNode, error) {
	return &EndFlowNode{id: id}, nil
}

// ID returns the node ID.
func (n *EndFlowNode) ID() string {
	return n.id
}

// Kind returns the node kind.
func (n *EndFlowNode) Kind() models.NodeKind {
	return models.NodeKindEndFlow
}

// Visit ends the flow.
func (n *EndFlowNode) Visit(_ *protocol.Visit) (protocol.Outcome, error) {
	return protocol.Outcome{Terminal: true, Reason: models.ReasonEndFlow}, nil
}

// OutputPorts returns no ports.
func (n *EndFlowNode) OutputPorts() []string {
	return nil
}
