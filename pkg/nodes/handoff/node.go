// Package handoff provides the node that routes a conversation to a human queue.
package handoff

import (
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/nodes"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
)

// Config is the authored shape of a handoff node.
type Config struct {
	QueueID string `json:"queue_id" validate:"required"`
	UserID  string `json:"user_id"`
}

// HandoffNode ends automation and asks for the ticket to be routed.
type HandoffNode struct {
	id     string
	config Config
}

// NewHandoffNode creates a new handoff node.
func NewHandoffNode(id string, config map[string]any) (*HandoffNode, error) {
	var cfg Config
	if err := nodes.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	return &HandoffNode{id: id, config: cfg}, nil
}

// ID returns the node ID.
func (n *HandoffNode) ID() string {
	return n.id
}

// Kind returns the node kind.
func (n *HandoffNode) Kind() models.NodeKind {
	return models.NodeKindHandoffToQueue
}

// Visit emits the routing effect and terminates the flow.
func (n *HandoffNode) Visit(_ *protocol.Visit) (protocol.Outcome, error) {
	return protocol.Outcome{
		Terminal: true,
		Reason:   models.ReasonHandoff,
		Effect: &models.Effect{
			Kind:   models.EffectRouteToQueue,
			NodeID: n.id,
			Handoff: &models.Handoff{
				QueueID: n.config.QueueID,
				UserID:  n.config.UserID,
			},
		},
	}, nil
}

// OutputPorts returns no ports.
func (n *HandoffNode) OutputPorts() []string {
	return nil
}
