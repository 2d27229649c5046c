package models

import "time"

// FlowGraph is a tenant-authored flow. A running execution reads a snapshot;
// edits take effect on the next trigger.
type FlowGraph struct {
	ID          string        `json:"id"                      validate:"required"`
	TenantID    string        `json:"tenant_id"               validate:"required"`
	Name        string        `json:"name,omitempty"`
	EntryNodeID string        `json:"entry_node_id,omitempty"`
	Nodes       []*Node       `json:"nodes"                   validate:"required,min=1,dive"`
	Connections []*Connection `json:"connections"             validate:"dive"`
	UpdatedAt   time.Time     `json:"updated_at,omitempty"`
}

// EntryNode returns the id of the node a new execution starts at: the
// configured entry node, or the first node of the graph.
func (g *FlowGraph) EntryNode() string {
	if g.EntryNodeID != "" {
		return g.EntryNodeID
	}

	if len(g.Nodes) > 0 {
		return g.Nodes[0].ID
	}

	return ""
}

// NodeByID finds a node by id.
func (g *FlowGraph) NodeByID(id string) (*Node, bool) {
	for _, node := range g.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// Outgoing returns the connections leaving nodeID in authoring order.
func (g *FlowGraph) Outgoing(nodeID string) []*Connection {
	var out []*Connection

	for _, conn := range g.Connections {
		if conn.SourceNodeID == nodeID {
			out = append(out, conn)
		}
	}

	return out
}
