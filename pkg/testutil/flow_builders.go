// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates a test message node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:     uuid.New().String(),
		Kind:   models.NodeKindMessage,
		Name:   "Test Node",
		Config: map[string]any{"text": "test"},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithID sets the node ID.
func WithID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

// WithKind sets the node kind and clears the config.
func WithKind(kind models.NodeKind) func(*models.Node) {
	return func(n *models.Node) {
		n.Kind = kind
		n.Config = nil
	}
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Config = config
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.Node) {
	return func(n *models.Node) {
		n.Name = name
	}
}

// Node is shorthand for a node with the given id, kind and config.
func Node(id string, kind models.NodeKind, config map[string]any) *models.Node {
	return CreateTestNode(WithID(id), WithKind(kind), WithConfig(config), WithName(""))
}

// Message is shorthand for a message node.
func Message(id, text string) *models.Node {
	return Node(id, models.NodeKindMessage, map[string]any{"text": text})
}

// Edge connects source's port to target. An empty port is the default edge.
func Edge(source, port, target string) *models.Connection {
	id := source + "->" + target
	if port != "" {
		id = source + ":" + port + "->" + target
	}

	return &models.Connection{
		ID:           id,
		SourceNodeID: source,
		SourcePort:   port,
		TargetNodeID: target,
	}
}

// CreateTestFlow creates a two-node welcome flow of tenant "acme" that can be overridden.
func CreateTestFlow(overrides ...func(*models.FlowGraph)) *models.FlowGraph {
	flow := &models.FlowGraph{
		ID:          "welcome",
		TenantID:    "acme",
		Name:        "Welcome",
		EntryNodeID: "greet",
		Nodes: []*models.Node{
			Message("greet", "Olá!"),
			Node("end", models.NodeKindEndFlow, nil),
		},
		Connections: []*models.Connection{
			Edge("greet", "", "end"),
		},
	}

	for _, override := range overrides {
		override(flow)
	}

	return flow
}

// WithFlowID sets the flow ID.
func WithFlowID(id string) func(*models.FlowGraph) {
	return func(g *models.FlowGraph) {
		g.ID = id
	}
}

// WithTenant sets the owning tenant.
func WithTenant(tenantID string) func(*models.FlowGraph) {
	return func(g *models.FlowGraph) {
		g.TenantID = tenantID
	}
}

// WithNodes replaces the nodes and connections. The entry node falls back
// to the first node.
func WithNodes(nodes []*models.Node, connections ...*models.Connection) func(*models.FlowGraph) {
	return func(g *models.FlowGraph) {
		g.EntryNodeID = ""
		g.Nodes = nodes
		g.Connections = connections
	}
}

// WithUpdatedAt sets the flow's modification time.
func WithUpdatedAt(at time.Time) func(*models.FlowGraph) {
	return func(g *models.FlowGraph) {
		g.UpdatedAt = at
	}
}

// Flow is shorthand for a flow of tenant "acme" made of nodes, entered at
// the first one.
func Flow(id string, nodes []*models.Node, connections ...*models.Connection) *models.FlowGraph {
	return CreateTestFlow(WithFlowID(id), WithNodes(nodes, connections...))
}

// CreateTestContext creates a running execution context of tenant "acme" at nodeID.
func CreateTestContext(conversationID, flowID, nodeID string, now time.Time) *models.ExecutionContext {
	return models.NewExecutionContext("acme", conversationID, flowID, nodeID, now)
}
