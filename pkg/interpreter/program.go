// Package interpreter compiles flow graphs and advances conversations through them.
package interpreter

import (
	"errors"
	"fmt"
	"slices"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
	"github.com/KallebyX/simao-sub001/pkg/registry"
)

// Program is a validated, immutable snapshot of a flow graph with every node
// compiled. It is safe for concurrent use.
type Program struct {
	graph *models.FlowGraph
	nodes map[string]protocol.FlowNode
	edges map[string]string
}

// Compile validates graph and compiles every node config through the
// registry. All problems are reported together in a *models.GraphError.
func Compile(reg *registry.Registry, graph *models.FlowGraph) (*Program, error) {
	if err := models.ValidateGraph(graph); err != nil {
		return nil, err
	}

	var (
		problems []string
		firstErr error
	)

	prog := &Program{
		graph: graph,
		nodes: make(map[string]protocol.FlowNode, len(graph.Nodes)),
		edges: make(map[string]string, len(graph.Connections)),
	}

	for _, node := range graph.Nodes {
		compiled, err := reg.CreateNode(node.Kind, node.ID, node.Config)
		if err != nil {
			nodeErr := models.NewNodeConfigError(graph.ID, node, err)
			problems = append(problems, nodeErr.Error())

			if firstErr == nil {
				firstErr = nodeErr
			}

			continue
		}

		prog.nodes[node.ID] = compiled
	}

	for _, conn := range graph.Connections {
		prog.edges[models.MakePortID(conn.SourceNodeID, conn.SourcePort)] = conn.TargetNodeID

		source, ok := prog.nodes[conn.SourceNodeID]
		if !ok {
			continue
		}

		ports := source.OutputPorts()

		// Connections leaving terminal nodes are tolerated and never followed.
		if len(ports) == 0 {
			continue
		}

		if !slices.Contains(ports, conn.SourcePort) {
			problems = append(problems, fmt.Sprintf("connection %q leaves node %q through unknown port %q", conn.ID, conn.SourceNodeID, conn.SourcePort))
		}
	}

	if len(problems) > 0 {
		return nil, &models.GraphError{FlowID: graph.ID, Problems: problems, Err: firstErr}
	}

	return prog, nil
}

// MustCompile is Compile for fixtures; it panics on invalid graphs.
func MustCompile(reg *registry.Registry, graph *models.FlowGraph) *Program {
	prog, err := Compile(reg, graph)
	if err != nil {
		panic(err)
	}

	return prog
}

// Graph returns the compiled graph.
func (p *Program) Graph() *models.FlowGraph {
	return p.graph
}

// FlowID returns the graph id.
func (p *Program) FlowID() string {
	return p.graph.ID
}

// Entry returns the node new executions start at.
func (p *Program) Entry() string {
	return p.graph.EntryNode()
}

// Node returns the compiled node with the given id.
func (p *Program) Node(id string) (protocol.FlowNode, bool) {
	node, ok := p.nodes[id]

	return node, ok
}

// Target resolves an output port of nodeID to the connected node.
func (p *Program) Target(nodeID, port string) (string, bool) {
	target, ok := p.edges[models.MakePortID(nodeID, port)]

	return target, ok
}

// Has reports whether the graph still contains nodeID.
func (p *Program) Has(nodeID string) bool {
	_, ok := p.nodes[nodeID]

	return ok
}

var errNilProgram = errors.New("program is nil")
