package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateGraph checks the structural invariants of a graph: unique node ids,
// known kinds, an existing entry node and no dangling connection endpoints.
// Node configs are checked when the graph is compiled.
func ValidateGraph(graph *FlowGraph) error {
	if graph == nil {
		return &GraphError{Problems: []string{"graph is nil"}}
	}

	var problems []string

	if err := structValidator.Struct(graph); err != nil {
		problems = append(problems, err.Error())
	}

	seen := make(map[string]bool, len(graph.Nodes))

	for _, node := range graph.Nodes {
		if node == nil {
			problems = append(problems, "nil node")

			continue
		}

		if seen[node.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", node.ID))
		}

		seen[node.ID] = true

		if !node.Kind.Valid() {
			problems = append(problems, fmt.Sprintf("node %q has unknown kind %q", node.ID, node.Kind))
		}
	}

	if graph.EntryNodeID != "" && !seen[graph.EntryNodeID] {
		problems = append(problems, fmt.Sprintf("entry node %q does not exist", graph.EntryNodeID))
	}

	edges := make(map[string]string, len(graph.Connections))

	for _, conn := range graph.Connections {
		if conn == nil {
			problems = append(problems, "nil connection")

			continue
		}

		if !seen[conn.SourceNodeID] {
			problems = append(problems, fmt.Sprintf("connection %q leaves unknown node %q", conn.ID, conn.SourceNodeID))
		}

		if !seen[conn.TargetNodeID] {
			problems = append(problems, fmt.Sprintf("connection %q targets unknown node %q", conn.ID, conn.TargetNodeID))
		}

		portID := MakePortID(conn.SourceNodeID, conn.SourcePort)
		if other, dup := edges[portID]; dup && other != conn.TargetNodeID {
			problems = append(problems, fmt.Sprintf("port %q is connected more than once", portID))
		}

		edges[portID] = conn.TargetNodeID
	}

	if len(problems) > 0 {
		return &GraphError{FlowID: graph.ID, Problems: problems}
	}

	return nil
}
