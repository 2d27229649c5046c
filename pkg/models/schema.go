package models

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// GraphDocumentSchema is the JSON schema of a flow document as stored by the
// flow editor.
const GraphDocumentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "tenant_id", "nodes"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "tenant_id": {"type": "string", "minLength": 1},
    "name": {"type": "string"},
    "entry_node_id": {"type": "string"},
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "kind"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "kind": {"enum": ["message", "condition", "random_branch", "wait", "set_variable", "webhook", "end_flow", "handoff_to_queue"]},
          "name": {"type": "string"},
          "config": {"type": "object"}
        }
      }
    },
    "connections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source_node_id", "target_node_id"],
        "properties": {
          "id": {"type": "string"},
          "source_node_id": {"type": "string", "minLength": 1},
          "source_port": {"type": "string"},
          "target_node_id": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var graphSchemaLoader = gojsonschema.NewStringLoader(GraphDocumentSchema)

// ValidateGraphDocument checks a raw JSON document against GraphDocumentSchema.
func ValidateGraphDocument(data []byte) error {
	result, err := gojsonschema.Validate(graphSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &GraphError{Problems: []string{err.Error()}, Err: err}
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}

	return &GraphError{Problems: problems}
}

// DecodeGraph validates a JSON document against the schema, decodes it and
// checks the structural invariants.
func DecodeGraph(data []byte) (*FlowGraph, error) {
	if err := ValidateGraphDocument(data); err != nil {
		return nil, err
	}

	var graph FlowGraph

	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("failed to decode flow graph: %w", err)
	}

	if err := ValidateGraph(&graph); err != nil {
		return nil, err
	}

	return &graph, nil
}
