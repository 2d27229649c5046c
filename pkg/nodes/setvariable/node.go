// Package setvariable provides the node that writes a conversation variable.
package setvariable

import (
	"fmt"
	"strings"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/nodes"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
	flowtemplate "github.com/KallebyX/simao-sub001/pkg/template"
)

// Config is the authored shape of a set variable node. String values may be
// templates; other JSON values are stored as they are.
type Config struct {
	Name  string `json:"name"  validate:"required"`
	Value any    `json:"value"`
}

// SetVariableNode assigns one variable and continues.
type SetVariableNode struct {
	id     string
	config Config
}

// NewSetVariableNode creates a new set variable node.
func NewSetVariableNode(id string, config map[string]any) (*SetVariableNode, error) {
	var cfg Config
	if err := nodes.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	if strings.HasPrefix(cfg.Name, models.ReservedPrefix) {
		return nil, fmt.Errorf("variable name '%s' uses the reserved prefix '%s'", cfg.Name, models.ReservedPrefix)
	}

	if s, ok := cfg.Value.(string); ok && flowtemplate.NeedsTemplating(s) {
		if _, err := flowtemplate.Parse(s); err != nil {
			return nil, err
		}
	}

	return &SetVariableNode{id: id, config: cfg}, nil
}

// ID returns the node ID.
func (n *SetVariableNode) ID() string {
	return n.id
}

// Kind returns the node kind.
func (n *SetVariableNode) Kind() models.NodeKind {
	return models.NodeKindSetVariable
}

// Visit writes the variable into the context.
func (n *SetVariableNode) Visit(v *protocol.Visit) (protocol.Outcome, error) {
	value := n.config.Value

	if s, ok := value.(string); ok && flowtemplate.NeedsTemplating(s) {
		rendered, err := flowtemplate.Render(s, flowtemplate.DataFor(v.Context, v.Event))
		if err != nil {
			return protocol.Outcome{}, fmt.Errorf("%w: %w", models.ErrNodeConfigInvalid, err)
		}

		value = rendered
	}

	v.Context.Variables[n.config.Name] = value

	return protocol.Outcome{Port: models.PortDefault}, nil
}

// OutputPorts returns the single default port.
func (n *SetVariableNode) OutputPorts() []string {
	return []string{models.PortDefault}
}
