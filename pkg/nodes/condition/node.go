// Package condition provides the node that routes on a boolean predicate over variables and the inbound event.
package condition

import (
	"errors"
	"fmt"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/nodes"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
	"github.com/dop251/goja"
)

const (
	OutputPortTrue  = models.PortTrue
	OutputPortFalse = models.PortFalse
)

// Config is the authored shape of a condition node.
type Config struct {
	// Expression is a JavaScript expression, e.g. `variables.age >= 18`.
	Expression string `json:"expression" validate:"required"`
}

// ConditionNode evaluates its predicate in a fresh goja runtime per visit.
type ConditionNode struct {
	id      string
	config  Config
	program *goja.Program
	timeout time.Duration
}

// NewConditionNode creates a new condition node. The expression is compiled
// here so syntax errors fail the graph at load time.
func NewConditionNode(id string, config map[string]any, timeout time.Duration) (*ConditionNode, error) {
	var cfg Config
	if err := nodes.DecodeConfig(config, &cfg); err != nil {
		return nil, err
	}

	program, err := goja.Compile(id, "("+cfg.Expression+")", true)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression '%s': %w", cfg.Expression, err)
	}

	return &ConditionNode{
		id:      id,
		config:  cfg,
		program: program,
		timeout: timeout,
	}, nil
}

// ID returns the node ID.
func (n *ConditionNode) ID() string {
	return n.id
}

// Kind returns the node kind.
func (n *ConditionNode) Kind() models.NodeKind {
	return models.NodeKindCondition
}

// Visit evaluates the predicate and picks the true or false port.
func (n *ConditionNode) Visit(v *protocol.Visit) (protocol.Outcome, error) {
	result, err := n.Evaluate(v.Context.PublicVariables(), v.Event.AsMap())
	if err != nil {
		return protocol.Outcome{}, fmt.Errorf("%w: %w", models.ErrNodeConfigInvalid, err)
	}

	if result {
		return protocol.Outcome{Port: OutputPortTrue}, nil
	}

	return protocol.Outcome{Port: OutputPortFalse}, nil
}

// Evaluate runs the predicate against the given bindings.
func (n *ConditionNode) Evaluate(variables, event map[string]any) (bool, error) {
	vm := goja.New()

	if err := vm.Set("variables", variables); err != nil {
		return false, err
	}

	if err := vm.Set("event", event); err != nil {
		return false, err
	}

	if n.timeout > 0 {
		timer := time.AfterFunc(n.timeout, func() {
			vm.Interrupt("condition timed out")
		})
		defer timer.Stop()
	}

	value, err := vm.RunProgram(n.program)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return false, fmt.Errorf("expression '%s' exceeded %s", n.config.Expression, n.timeout)
		}

		return false, fmt.Errorf("failed to evaluate expression '%s': %w", n.config.Expression, err)
	}

	return value.ToBoolean(), nil
}

// OutputPorts returns the true and false ports.
func (n *ConditionNode) OutputPorts() []string {
	return []string{OutputPortTrue, OutputPortFalse}
}
