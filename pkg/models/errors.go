package models

import (
	"errors"
	"fmt"
	"strings"
)

// Engine error taxonomy.
var (
	// ErrGraphNodeMissing indicates the current node no longer exists in the graph.
	ErrGraphNodeMissing = errors.New("graph node missing")

	// ErrNodeConfigInvalid indicates a node's config could not be decoded or evaluated.
	ErrNodeConfigInvalid = errors.New("node config invalid")

	// ErrNoMatchingPort indicates a branching node chose a port with no connection.
	ErrNoMatchingPort = errors.New("no matching port")

	// ErrPoolSaturated indicates the worker pool queue is full.
	ErrPoolSaturated = errors.New("worker pool saturated")

	// ErrWorkerCrashed indicates the worker running a task died.
	ErrWorkerCrashed = errors.New("worker crashed")

	// ErrEffectTimeout indicates a task did not complete in time.
	ErrEffectTimeout = errors.New("effect timeout")

	// ErrStaleResultDiscarded indicates a worker result arrived for a cancelled or superseded step.
	ErrStaleResultDiscarded = errors.New("stale result discarded")

	// ErrGraphInvalid indicates a graph failed load-time validation.
	ErrGraphInvalid = errors.New("graph invalid")

	// ErrTaskCancelled indicates a task was abandoned because the pool shut down.
	ErrTaskCancelled = errors.New("task cancelled")
)

// NodeError wraps node-related errors with the node's identity.
type NodeError struct {
	FlowID string
	NodeID string
	Kind   NodeKind
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (%s) in flow %s: %v", e.NodeID, e.Kind, e.FlowID, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

func (e *NodeError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewNodeConfigError wraps a config problem so it matches ErrNodeConfigInvalid.
func NewNodeConfigError(flowID string, node *Node, err error) *NodeError {
	return &NodeError{
		FlowID: flowID,
		NodeID: node.ID,
		Kind:   node.Kind,
		Err:    fmt.Errorf("%w: %w", ErrNodeConfigInvalid, err),
	}
}

// GraphError collects every validation problem of a graph.
type GraphError struct {
	FlowID   string
	Problems []string
	Err      error
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("flow %s is invalid: %s", e.FlowID, strings.Join(e.Problems, "; "))
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

func (e *GraphError) Is(target error) bool {
	return target == ErrGraphInvalid || errors.Is(e.Err, target)
}

// IsNodeConfigInvalid checks if an error indicates a malformed node config.
func IsNodeConfigInvalid(err error) bool {
	return errors.Is(err, ErrNodeConfigInvalid)
}

// IsPoolSaturated checks if an error indicates pool backpressure.
func IsPoolSaturated(err error) bool {
	return errors.Is(err, ErrPoolSaturated)
}

// IsGraphInvalid checks if an error indicates a graph failed validation.
func IsGraphInvalid(err error) bool {
	return errors.Is(err, ErrGraphInvalid)
}

// ReasonFor maps an error onto a terminal reason.
func ReasonFor(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrGraphNodeMissing):
		return ReasonGraphNodeMissing
	case errors.Is(err, ErrNoMatchingPort):
		return ReasonNoMatchingPort
	case errors.Is(err, ErrNodeConfigInvalid):
		return ReasonNodeConfigInvalid
	case errors.Is(err, ErrEffectTimeout):
		return ReasonEffectTimeout
	case errors.Is(err, ErrWorkerCrashed):
		return ReasonWorkerCrashed
	default:
		return ReasonEffectFailed
	}
}

// Surfaced reports whether a terminal reason must be shown to the tenant.
func (r Reason) Surfaced() bool {
	switch r {
	case ReasonEffectTimeout, ReasonWorkerCrashed, ReasonNodeConfigInvalid:
		return true
	default:
		return false
	}
}
