package models

import "time"

// Reason explains why a step ended the automated flow.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonEndFlow           Reason = "end_flow"
	ReasonHandoff           Reason = "handoff"
	ReasonNoOutgoing        Reason = "no_outgoing_connection"
	ReasonGraphNodeMissing  Reason = "graph_node_missing"
	ReasonNoMatchingPort    Reason = "no_matching_port"
	ReasonNodeConfigInvalid Reason = "node_config_invalid"
	ReasonHopLimit          Reason = "hop_limit"
	ReasonEffectTimeout     Reason = "effect_timeout"
	ReasonWorkerCrashed     Reason = "worker_crashed"
	ReasonEffectFailed      Reason = "effect_failed"
	ReasonCancelled         Reason = "cancelled"
)

// StepResult is the outcome of visiting one node. Exactly one of Terminal,
// Suspended or a non-empty NextNodeID holds.
type StepResult struct {
	NodeID     string
	NextNodeID string
	Effects    []Effect
	Suspended  bool
	ResumeAt   *time.Time
	Terminal   bool
	Reason     Reason
	Err        error
	Context    *ExecutionContext
}

// Advancing reports whether the flow continues synchronously at NextNodeID.
func (r StepResult) Advancing() bool {
	return !r.Terminal && !r.Suspended && r.NextNodeID != ""
}
