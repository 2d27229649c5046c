package registry

import (
	"time"

	"github.com/KallebyX/simao-sub001/pkg/nodes/condition"
	"github.com/KallebyX/simao-sub001/pkg/nodes/endflow"
	"github.com/KallebyX/simao-sub001/pkg/nodes/handoff"
	"github.com/KallebyX/simao-sub001/pkg/nodes/message"
	"github.com/KallebyX/simao-sub001/pkg/nodes/randombranch"
	"github.com/KallebyX/simao-sub001/pkg/nodes/setvariable"
	"github.com/KallebyX/simao-sub001/pkg/nodes/wait"
	"github.com/KallebyX/simao-sub001/pkg/nodes/webhook"
)

// Defaults tunes the built-in node kinds.
type Defaults struct {
	// Probability is used by random branches authored without one.
	Probability float64

	// ConditionTimeout bounds one predicate evaluation.
	ConditionTimeout time.Duration
}

// DefaultNodeSettings returns the settings used when none are configured.
func DefaultNodeSettings() Defaults {
	return Defaults{
		Probability:      0.5,
		ConditionTimeout: 100 * time.Millisecond,
	}
}

// RegisterDefaultNodes registers all built-in node factories with the registry.
func (r *Registry) RegisterDefaultNodes(defaults Defaults) {
	r.RegisterNode(message.NewMessageNodeFactory())
	r.RegisterNode(condition.NewConditionNodeFactory(defaults.ConditionTimeout))
	r.RegisterNode(randombranch.NewRandomBranchNodeFactory(defaults.Probability))
	r.RegisterNode(wait.NewWaitNodeFactory())
	r.RegisterNode(setvariable.NewSetVariableNodeFactory())
	r.RegisterNode(webhook.NewWebhookNodeFactory())
	r.RegisterNode(endflow.NewEndFlowNodeFactory())
	r.RegisterNode(handoff.NewHandoffNodeFactory())
}
