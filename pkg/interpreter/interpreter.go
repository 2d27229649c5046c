package interpreter

import (
	"fmt"
	"strings"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
	"github.com/KallebyX/simao-sub001/pkg/randomizer"
	"github.com/sourcegraph/conc/panics"
)

// Interpreter advances execution contexts one node at a time. Apart from
// random branch draws, Advance is a pure function of its inputs.
type Interpreter struct {
	random randomizer.Source
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithRandomSource injects the source random branches draw from.
func WithRandomSource(src randomizer.Source) Option {
	return func(in *Interpreter) {
		in.random = src
	}
}

// New creates an interpreter.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{random: randomizer.NewSource()}

	for _, opt := range opts {
		opt(in)
	}

	return in
}

// ApplyEvent merges what an inbound event contributes to the conversation
// variables. It is applied once per event, before the first step of a run.
func ApplyEvent(execCtx *models.ExecutionContext, event models.InboundEvent) *models.ExecutionContext {
	next := execCtx.Clone()

	for k, v := range event.Variables {
		if strings.HasPrefix(k, models.ReservedPrefix) {
			continue
		}

		next.Variables[k] = v
	}

	if !event.IsResume() {
		next.Variables[models.VariableLastMessage] = event.Text
	}

	return next
}

// Advance visits the context's current node. The given context is never
// mutated; StepResult.Context holds the updated copy.
func (in *Interpreter) Advance(prog *Program, execCtx *models.ExecutionContext, event models.InboundEvent) models.StepResult {
	next := execCtx.Clone()
	nodeID := next.CurrentNodeID

	result := models.StepResult{NodeID: nodeID, Context: next}

	if prog == nil {
		return terminate(result, models.ReasonGraphNodeMissing, errNilProgram)
	}

	node, ok := prog.Node(nodeID)
	if !ok {
		return terminate(result, models.ReasonGraphNodeMissing, &models.NodeError{
			FlowID: prog.FlowID(),
			NodeID: nodeID,
			Err:    models.ErrGraphNodeMissing,
		})
	}

	now := Now(event, execCtx.LastAdvancedAt)

	visit := &protocol.Visit{
		FlowID:  prog.FlowID(),
		Context: next,
		Event:   event,
		Random:  in.random,
		Now:     now,
		Target: func(port string) (string, bool) {
			return prog.Target(nodeID, port)
		},
	}

	outcome, err := visitSafely(node, visit)
	next.LastAdvancedAt = now

	if err != nil {
		return terminate(result, models.ReasonFor(err), &models.NodeError{
			FlowID: prog.FlowID(),
			NodeID: nodeID,
			Kind:   node.Kind(),
			Err:    err,
		})
	}

	if outcome.Effect != nil {
		result.Effects = []models.Effect{*outcome.Effect}
	}

	switch {
	case outcome.Terminal:
		return terminate(result, outcome.Reason, nil)

	case outcome.Suspend:
		result.Suspended = true
		result.ResumeAt = outcome.ResumeAt
		next.ResumeAt = outcome.ResumeAt

		if outcome.ResumeAt != nil {
			next.Status = models.ExecutionStatusWaiting
		} else {
			next.Status = models.ExecutionStatusAwaitingResult
		}

		return result
	}

	target, ok := prog.Target(nodeID, outcome.Port)
	if !ok {
		if outcome.Port == models.PortDefault {
			return terminate(result, models.ReasonNoOutgoing, nil)
		}

		return terminate(result, models.ReasonNoMatchingPort, &models.NodeError{
			FlowID: prog.FlowID(),
			NodeID: nodeID,
			Kind:   node.Kind(),
			Err:    fmt.Errorf("%w: port %q", models.ErrNoMatchingPort, outcome.Port),
		})
	}

	// A branch choice only holds for the visit that made it.
	delete(next.Variables, models.ReservedKey(models.ReservedRandom, nodeID))

	next.CurrentNodeID = target
	next.Status = models.ExecutionStatusRunning
	next.ResumeAt = nil
	result.NextNodeID = target

	return result
}

// ApplyResult continues a context suspended on a webhook once its worker
// result is delivered. The pending marker is cleared, mapped variables are
// merged and the flow moves to the node the result names.
func ApplyResult(execCtx *models.ExecutionContext, nodeID string, res models.WorkerResult) models.StepResult {
	next := execCtx.Clone()
	delete(next.Variables, models.ReservedKey(models.ReservedWebhook, nodeID))

	for k, v := range res.Variables {
		if strings.HasPrefix(k, models.ReservedPrefix) {
			continue
		}

		next.Variables[k] = v
	}

	next.PendingTaskID = ""
	next.ResumeAt = nil

	result := models.StepResult{NodeID: nodeID, Context: next}

	if res.NextNodeID != nil && *res.NextNodeID != "" {
		next.CurrentNodeID = *res.NextNodeID
		next.Status = models.ExecutionStatusRunning
		result.NextNodeID = *res.NextNodeID

		return result
	}

	if err := res.Err(); err != nil {
		return terminate(result, models.ReasonFor(err), err)
	}

	return terminate(result, models.ReasonNoOutgoing, nil)
}

func visitSafely(node protocol.FlowNode, visit *protocol.Visit) (outcome protocol.Outcome, err error) {
	recovered := panics.Try(func() {
		outcome, err = node.Visit(visit)
	})
	if recovered != nil {
		return protocol.Outcome{}, fmt.Errorf("%w: %w", models.ErrNodeConfigInvalid, recovered.AsError())
	}

	return outcome, err
}

func terminate(result models.StepResult, reason models.Reason, err error) models.StepResult {
	result.Terminal = true
	result.Reason = reason
	result.Err = err
	result.NextNodeID = ""
	result.Suspended = false
	result.ResumeAt = nil

	if result.Context != nil {
		result.Context.ResumeAt = nil
	}

	return result
}

// Now returns the instant a step for event is evaluated at.
func Now(event models.InboundEvent, fallback time.Time) time.Time {
	if event.Timestamp.IsZero() {
		return fallback
	}

	return event.Timestamp
}
