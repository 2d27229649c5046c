package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KallebyX/simao-sub001/pkg/events"
	"github.com/KallebyX/simao-sub001/pkg/interpreter"
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/otelhelper"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
	"github.com/KallebyX/simao-sub001/pkg/workerpool"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (d *Dispatcher) handleInbound(ctx context.Context, event models.InboundEvent) Outcome {
	logger := d.logger.With(
		"tenant_id", event.TenantID,
		"conversation_id", event.ConversationID,
		"kind", event.Kind,
	)

	execCtx, err := d.contexts.LoadContext(ctx, event.TenantID, event.ConversationID)
	if err != nil && !persistence.IsExecutionContextNotFound(err) {
		logger.ErrorContext(ctx, "Failed to load execution context", "error", err)

		return Outcome{Route: RouteFailed, Err: err}
	}

	if execCtx != nil && execCtx.Active() {
		if !execCtx.Automated() {
			logger.DebugContext(ctx, "Conversation is handled by a human agent")

			return Outcome{Route: RouteHuman, FlowID: execCtx.FlowID, Status: execCtx.Status}
		}

		return d.resume(ctx, logger, execCtx, event)
	}

	if event.IsResume() {
		logger.DebugContext(ctx, "Resume for a conversation without an active flow")

		return Outcome{Route: RouteDiscarded}
	}

	return d.start(ctx, logger, execCtx, event)
}

// start matches triggers for a conversation without an active flow.
// tombstone is the cancelled context left by Close, if any.
func (d *Dispatcher) start(ctx context.Context, logger *slog.Logger, tombstone *models.ExecutionContext, event models.InboundEvent) Outcome {
	flowID, err := d.match(ctx, event)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to match triggers", "error", err)

		return Outcome{Route: RouteFailed, Err: err}
	}

	if flowID == "" {
		logger.DebugContext(ctx, "No flow matched; leaving the ticket to human agents")

		return Outcome{Route: RouteHuman}
	}

	logger = logger.With("flow_id", flowID)

	graph, err := d.graphs.LoadGraph(ctx, event.TenantID, flowID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load matched flow", "error", err)

		return Outcome{Route: RouteFailed, FlowID: flowID, Err: err}
	}

	prog, err := interpreter.Compile(d.registry, graph)
	if err != nil {
		logger.WarnContext(ctx, "Matched flow is invalid", "error", err)
		d.publishFailure(ctx, &models.ExecutionContext{
			TenantID:       event.TenantID,
			ConversationID: event.ConversationID,
			FlowID:         flowID,
		}, models.ReasonNodeConfigInvalid, err)

		return Outcome{Route: RouteFailed, FlowID: flowID, Reason: models.ReasonNodeConfigInvalid, Err: err}
	}

	execCtx := models.NewExecutionContext(event.TenantID, event.ConversationID, flowID, prog.Entry(), event.Timestamp)
	if tombstone != nil {
		execCtx.Epoch = tombstone.Epoch + 1
	}

	logger.InfoContext(ctx, "Starting flow", "entry_node_id", prog.Entry())

	outcome := d.run(ctx, logger, prog, interpreter.ApplyEvent(execCtx, event), event)
	outcome.Route = RouteStarted

	return outcome
}

// match returns the flow to start: the first phrase match, then the
// no-phrase flow, then the welcome flow.
func (d *Dispatcher) match(ctx context.Context, event models.InboundEvent) (string, error) {
	triggers, err := d.graphs.Triggers(ctx, event.TenantID, event.ChannelID)
	if err != nil {
		return "", fmt.Errorf("failed to load triggers: %w", err)
	}

	text := models.NormalizeText(event.Text)

	for _, trigger := range triggers {
		if trigger.Enabled() && trigger.AppliesTo(event.ChannelID) && trigger.Matches(text) {
			return trigger.FlowID, nil
		}
	}

	defaults, err := d.graphs.DefaultFlows(ctx, event.TenantID, event.ChannelID)
	if err != nil {
		return "", fmt.Errorf("failed to load default flows: %w", err)
	}

	return defaults.Fallback(), nil
}

func (d *Dispatcher) resume(ctx context.Context, logger *slog.Logger, execCtx *models.ExecutionContext, event models.InboundEvent) Outcome {
	logger = logger.With("flow_id", execCtx.FlowID, "node_id", execCtx.CurrentNodeID)

	prog, failed := d.load(ctx, logger, execCtx)
	if failed != nil {
		failed.Route = RouteResumed

		return *failed
	}

	execCtx = interpreter.ApplyEvent(execCtx, event)

	if execCtx.Status == models.ExecutionStatusAwaitingResult && execCtx.PendingTaskID != "" {
		if _, ok := d.inflight.Load(execCtx.PendingTaskID); !ok {
			// The result of the pending webhook is lost, e.g. after a restart.
			logger.WarnContext(ctx, "Pending webhook result lost", "task_id", execCtx.PendingTaskID)

			step := interpreter.ApplyResult(execCtx, execCtx.CurrentNodeID, models.WorkerResult{
				TaskID: execCtx.PendingTaskID,
				Status: models.TaskStatusCancelled,
			})

			outcome := d.continueFrom(ctx, logger, prog, step, event)
			outcome.Route = RouteResumed

			return outcome
		}
	}

	outcome := d.run(ctx, logger, prog, execCtx, event)
	outcome.Route = RouteResumed

	return outcome
}

// load fetches and compiles the graph of a running context. A missing or
// broken graph ends the execution.
func (d *Dispatcher) load(ctx context.Context, logger *slog.Logger, execCtx *models.ExecutionContext) (*interpreter.Program, *Outcome) {
	graph, err := d.graphs.LoadGraph(ctx, execCtx.TenantID, execCtx.FlowID)
	if err != nil {
		if !persistence.IsGraphNotFound(err) {
			logger.ErrorContext(ctx, "Failed to load flow", "error", err)

			return nil, &Outcome{FlowID: execCtx.FlowID, Status: execCtx.Status, Err: err}
		}

		outcome := d.finish(ctx, logger, execCtx, models.StepResult{
			NodeID:   execCtx.CurrentNodeID,
			Terminal: true,
			Reason:   models.ReasonGraphNodeMissing,
			Err:      fmt.Errorf("%w: flow %s deleted", models.ErrGraphNodeMissing, execCtx.FlowID),
		}, 0)

		return nil, &outcome
	}

	prog, err := interpreter.Compile(d.registry, graph)
	if err != nil {
		outcome := d.finish(ctx, logger, execCtx, models.StepResult{
			NodeID:   execCtx.CurrentNodeID,
			Terminal: true,
			Reason:   models.ReasonNodeConfigInvalid,
			Err:      err,
		}, 0)

		return nil, &outcome
	}

	return prog, nil
}

// run advances execCtx until the flow suspends or ends. Message and handoff
// effects are awaited before moving on so a conversation's messages go out
// in order; webhook effects suspend the run and resume through handleResult.
func (d *Dispatcher) run(
	ctx context.Context,
	logger *slog.Logger,
	prog *interpreter.Program,
	execCtx *models.ExecutionContext,
	event models.InboundEvent,
) Outcome {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.run",
		otelhelper.ConversationAttributes(execCtx.TenantID, execCtx.ConversationID, execCtx.FlowID)...)
	defer span.End()

	hops := 0

	for {
		if hops >= d.config.MaxHops {
			logger.WarnContext(ctx, "Hop limit reached", "max_hops", d.config.MaxHops)

			return d.finish(ctx, logger, execCtx, models.StepResult{
				NodeID:   execCtx.CurrentNodeID,
				Terminal: true,
				Reason:   models.ReasonHopLimit,
			}, hops)
		}

		hops++

		step := d.advancer.Advance(prog, execCtx, event)
		next := step.Context

		span.AddEvent("step", traceAttributes(step))

		for _, effect := range step.Effects {
			if effect.Kind == models.EffectCallWebhook {
				return d.awaitWebhook(ctx, logger, execCtx, next, effect, hops)
			}

			result, err := d.perform(ctx, next, effect)
			if err != nil {
				if models.IsPoolSaturated(err) {
					return d.deferRun(ctx, logger, execCtx, hops)
				}

				if ctx.Err() != nil {
					// Closed or shutting down; the close job owns the context now.
					return Outcome{Route: RouteDiscarded, FlowID: execCtx.FlowID, NodeID: execCtx.CurrentNodeID, Hops: hops}
				}

				otelhelper.SetError(span, err, attribute.String(otelhelper.NodeIDKey, effect.NodeID))

				return d.finish(ctx, logger, next, models.StepResult{
					NodeID:   step.NodeID,
					Terminal: true,
					Reason:   models.ReasonFor(err),
					Err:      err,
				}, hops)
			}

			logger.DebugContext(ctx, "Effect applied", "node_id", effect.NodeID, "kind", effect.Kind, "task_id", result.TaskID)
		}

		if step.Terminal {
			if step.Err != nil {
				otelhelper.SetError(span, step.Err)
			}

			return d.finish(ctx, logger, next, step, hops)
		}

		if step.Suspended {
			return d.save(ctx, logger, next, hops)
		}

		execCtx = next
	}
}

// continueFrom runs on from a step computed outside the run loop.
func (d *Dispatcher) continueFrom(
	ctx context.Context,
	logger *slog.Logger,
	prog *interpreter.Program,
	step models.StepResult,
	event models.InboundEvent,
) Outcome {
	if step.Terminal {
		return d.finish(ctx, logger, step.Context, step, 0)
	}

	return d.run(ctx, logger, prog, step.Context, event)
}

// perform submits effect and waits for its result.
func (d *Dispatcher) perform(ctx context.Context, execCtx *models.ExecutionContext, effect models.Effect) (models.WorkerResult, error) {
	future, err := d.pool.Submit(newTask(execCtx, effect))
	if err != nil {
		return models.WorkerResult{}, err
	}

	result, err := future.Wait(ctx)
	if err != nil {
		return models.WorkerResult{}, err
	}

	return result, result.Err()
}

// awaitWebhook submits the webhook call and suspends the conversation
// until its result arrives.
func (d *Dispatcher) awaitWebhook(
	ctx context.Context,
	logger *slog.Logger,
	previous, next *models.ExecutionContext,
	effect models.Effect,
	hops int,
) Outcome {
	task := newTask(next, effect)

	future, err := d.pool.Submit(task)
	if err != nil {
		if models.IsPoolSaturated(err) {
			return d.deferRun(ctx, logger, previous, hops)
		}

		return d.finish(ctx, logger, next, models.StepResult{
			NodeID:   effect.NodeID,
			Terminal: true,
			Reason:   models.ReasonEffectFailed,
			Err:      err,
		}, hops)
	}

	next.PendingTaskID = future.TaskID()

	outcome := d.save(ctx, logger, next, hops)
	if outcome.Err != nil {
		return outcome
	}

	d.inflight.Store(task.TaskID, struct{}{})
	d.wg.Add(1)

	go d.awaitResult(task, future)

	logger.InfoContext(ctx, "Webhook dispatched", "node_id", effect.NodeID, "task_id", task.TaskID)

	return outcome
}

func (d *Dispatcher) awaitResult(task models.WorkerTask, future *workerpool.Future) {
	defer d.wg.Done()

	result, err := future.Wait(d.baseCtx)
	if err != nil {
		d.inflight.Delete(task.TaskID)

		return
	}

	j := newJob("result", func(ctx context.Context) Outcome {
		defer d.inflight.Delete(task.TaskID)

		return d.handleResult(ctx, task, result)
	})
	j.discarded = func() { d.inflight.Delete(task.TaskID) }

	d.enqueue(models.ConversationKey(task.TenantID, task.ConversationID), j, false)
}

// handleResult applies a webhook result, unless the step it answers was
// cancelled or superseded in the meantime.
func (d *Dispatcher) handleResult(ctx context.Context, task models.WorkerTask, result models.WorkerResult) Outcome {
	logger := d.logger.With(
		"tenant_id", task.TenantID,
		"conversation_id", task.ConversationID,
		"node_id", task.NodeID,
		"task_id", task.TaskID,
	)

	execCtx, err := d.contexts.LoadContext(ctx, task.TenantID, task.ConversationID)
	if err != nil && !persistence.IsExecutionContextNotFound(err) {
		logger.ErrorContext(ctx, "Failed to load execution context", "error", err)

		return Outcome{Route: RouteFailed, Err: err}
	}

	if err := checkFresh(execCtx, task); err != nil {
		logger.DebugContext(ctx, "Worker result discarded", "reason", err)

		return Outcome{Route: RouteDiscarded, Err: err}
	}

	logger = logger.With("flow_id", execCtx.FlowID)

	prog, failed := d.load(ctx, logger, execCtx)
	if failed != nil {
		failed.Route = RouteResumed

		return *failed
	}

	step := interpreter.ApplyResult(execCtx, task.NodeID, result)
	if step.Err != nil {
		logger.WarnContext(ctx, "Webhook failed", "status", result.Status, "error", step.Err)
	}

	event := models.InboundEvent{
		TenantID:       task.TenantID,
		ConversationID: task.ConversationID,
		Kind:           models.EventKindResume,
		Timestamp:      d.now().UTC(),
	}

	outcome := d.continueFrom(ctx, logger, prog, step, event)
	outcome.Route = RouteResumed

	return outcome
}

// checkFresh rejects results for contexts that moved on: closed, restarted
// under a new epoch, or no longer waiting on this task.
func checkFresh(execCtx *models.ExecutionContext, task models.WorkerTask) error {
	switch {
	case execCtx == nil:
		return fmt.Errorf("%w: conversation has no flow", models.ErrStaleResultDiscarded)
	case !execCtx.Active():
		return fmt.Errorf("%w: conversation closed", models.ErrStaleResultDiscarded)
	case execCtx.Epoch != task.Epoch:
		return fmt.Errorf("%w: epoch %d, task epoch %d", models.ErrStaleResultDiscarded, execCtx.Epoch, task.Epoch)
	case execCtx.PendingTaskID != task.TaskID:
		return fmt.Errorf("%w: not the pending task", models.ErrStaleResultDiscarded)
	}

	return nil
}

func (d *Dispatcher) handleClose(ctx context.Context, tenantID, conversationID string) Outcome {
	logger := d.logger.With("tenant_id", tenantID, "conversation_id", conversationID)

	execCtx, err := d.contexts.LoadContext(ctx, tenantID, conversationID)
	if err != nil {
		if persistence.IsExecutionContextNotFound(err) {
			return Outcome{Route: RouteClosed, Status: models.ExecutionStatusCancelled}
		}

		logger.ErrorContext(ctx, "Failed to load execution context", "error", err)

		return Outcome{Route: RouteFailed, Err: err}
	}

	tombstone := execCtx.Clone()
	tombstone.Cancelled = true
	tombstone.Status = models.ExecutionStatusCancelled
	tombstone.Epoch++
	tombstone.PendingTaskID = ""
	tombstone.ResumeAt = nil
	tombstone.LastAdvancedAt = d.now().UTC()

	for key := range tombstone.Variables {
		if len(key) > len(models.ReservedPrefix) && key[:len(models.ReservedPrefix)] == models.ReservedPrefix {
			delete(tombstone.Variables, key)
		}
	}

	err = d.contexts.SaveContext(ctx, tombstone)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to store closed context", "error", err)

		return Outcome{Route: RouteFailed, Err: err}
	}

	logger.InfoContext(ctx, "Conversation flow closed", "flow_id", execCtx.FlowID, "epoch", tombstone.Epoch)
	d.publishState(ctx, tombstone, models.ReasonCancelled)

	return Outcome{
		Route:  RouteClosed,
		FlowID: tombstone.FlowID,
		NodeID: tombstone.CurrentNodeID,
		Status: tombstone.Status,
		Reason: models.ReasonCancelled,
	}
}

// deferRun keeps the context at the node whose effect could not be
// submitted; the conversation's next event retries it.
func (d *Dispatcher) deferRun(ctx context.Context, logger *slog.Logger, execCtx *models.ExecutionContext, hops int) Outcome {
	deferred := execCtx.Clone()
	deferred.Status = models.ExecutionStatusDeferred
	deferred.ResumeAt = nil

	logger.WarnContext(ctx, "Worker pool saturated; flow execution deferred", "node_id", deferred.CurrentNodeID)

	return d.save(ctx, logger, deferred, hops)
}

func (d *Dispatcher) save(ctx context.Context, logger *slog.Logger, execCtx *models.ExecutionContext, hops int) Outcome {
	outcome := Outcome{
		FlowID: execCtx.FlowID,
		NodeID: execCtx.CurrentNodeID,
		Status: execCtx.Status,
		Hops:   hops,
	}

	if ctx.Err() != nil {
		outcome.Route = RouteDiscarded

		return outcome
	}

	err := d.contexts.SaveContext(ctx, execCtx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to store execution context", "error", err)
		outcome.Route = RouteFailed
		outcome.Err = err

		return outcome
	}

	logger.DebugContext(ctx, "Execution suspended", "node_id", execCtx.CurrentNodeID, "status", execCtx.Status)
	d.publishState(ctx, execCtx, models.ReasonNone)

	return outcome
}

// finish ends the automated flow. A handoff keeps the context so later
// events stay with the human agent; any other end removes it so the next
// message matches triggers again.
func (d *Dispatcher) finish(
	ctx context.Context,
	logger *slog.Logger,
	execCtx *models.ExecutionContext,
	step models.StepResult,
	hops int,
) Outcome {
	outcome := Outcome{
		FlowID: execCtx.FlowID,
		NodeID: step.NodeID,
		Reason: step.Reason,
		Hops:   hops,
		Err:    step.Err,
	}

	if ctx.Err() != nil {
		outcome.Route = RouteDiscarded

		return outcome
	}

	var err error

	if step.Reason == models.ReasonHandoff {
		handedOff := execCtx.Clone()
		handedOff.Status = models.ExecutionStatusHandedOff
		handedOff.ResumeAt = nil
		handedOff.PendingTaskID = ""
		outcome.Status = handedOff.Status

		err = d.contexts.SaveContext(ctx, handedOff)
	} else {
		err = d.contexts.DeleteContext(ctx, execCtx.TenantID, execCtx.ConversationID)
	}

	if err != nil {
		logger.ErrorContext(ctx, "Failed to store finished execution", "error", err)
		outcome.Route = RouteFailed
		outcome.Err = errors.Join(step.Err, err)

		return outcome
	}

	switch {
	case step.Reason.Surfaced():
		logger.ErrorContext(ctx, "Flow terminated", "node_id", step.NodeID, "reason", step.Reason, "error", step.Err)
		d.publishFailure(ctx, execCtx, step.Reason, step.Err)
	case step.Err != nil:
		logger.WarnContext(ctx, "Flow terminated", "node_id", step.NodeID, "reason", step.Reason, "error", step.Err)
		d.publishState(ctx, execCtx, step.Reason)
	default:
		logger.InfoContext(ctx, "Flow finished", "node_id", step.NodeID, "reason", step.Reason, "hops", hops)
		d.publishState(ctx, execCtx, step.Reason)
	}

	return outcome
}

func (d *Dispatcher) publishState(ctx context.Context, execCtx *models.ExecutionContext, reason models.Reason) {
	d.publish(ctx, execCtx, events.TicketUpdated(ticketState(execCtx, reason)))
}

func (d *Dispatcher) publishFailure(ctx context.Context, execCtx *models.ExecutionContext, reason models.Reason, err error) {
	d.publish(ctx, execCtx, events.TicketFailed(ticketState(execCtx, reason), err))
}

func (d *Dispatcher) publish(ctx context.Context, execCtx *models.ExecutionContext, event events.Event) {
	if d.publisher == nil {
		return
	}

	for _, topic := range []string{events.TopicTicket, execCtx.ConversationID} {
		if err := d.publisher.Publish(ctx, execCtx.TenantID, topic, event); err != nil {
			d.logger.WarnContext(ctx, "Failed to publish ticket event", "error", err, "topic", topic)
		}
	}
}

func ticketState(execCtx *models.ExecutionContext, reason models.Reason) events.TicketState {
	status := execCtx.Status
	if reason != models.ReasonNone && reason != models.ReasonHandoff && reason != models.ReasonCancelled {
		status = ""
	}

	return events.TicketState{
		TenantID:       execCtx.TenantID,
		ConversationID: execCtx.ConversationID,
		FlowID:         execCtx.FlowID,
		NodeID:         execCtx.CurrentNodeID,
		Status:         status,
		Reason:         reason,
	}
}

func newTask(execCtx *models.ExecutionContext, effect models.Effect) models.WorkerTask {
	return models.WorkerTask{
		TaskID:         uuid.NewString(),
		TenantID:       execCtx.TenantID,
		ConversationID: execCtx.ConversationID,
		NodeID:         effect.NodeID,
		Epoch:          execCtx.Epoch,
		Payload:        effect,
	}
}

func traceAttributes(step models.StepResult) trace.EventOption {
	return trace.WithAttributes(
		attribute.String(otelhelper.NodeIDKey, step.NodeID),
		attribute.String(otelhelper.ReasonKey, string(step.Reason)),
		attribute.Bool("flowengine.suspended", step.Suspended),
	)
}
