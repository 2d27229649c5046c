// Package effects executes the externally visible actions flow steps produce.
// It is the executor the worker pool runs tasks with.
package effects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KallebyX/simao-sub001/pkg/eventbus"
	"github.com/KallebyX/simao-sub001/pkg/events"
	"github.com/KallebyX/simao-sub001/pkg/models"
)

var ErrUnsupportedEffect = errors.New("unsupported effect")

// MessageSender delivers outbound messages through the messaging channel.
type MessageSender interface {
	SendMessage(ctx context.Context, tenantID, conversationID string, content models.MessageContent) error
}

// WebhookCaller performs external webhook calls and returns the variables
// mapped from the response.
type WebhookCaller interface {
	Call(ctx context.Context, request models.WebhookRequest) (map[string]any, error)
}

// QueueRouter hands a ticket over to a human queue.
type QueueRouter interface {
	RouteToQueue(ctx context.Context, tenantID, conversationID string, handoff models.Handoff) error
}

// Executor runs one effect per task.
type Executor struct {
	messages  MessageSender
	webhooks  WebhookCaller
	queues    QueueRouter
	publisher eventbus.Publisher
	logger    *slog.Logger
}

// NewExecutor creates an executor. publisher may be nil.
func NewExecutor(messages MessageSender, webhooks WebhookCaller, queues QueueRouter, publisher eventbus.Publisher, logger *slog.Logger) *Executor {
	return &Executor{
		messages:  messages,
		webhooks:  webhooks,
		queues:    queues,
		publisher: publisher,
		logger:    logger.With("module", "effects"),
	}
}

// Execute performs task's effect.
func (e *Executor) Execute(ctx context.Context, task models.WorkerTask) (models.WorkerResult, error) {
	logger := e.logger.With(
		"task_id", task.TaskID,
		"tenant_id", task.TenantID,
		"conversation_id", task.ConversationID,
		"node_id", task.NodeID,
		"kind", task.Payload.Kind,
	)

	effect := task.Payload

	switch effect.Kind {
	case models.EffectSendMessage:
		if effect.Message == nil {
			return models.WorkerResult{}, fmt.Errorf("%w: message effect without content", ErrUnsupportedEffect)
		}

		return e.sendMessage(ctx, logger, task, *effect.Message)

	case models.EffectCallWebhook:
		if effect.Webhook == nil {
			return models.WorkerResult{}, fmt.Errorf("%w: webhook effect without request", ErrUnsupportedEffect)
		}

		return e.callWebhook(ctx, logger, *effect.Webhook)

	case models.EffectRouteToQueue:
		if effect.Handoff == nil {
			return models.WorkerResult{}, fmt.Errorf("%w: handoff effect without queue", ErrUnsupportedEffect)
		}

		err := e.queues.RouteToQueue(ctx, task.TenantID, task.ConversationID, *effect.Handoff)
		if err != nil {
			return models.WorkerResult{}, fmt.Errorf("failed to route to queue %s: %w", effect.Handoff.QueueID, err)
		}

		logger.InfoContext(ctx, "Ticket routed to queue", "queue_id", effect.Handoff.QueueID)

		return applied(models.EffectRouteToQueue), nil

	default:
		return models.WorkerResult{}, fmt.Errorf("%w: %q", ErrUnsupportedEffect, effect.Kind)
	}
}

func (e *Executor) sendMessage(ctx context.Context, logger *slog.Logger, task models.WorkerTask, content models.MessageContent) (models.WorkerResult, error) {
	err := e.messages.SendMessage(ctx, task.TenantID, task.ConversationID, content)
	if err != nil {
		return models.WorkerResult{}, fmt.Errorf("failed to send message: %w", err)
	}

	logger.DebugContext(ctx, "Message sent")

	if e.publisher != nil {
		event := events.MessageCreated(events.MessageSent{
			TenantID:       task.TenantID,
			ConversationID: task.ConversationID,
			NodeID:         task.NodeID,
			Text:           content.Text,
			MediaRefs:      content.MediaRefs,
		})

		if err := e.publisher.Publish(ctx, task.TenantID, task.ConversationID, event); err != nil {
			logger.WarnContext(ctx, "Failed to publish message event", "error", err)
		}
	}

	return applied(models.EffectSendMessage), nil
}

// callWebhook reports the node the flow continues at in NextNodeID: the
// success target, or the error target when the call failed and one exists.
func (e *Executor) callWebhook(ctx context.Context, logger *slog.Logger, request models.WebhookRequest) (models.WorkerResult, error) {
	variables, err := e.webhooks.Call(ctx, request)
	if err != nil {
		logger.WarnContext(ctx, "Webhook call failed", "url", request.URL, "error", err)

		result := models.WorkerResult{}
		if request.OnError != "" {
			next := request.OnError
			result.NextNodeID = &next
		}

		return result, fmt.Errorf("webhook %s: %w", request.URL, err)
	}

	result := applied(models.EffectCallWebhook)
	result.Variables = variables

	if request.OnSuccess != "" {
		next := request.OnSuccess
		result.NextNodeID = &next
	}

	return result, nil
}

func applied(kind models.EffectKind) models.WorkerResult {
	return models.WorkerResult{
		Status:         models.TaskStatusSucceeded,
		EffectsApplied: []models.EffectKind{kind},
	}
}
