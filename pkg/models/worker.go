package models

import (
	"fmt"
	"time"
)

// EffectKind names an externally visible action.
type EffectKind string

const (
	EffectSendMessage  EffectKind = "send_message"
	EffectCallWebhook  EffectKind = "call_webhook"
	EffectRouteToQueue EffectKind = "route_to_queue"
)

// MessageContent is the body of an outbound message.
type MessageContent struct {
	Text      string   `json:"text,omitempty"`
	MediaRefs []string `json:"media_refs,omitempty"`
}

// WebhookRequest describes an external webhook call. Fields are set on top
// of Payload by JSON path before sending; ResponseMapping maps variable names
// to paths in the response body. OnSuccess and OnError are the nodes the flow
// continues at once the result is delivered.
type WebhookRequest struct {
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	Headers         map[string]string `json:"headers,omitempty"`
	Payload         map[string]any    `json:"payload"`
	Fields          map[string]any    `json:"fields,omitempty"`
	ResponseMapping map[string]string `json:"response_mapping,omitempty"`
	OnSuccess       string            `json:"on_success,omitempty"`
	OnError         string            `json:"on_error,omitempty"`
}

// Handoff routes a ticket to a human queue.
type Handoff struct {
	QueueID string `json:"queue_id"`
	UserID  string `json:"user_id,omitempty"`
}

// Effect is produced by the interpreter and executed by the worker pool.
type Effect struct {
	Kind    EffectKind      `json:"kind"`
	NodeID  string          `json:"node_id"`
	Message *MessageContent `json:"message,omitempty"`
	Webhook *WebhookRequest `json:"webhook,omitempty"`
	Handoff *Handoff        `json:"handoff,omitempty"`
}

// WorkerTask is the envelope sent to the pool. TaskID is the only
// correlation key between dispatch and completion.
type WorkerTask struct {
	TaskID         string    `json:"task_id"`
	TenantID       string    `json:"tenant_id"`
	ConversationID string    `json:"conversation_id"`
	NodeID         string    `json:"node_id"`
	Epoch          uint64    `json:"epoch"`
	Payload        Effect    `json:"payload"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// TaskStatus is the outcome of a worker task.
type TaskStatus string

const (
	TaskStatusSucceeded     TaskStatus = "succeeded"
	TaskStatusFailed        TaskStatus = "failed"
	TaskStatusTimeout       TaskStatus = "timeout"
	TaskStatusWorkerCrashed TaskStatus = "worker_crashed"
	TaskStatusCancelled     TaskStatus = "cancelled"
)

// WorkerResult answers a WorkerTask.
type WorkerResult struct {
	TaskID         string         `json:"task_id"`
	Status         TaskStatus     `json:"status"`
	EffectsApplied []EffectKind   `json:"effects_applied,omitempty"`
	NextNodeID     *string        `json:"next_node_id"`
	Variables      map[string]any `json:"variables,omitempty"`
	Error          string         `json:"error,omitempty"`
	WorkerID       int            `json:"worker_id"`
}

// Err maps a non-successful status onto the error taxonomy.
func (r WorkerResult) Err() error {
	switch r.Status {
	case TaskStatusSucceeded:
		return nil
	case TaskStatusTimeout:
		return fmt.Errorf("task %s: %w", r.TaskID, ErrEffectTimeout)
	case TaskStatusWorkerCrashed:
		return fmt.Errorf("task %s: %w: %s", r.TaskID, ErrWorkerCrashed, r.Error)
	case TaskStatusCancelled:
		return fmt.Errorf("task %s: %w", r.TaskID, ErrTaskCancelled)
	default:
		return fmt.Errorf("task %s failed: %s", r.TaskID, r.Error)
	}
}
