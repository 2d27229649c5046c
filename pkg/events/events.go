// Package events defines the realtime events fanned out to tenant subscribers.
package events

import (
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Action is what happened to an entity.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Entity is what an event is about.
type Entity string

const (
	EntityTicket       Entity = "ticket"
	EntityMessage      Entity = "message"
	EntityNotification Entity = "notification"
)

// Well-known subscription topics. Conversation ids and ticket statuses are
// topics too.
const (
	TopicTicket       = "ticket"
	TopicNotification = "notification"
)

// Bridge transport topic and metadata keys.
const Topic = "flowengine.realtime"

const (
	EventMetadataKey     = "key"
	EventTypeMetadataKey = "event_type"
	OriginMetadataKey    = "origin"
)

// Event is delivered to realtime subscribers.
type Event struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Entity    Entity    `json:"entity"`
	Topic     string    `json:"topic,omitempty"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// GetType returns "<entity>.<action>".
func (e Event) GetType() EventType {
	return EventType(string(e.Entity) + "." + string(e.Action))
}

// NewEvent creates an event with a fresh id.
func NewEvent(action Action, entity Entity, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Action:    action,
		Entity:    entity,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// TicketState is the ticket payload: where the conversation's flow stands.
type TicketState struct {
	TenantID       string                 `json:"tenant_id"`
	ConversationID string                 `json:"conversation_id"`
	FlowID         string                 `json:"flow_id,omitempty"`
	NodeID         string                 `json:"node_id,omitempty"`
	Status         models.ExecutionStatus `json:"status,omitempty"`
	Reason         models.Reason          `json:"reason,omitempty"`
	QueueID        string                 `json:"queue_id,omitempty"`
	UserID         string                 `json:"user_id,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

// MessageSent is the message payload of an outbound automated message.
type MessageSent struct {
	TenantID       string   `json:"tenant_id"`
	ConversationID string   `json:"conversation_id"`
	NodeID         string   `json:"node_id"`
	Text           string   `json:"text,omitempty"`
	MediaRefs      []string `json:"media_refs,omitempty"`
	FromMe         bool     `json:"from_me"`
}

// Notification is a per-user alert.
type Notification struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id,omitempty"`
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
}

// TicketUpdated reports a flow state change of a conversation.
func TicketUpdated(state TicketState) Event {
	return NewEvent(ActionUpdate, EntityTicket, state)
}

// TicketFailed reports an error a tenant operator should see.
func TicketFailed(state TicketState, err error) Event {
	if err != nil {
		state.Error = err.Error()
	}

	return NewEvent(ActionUpdate, EntityTicket, state)
}

// MessageCreated reports an automated message sent to a conversation.
func MessageCreated(msg MessageSent) Event {
	msg.FromMe = true

	return NewEvent(ActionCreate, EntityMessage, msg)
}

// NotificationCreated reports a per-user alert.
func NotificationCreated(n Notification) Event {
	return NewEvent(ActionCreate, EntityNotification, n)
}

// Envelope carries an event between engine instances.
type Envelope struct {
	Origin   string `json:"origin"`
	TenantID string `json:"tenant_id"`
	Topic    string `json:"topic"`
	Event    Event  `json:"event"`
}
