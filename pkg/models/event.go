package models

import "time"

// EventKind separates channel messages from scheduler resumptions.
type EventKind string

const (
	EventKindMessage EventKind = "message"
	EventKindResume  EventKind = "resume"
)

// InboundEvent is what the messaging channel (or the wait scheduler) hands
// to the dispatcher.
type InboundEvent struct {
	TenantID       string         `json:"tenant_id"                validate:"required"`
	ChannelID      string         `json:"channel_id"`
	ConversationID string         `json:"conversation_id"          validate:"required"`
	Text           string         `json:"text"`
	MediaRefs      []string       `json:"media_refs,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Kind           EventKind      `json:"kind,omitempty"`
	Variables      map[string]any `json:"variables,omitempty"`
	// ReceivedAt is when the dispatcher accepted the event. Timestamp is
	// whatever the channel reported and can lag behind it.
	ReceivedAt time.Time `json:"-"`
}

// IsResume reports whether the event comes from the wait scheduler.
func (e InboundEvent) IsResume() bool {
	return e.Kind == EventKindResume
}

// AsMap exposes the event to condition predicates and templates.
func (e InboundEvent) AsMap() map[string]any {
	mediaRefs := make([]any, 0, len(e.MediaRefs))
	for _, ref := range e.MediaRefs {
		mediaRefs = append(mediaRefs, ref)
	}

	return map[string]any{
		"tenantId":       e.TenantID,
		"channelId":      e.ChannelID,
		"conversationId": e.ConversationID,
		"text":           e.Text,
		"mediaRefs":      mediaRefs,
		"timestamp":      e.Timestamp.UTC().Format(time.RFC3339),
		"kind":           string(e.Kind),
	}
}
