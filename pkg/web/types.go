package web

import (
	"time"

	"github.com/KallebyX/simao-sub001/pkg/dispatcher"
	"github.com/KallebyX/simao-sub001/pkg/models"
)

// InboundEventRequest is a message delivered by a messaging channel. The
// tenant is the caller's company.
type InboundEventRequest struct {
	ChannelID      string         `json:"channelId"`
	ConversationID string         `json:"conversationId" validate:"required"`
	Text           string         `json:"text"`
	MediaRefs      []string       `json:"mediaRefs"`
	Timestamp      *time.Time     `json:"timestamp"`
	Variables      map[string]any `json:"variables"`
}

// ToEvent builds the dispatcher event for tenantID.
func (r InboundEventRequest) ToEvent(tenantID string) models.InboundEvent {
	event := models.InboundEvent{
		TenantID:       tenantID,
		ChannelID:      r.ChannelID,
		ConversationID: r.ConversationID,
		Text:           r.Text,
		MediaRefs:      r.MediaRefs,
		Kind:           models.EventKindMessage,
		Variables:      r.Variables,
	}

	if r.Timestamp != nil {
		event.Timestamp = r.Timestamp.UTC()
	}

	return event
}

// OutcomeResponse reports how an event was handled. Only returned when the
// caller asked to wait.
type OutcomeResponse struct {
	Route    dispatcher.Route       `json:"route"`
	FlowID   string                 `json:"flowId,omitempty"`
	NodeID   string                 `json:"nodeId,omitempty"`
	Status   models.ExecutionStatus `json:"status,omitempty"`
	Reason   models.Reason          `json:"reason,omitempty"`
	Deferred bool                   `json:"deferred"`
	Error    string                 `json:"error,omitempty"`
}

func newOutcomeResponse(outcome dispatcher.Outcome) OutcomeResponse {
	response := OutcomeResponse{
		Route:    outcome.Route,
		FlowID:   outcome.FlowID,
		NodeID:   outcome.NodeID,
		Status:   outcome.Status,
		Reason:   outcome.Reason,
		Deferred: outcome.Deferred(),
	}

	if outcome.Err != nil {
		response.Error = outcome.Err.Error()
	}

	return response
}

// TriggerRequest creates or replaces a campaign trigger.
type TriggerRequest struct {
	ID        string               `json:"id"        validate:"required"`
	ChannelID string               `json:"channelId"`
	Name      string               `json:"name"`
	Phrase    string               `json:"phrase"    validate:"required"`
	FlowID    string               `json:"flowId"    validate:"required"`
	Status    models.TriggerStatus `json:"status"    validate:"omitempty,oneof=active inactive"`
}

// DefaultFlowsRequest sets the fallback flows of a tenant or channel.
type DefaultFlowsRequest struct {
	ChannelID      string `json:"channelId"`
	WelcomeFlowID  string `json:"welcomeFlowId"`
	NoPhraseFlowID string `json:"noPhraseFlowId"`
}

// RealtimeMessage is one server-sent event.
type RealtimeMessage struct {
	Action  string `json:"action"`
	Entity  string `json:"entity"`
	Topic   string `json:"topic,omitempty"`
	Payload any    `json:"payload"`
}
