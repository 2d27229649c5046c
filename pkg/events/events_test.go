package events

import (
	"errors"
	"testing"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	state := TicketState{TenantID: "acme", ConversationID: "c1", Reason: models.ReasonEffectTimeout}

	updated := TicketUpdated(state)
	assert.Equal(t, EventType("ticket.update"), updated.GetType())
	assert.NotEmpty(t, updated.ID)
	assert.False(t, updated.Timestamp.IsZero())

	failed := TicketFailed(state, errors.New("gateway timeout"))
	assert.Equal(t, "gateway timeout", failed.Payload.(TicketState).Error)

	message := MessageCreated(MessageSent{TenantID: "acme", ConversationID: "c1", Text: "oi"})
	assert.Equal(t, EventType("message.create"), message.GetType())
	assert.True(t, message.Payload.(MessageSent).FromMe)

	notification := NotificationCreated(Notification{TenantID: "acme", Title: "new ticket"})
	assert.Equal(t, EntityNotification, notification.Entity)

	assert.NotEqual(t, updated.ID, failed.ID)
}
