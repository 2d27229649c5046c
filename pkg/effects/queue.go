package effects

import (
	"context"

	"github.com/KallebyX/simao-sub001/pkg/eventbus"
	"github.com/KallebyX/simao-sub001/pkg/events"
	"github.com/KallebyX/simao-sub001/pkg/models"
)

// TicketStatusPending is the status topic of tickets waiting for an agent.
const TicketStatusPending = "pending"

// BusQueueRouter announces handoffs on the tenant bus; the human ticket
// service picks them up from the ticket and pending topics.
type BusQueueRouter struct {
	publisher eventbus.Publisher
}

func NewBusQueueRouter(publisher eventbus.Publisher) *BusQueueRouter {
	return &BusQueueRouter{publisher: publisher}
}

func (r *BusQueueRouter) RouteToQueue(ctx context.Context, tenantID, conversationID string, handoff models.Handoff) error {
	state := events.TicketState{
		TenantID:       tenantID,
		ConversationID: conversationID,
		Reason:         models.ReasonHandoff,
		QueueID:        handoff.QueueID,
		UserID:         handoff.UserID,
	}

	for _, topic := range []string{events.TopicTicket, TicketStatusPending, conversationID} {
		if err := r.publisher.Publish(ctx, tenantID, topic, events.TicketUpdated(state)); err != nil {
			return err
		}
	}

	return nil
}
