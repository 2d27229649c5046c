package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/KallebyX/simao-sub001/pkg/events"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// WatermillTransport relays envelopes over any watermill pub/sub (Kafka in
// production, gochannel in tests).
type WatermillTransport struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	logger     *slog.Logger
}

// NewWatermillTransport creates a transport on the given topic; an empty
// topic uses events.Topic.
func NewWatermillTransport(pub message.Publisher, sub message.Subscriber, topic string, logger *slog.Logger) *WatermillTransport {
	if topic == "" {
		topic = events.Topic
	}

	return &WatermillTransport{
		publisher:  pub,
		subscriber: sub,
		topic:      topic,
		logger:     logger.With("module", "watermill_transport", "topic", topic),
	}
}

func (t *WatermillTransport) Publish(_ context.Context, envelope events.Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, envelope.TenantID)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(envelope.Event.GetType()))
	msg.Metadata.Set(events.OriginMetadataKey, envelope.Origin)

	return t.publisher.Publish(t.topic, msg)
}

func (t *WatermillTransport) Subscribe(ctx context.Context) (<-chan events.Envelope, error) {
	messages, err := t.subscriber.Subscribe(ctx, t.topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", t.topic, err)
	}

	out := make(chan events.Envelope)

	go func() {
		defer close(out)

		for msg := range messages {
			var envelope events.Envelope

			err := json.Unmarshal(msg.Payload, &envelope)
			if err != nil {
				t.logger.Warn("Dropping malformed envelope", "message_id", msg.UUID, "error", err)
				msg.Ack()

				continue
			}

			select {
			case out <- envelope:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()

				return
			}
		}
	}()

	return out, nil
}

func (t *WatermillTransport) Close() error {
	err := t.publisher.Close()
	if err != nil {
		return err
	}

	return t.subscriber.Close()
}
