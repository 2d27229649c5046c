//go:build integration
// +build integration

package kafka

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/eventbus"
	"github.com/KallebyX/simao-sub001/pkg/events"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

func setupKafkaContainer(t *testing.T) []string {
	t.Helper()

	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("test-cluster"),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, kafkaContainer.Terminate(context.Background()))
	})

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)

	return brokers
}

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	_, _, err := CreateChannel(watermill.NopLogger{}, nil, "group")
	assert.Error(t, err)
}

func TestCreateChannel_BridgesInstances(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Kafka integration test in short mode")
	}

	brokers := setupKafkaContainer(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	wmLogger := watermill.NewSlogLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newInstance := func(id string) *eventbus.Bus {
		pub, sub, err := CreateChannel(wmLogger, brokers, "flowengine-"+id)
		require.NoError(t, err)

		bus := eventbus.New(16, logger)
		bridge := eventbus.NewBridge(bus, eventbus.NewWatermillTransport(pub, sub, events.Topic, logger), id, logger)
		require.NoError(t, bridge.Start(ctx))

		t.Cleanup(func() {
			_ = bridge.Close()
		})

		return bus
	}

	busA := newInstance("instance-a")
	busB := newInstance("instance-b")

	remote, err := busB.Subscribe("acme", "dash-b", []string{events.TopicTicket})
	require.NoError(t, err)

	// Subscribers start at the newest offset, so publish until the consumer
	// group of instance b has joined.
	assert.Eventually(t, func() bool {
		event := events.TicketUpdated(events.TicketState{TenantID: "acme", ConversationID: "c1"})
		require.NoError(t, busA.Publish(ctx, "acme", events.TopicTicket, event))

		select {
		case relayed := <-remote.Events():
			return relayed.Topic == events.TopicTicket
		case <-time.After(time.Second):
			return false
		}
	}, time.Minute, 100*time.Millisecond)
}
