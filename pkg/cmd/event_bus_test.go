package cmd

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/config"
	"github.com/KallebyX/simao-sub001/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBridge_Memory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.DiscardHandler)
	cfg := config.BusConfig{Provider: config.BusMemory, BufferSize: 4, Topic: events.Topic}

	bus := NewEventBus(cfg, logger)
	defer bus.Close()

	bridge, err := NewBridge(cfg, bus, "instance-a", logger)
	require.NoError(t, err)
	require.NoError(t, bridge.Start(ctx))

	sub, err := bus.Subscribe("acme", "dash", []string{events.TopicTicket})
	require.NoError(t, err)

	event := events.TicketUpdated(events.TicketState{TenantID: "acme", ConversationID: "c1"})
	require.NoError(t, bus.Publish(ctx, "acme", events.TopicTicket, event))

	select {
	case received := <-sub.Events():
		assert.Equal(t, event.ID, received.ID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	assert.Equal(t, "instance-a", bridge.InstanceID())
	assert.NoError(t, bridge.Close())
}

func TestNewTransport_Errors(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	tests := []struct {
		name string
		cfg  config.BusConfig
	}{
		{name: "unknown provider", cfg: config.BusConfig{Provider: "carrier-pigeon"}},
		{name: "kafka without brokers", cfg: config.BusConfig{Provider: config.BusKafka}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransport(tt.cfg, "instance-a", logger)
			assert.Error(t, err)
		})
	}
}
