package cmd

import (
	"fmt"
	"log/slog"

	"github.com/KallebyX/simao-sub001/pkg/channels/gochannel"
	"github.com/KallebyX/simao-sub001/pkg/channels/kafka"
	"github.com/KallebyX/simao-sub001/pkg/channels/nats"
	"github.com/KallebyX/simao-sub001/pkg/config"
	"github.com/KallebyX/simao-sub001/pkg/eventbus"
	"github.com/ThreeDotsLabs/watermill"
)

// NewEventBus creates the local realtime bus.
func NewEventBus(cfg config.BusConfig, logger *slog.Logger) *eventbus.Bus {
	return eventbus.New(cfg.BufferSize, logger)
}

// NewTransport creates the transport that relays realtime events between
// instances. The memory provider uses an in-process channel, which only
// makes sense for a single instance.
func NewTransport(cfg config.BusConfig, instanceID string, logger *slog.Logger) (eventbus.Transport, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch cfg.Provider {
	case config.BusKafka:
		pub, sub, err := kafka.CreateChannel(wmLogger, cfg.KafkaBrokers, "flowengine-"+instanceID)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillTransport(pub, sub, cfg.Topic, logger), nil
	case config.BusNATS:
		transport, err := nats.New(nats.Config{URL: cfg.NATSURL, Subject: cfg.Topic}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS transport: %w", err)
		}

		return transport, nil
	case config.BusMemory, "":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, err
		}

		return eventbus.NewWatermillTransport(pub, sub, cfg.Topic, logger), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", cfg.Provider)
	}
}

// NewBridge connects bus to the configured transport.
func NewBridge(cfg config.BusConfig, bus *eventbus.Bus, instanceID string, logger *slog.Logger) (*eventbus.Bridge, error) {
	transport, err := NewTransport(cfg, instanceID, logger)
	if err != nil {
		return nil, err
	}

	return eventbus.NewBridge(bus, transport, instanceID, logger), nil
}
