package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/KallebyX/simao-sub001/pkg/events"
	"github.com/google/uuid"
)

// Transport moves envelopes between engine instances.
type Transport interface {
	Publish(ctx context.Context, envelope events.Envelope) error
	Subscribe(ctx context.Context) (<-chan events.Envelope, error)
	Close() error
}

// Bridge relays events between the local bus and other instances so a
// subscriber connected to any instance sees its tenant's events. Envelopes
// published by this instance are skipped on the way back in.
type Bridge struct {
	bus        *Bus
	transport  Transport
	instanceID string
	logger     *slog.Logger

	wg   sync.WaitGroup
	stop context.CancelFunc
}

// NewBridge creates a bridge. An empty instanceID gets a generated one.
func NewBridge(bus *Bus, transport Transport, instanceID string, logger *slog.Logger) *Bridge {
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	return &Bridge{
		bus:        bus,
		transport:  transport,
		instanceID: instanceID,
		logger:     logger.With("module", "eventbus_bridge", "instance_id", instanceID),
	}
}

// InstanceID returns the origin stamped on outgoing envelopes.
func (b *Bridge) InstanceID() string {
	return b.instanceID
}

// Start installs the forwarder on the bus and starts relaying inbound
// envelopes until Close.
func (b *Bridge) Start(ctx context.Context) error {
	if b.stop != nil {
		return errors.New("bridge already started")
	}

	ctx, cancel := context.WithCancel(ctx)

	inbound, err := b.transport.Subscribe(ctx)
	if err != nil {
		cancel()

		return fmt.Errorf("failed to start bridge: %w", err)
	}

	b.stop = cancel
	b.bus.SetForwarder(b.forward)

	b.wg.Add(1)

	go b.relay(ctx, inbound)

	b.logger.InfoContext(ctx, "Event bus bridge started")

	return nil
}

func (b *Bridge) forward(ctx context.Context, tenantID, topic string, event events.Event) error {
	return b.transport.Publish(ctx, events.Envelope{
		Origin:   b.instanceID,
		TenantID: tenantID,
		Topic:    topic,
		Event:    event,
	})
}

func (b *Bridge) relay(ctx context.Context, inbound <-chan events.Envelope) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case envelope, ok := <-inbound:
			if !ok {
				return
			}

			if envelope.Origin == b.instanceID || envelope.TenantID == "" {
				continue
			}

			b.bus.Deliver(envelope.TenantID, envelope.Topic, envelope.Event)
		}
	}
}

// Close stops relaying and closes the transport.
func (b *Bridge) Close() error {
	b.bus.SetForwarder(nil)

	if b.stop != nil {
		b.stop()
	}

	b.wg.Wait()

	return b.transport.Close()
}
