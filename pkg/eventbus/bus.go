// Package eventbus provides the tenant-scoped realtime event bus. Every tenant
// has its own namespace; events published for one tenant are never delivered
// to subscribers of another, whatever the topic.
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

var (
	ErrDuplicateSubscriber = errors.New("subscriber already connected")
	ErrSubscriberNotFound  = errors.New("subscriber not found")
	ErrBusClosed           = errors.New("event bus is closed")
)

// Publisher is the publishing side of the bus.
type Publisher interface {
	Publish(ctx context.Context, tenantID, topic string, event events.Event) error
}

// Forwarder receives every locally published event, e.g. to relay it to
// other engine instances.
type Forwarder func(ctx context.Context, tenantID, topic string, event events.Event) error

// Bus is the tenant event bus. The namespace map has its own lock; each
// namespace guards its subscriptions with a per-tenant lock so connects and
// disconnects of one tenant never contend with another.
type Bus struct {
	logger     *slog.Logger
	bufferSize int

	mu         sync.RWMutex
	namespaces map[string]*namespace
	forwarder  Forwarder
	closed     bool
}

type namespace struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription
}

// New creates a bus whose subscriptions buffer up to bufferSize events.
func New(bufferSize int, logger *slog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}

	return &Bus{
		logger:     logger.With("module", "eventbus"),
		bufferSize: bufferSize,
		namespaces: make(map[string]*namespace),
	}
}

// SetForwarder installs the hook that receives locally published events.
func (b *Bus) SetForwarder(f Forwarder) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.forwarder = f
}

// Publish delivers event to the tenant's subscribers of topic. Delivery is
// at-most-once: a subscriber whose buffer is full misses the event.
func (b *Bus) Publish(ctx context.Context, tenantID, topic string, event events.Event) error {
	b.mu.RLock()
	closed := b.closed
	forwarder := b.forwarder
	b.mu.RUnlock()

	if closed {
		return ErrBusClosed
	}

	b.Deliver(tenantID, topic, event)

	if forwarder != nil {
		if err := forwarder(ctx, tenantID, topic, event); err != nil {
			return fmt.Errorf("failed to forward event: %w", err)
		}
	}

	return nil
}

// Deliver fans event out to local subscribers only. It returns the number
// of subscribers that received it.
func (b *Bus) Deliver(tenantID, topic string, event events.Event) int {
	b.mu.RLock()
	ns, ok := b.namespaces[tenantID]
	b.mu.RUnlock()

	if !ok {
		return 0
	}

	event.Topic = topic
	delivered := 0

	ns.mu.RLock()
	defer ns.mu.RUnlock()

	for _, sub := range ns.subscribers {
		if !sub.Has(topic) {
			continue
		}

		select {
		case sub.ch <- event:
			delivered++
		default:
			sub.dropped.Add(1)
			b.logger.Debug("Subscriber buffer full, event dropped",
				"tenant_id", tenantID,
				"subscriber_id", sub.id,
				"topic", topic,
			)
		}
	}

	return delivered
}

// Subscribe registers a subscriber in the tenant's namespace. An empty
// subscriberID gets a generated one.
func (b *Bus) Subscribe(tenantID, subscriberID string, topics []string) (*Subscription, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}

	if subscriberID == "" {
		subscriberID = uuid.NewString()
	}

	sub := newSubscription(b, tenantID, subscriberID, b.bufferSize, topics)

	// The namespace map stays locked while inserting so a concurrent prune
	// cannot drop the namespace between lookup and insert.
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()

		return nil, ErrBusClosed
	}

	if ns, ok := b.namespaces[tenantID]; ok {
		err := ns.add(sub)
		b.mu.RUnlock()

		return b.connected(sub, err)
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	ns, ok := b.namespaces[tenantID]
	if !ok {
		ns = &namespace{subscribers: make(map[string]*Subscription)}
		b.namespaces[tenantID] = ns
	}

	return b.connected(sub, ns.add(sub))
}

func (b *Bus) connected(sub *Subscription, err error) (*Subscription, error) {
	if err != nil {
		return nil, err
	}

	b.logger.Debug("Subscriber connected", "tenant_id", sub.tenantID, "subscriber_id", sub.id, "topics", sub.Topics())

	return sub, nil
}

func (ns *namespace) add(sub *Subscription) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if _, exists := ns.subscribers[sub.id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSubscriber, sub.id)
	}

	ns.subscribers[sub.id] = sub

	return nil
}

// Lookup finds a connected subscriber of the tenant.
func (b *Bus) Lookup(tenantID, subscriberID string) (*Subscription, error) {
	b.mu.RLock()
	ns, ok := b.namespaces[tenantID]
	b.mu.RUnlock()

	if !ok {
		return nil, ErrSubscriberNotFound
	}

	ns.mu.RLock()
	defer ns.mu.RUnlock()

	sub, ok := ns.subscribers[subscriberID]
	if !ok {
		return nil, ErrSubscriberNotFound
	}

	return sub, nil
}

// Unsubscribe removes the subscription and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.RLock()
	ns, ok := b.namespaces[sub.tenantID]
	b.mu.RUnlock()

	if !ok {
		sub.closeChannel()

		return
	}

	ns.mu.Lock()
	if current, found := ns.subscribers[sub.id]; found && current == sub {
		delete(ns.subscribers, sub.id)
	}

	sub.closeChannel()
	ns.mu.Unlock()

	b.prune(sub.tenantID)

	b.logger.Debug("Subscriber disconnected", "tenant_id", sub.tenantID, "subscriber_id", sub.id)
}

func (b *Bus) prune(tenantID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns, ok := b.namespaces[tenantID]
	if !ok {
		return
	}

	ns.mu.RLock()
	empty := len(ns.subscribers) == 0
	ns.mu.RUnlock()

	if empty {
		delete(b.namespaces, tenantID)
	}
}

// Subscribers returns the number of connected subscribers of a tenant.
func (b *Bus) Subscribers(tenantID string) int {
	b.mu.RLock()
	ns, ok := b.namespaces[tenantID]
	b.mu.RUnlock()

	if !ok {
		return 0
	}

	ns.mu.RLock()
	defer ns.mu.RUnlock()

	return len(ns.subscribers)
}

// Close disconnects every subscriber and rejects further use.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true

	for tenantID, ns := range b.namespaces {
		ns.mu.Lock()
		for _, sub := range ns.subscribers {
			sub.closeChannel()
		}

		ns.subscribers = map[string]*Subscription{}
		ns.mu.Unlock()

		delete(b.namespaces, tenantID)
	}

	return nil
}
