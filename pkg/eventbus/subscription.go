package eventbus

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/KallebyX/simao-sub001/pkg/events"
)

// Subscription is one connected realtime subscriber. It never outlives the
// connection that created it; Close it on disconnect.
type Subscription struct {
	bus      *Bus
	tenantID string
	id       string
	ch       chan events.Event
	dropped  atomic.Int64

	mu     sync.RWMutex
	topics map[string]struct{}

	closeOnce sync.Once
}

func newSubscription(bus *Bus, tenantID, id string, buffer int, topics []string) *Subscription {
	sub := &Subscription{
		bus:      bus,
		tenantID: tenantID,
		id:       id,
		ch:       make(chan events.Event, buffer),
		topics:   make(map[string]struct{}, len(topics)),
	}

	for _, topic := range topics {
		if topic != "" {
			sub.topics[topic] = struct{}{}
		}
	}

	return sub
}

// ID returns the subscriber id.
func (s *Subscription) ID() string {
	return s.id
}

// TenantID returns the tenant the subscription belongs to.
func (s *Subscription) TenantID() string {
	return s.tenantID
}

// Events returns the delivery channel. It is closed on Close.
func (s *Subscription) Events() <-chan events.Event {
	return s.ch
}

// Join adds a topic without reconnecting.
func (s *Subscription) Join(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.topics[topic] = struct{}{}
}

// Leave removes a topic.
func (s *Subscription) Leave(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.topics, topic)
}

// Has reports whether the subscriber listens to topic.
func (s *Subscription) Has(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.topics[topic]

	return ok
}

// Topics returns the current topics in sorted order.
func (s *Subscription) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.topics))
	for topic := range s.topics {
		out = append(out, topic)
	}

	sort.Strings(out)

	return out
}

// Dropped returns how many events were missed because the buffer was full.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close disconnects the subscriber.
func (s *Subscription) Close() {
	s.bus.Unsubscribe(s)
}

// closeChannel must be called with the namespace lock held.
func (s *Subscription) closeChannel() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}
