// Package cache keeps recently loaded flow graphs, triggers and default
// flows in process memory in front of a slower graph store.
package cache

import (
	"context"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
	c "github.com/patrickmn/go-cache"
)

// GraphStore caches reads of the wrapped store for ttl. Edits made by the
// flow editor are visible once the entry expires; running executions keep
// the snapshot they started with either way.
type GraphStore struct {
	inner persistence.GraphStore
	cache *c.Cache
}

var _ persistence.GraphStore = (*GraphStore)(nil)

func NewGraphStore(inner persistence.GraphStore, ttl time.Duration) *GraphStore {
	return &GraphStore{
		inner: inner,
		cache: c.New(ttl, 2*ttl),
	}
}

func (s *GraphStore) LoadGraph(ctx context.Context, tenantID, flowID string) (*models.FlowGraph, error) {
	key := "graph:" + tenantID + "/" + flowID

	if cached, found := s.cache.Get(key); found {
		return cached.(*models.FlowGraph), nil
	}

	graph, err := s.inner.LoadGraph(ctx, tenantID, flowID)
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(key, graph)

	return graph, nil
}

func (s *GraphStore) Triggers(ctx context.Context, tenantID, channelID string) ([]*models.Trigger, error) {
	key := "triggers:" + tenantID + "/" + channelID

	if cached, found := s.cache.Get(key); found {
		return cached.([]*models.Trigger), nil
	}

	triggers, err := s.inner.Triggers(ctx, tenantID, channelID)
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(key, triggers)

	return triggers, nil
}

// DefaultFlows caches misses too, since most tenants configure none.
func (s *GraphStore) DefaultFlows(ctx context.Context, tenantID, channelID string) (*models.DefaultFlows, error) {
	key := "defaults:" + tenantID + "/" + channelID

	if cached, found := s.cache.Get(key); found {
		return cached.(*models.DefaultFlows), nil
	}

	defaults, err := s.inner.DefaultFlows(ctx, tenantID, channelID)
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(key, defaults)

	return defaults, nil
}

// Invalidate drops every cached entry.
func (s *GraphStore) Invalidate() {
	s.cache.Flush()
}
