package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
	"github.com/KallebyX/simao-sub001/pkg/persistence/cache"
	"github.com/KallebyX/simao-sub001/pkg/persistence/redis"
)

// Store is the persistence the engine runs on: flows from the backend,
// read through a cache, and contexts from Redis when configured.
type Store struct {
	backend  persistence.Persistence
	graphs   persistence.GraphStore
	cached   *cache.GraphStore
	contexts persistence.ContextStore
	redis    *redis.Store
}

var _ persistence.Persistence = (*Store)(nil)

// NewStore combines the stores. A nil redisStore keeps contexts in the
// backend; a zero cacheTTL disables the graph cache.
func NewStore(backend persistence.Persistence, redisStore *redis.Store, cacheTTL time.Duration) *Store {
	s := &Store{
		backend:  backend,
		graphs:   backend,
		contexts: backend,
	}

	if cacheTTL > 0 {
		s.cached = cache.NewGraphStore(backend, cacheTTL)
		s.graphs = s.cached
	}

	if redisStore != nil {
		s.redis = redisStore
		s.contexts = redisStore
	}

	return s
}

func (s *Store) LoadGraph(ctx context.Context, tenantID, flowID string) (*models.FlowGraph, error) {
	return s.graphs.LoadGraph(ctx, tenantID, flowID)
}

func (s *Store) Triggers(ctx context.Context, tenantID, channelID string) ([]*models.Trigger, error) {
	return s.graphs.Triggers(ctx, tenantID, channelID)
}

func (s *Store) DefaultFlows(ctx context.Context, tenantID, channelID string) (*models.DefaultFlows, error) {
	return s.graphs.DefaultFlows(ctx, tenantID, channelID)
}

func (s *Store) SaveGraph(ctx context.Context, graph *models.FlowGraph) error {
	defer s.invalidate()

	return s.backend.SaveGraph(ctx, graph)
}

func (s *Store) DeleteGraph(ctx context.Context, tenantID, flowID string) error {
	defer s.invalidate()

	return s.backend.DeleteGraph(ctx, tenantID, flowID)
}

func (s *Store) SaveTrigger(ctx context.Context, trigger *models.Trigger) error {
	defer s.invalidate()

	return s.backend.SaveTrigger(ctx, trigger)
}

func (s *Store) SaveDefaultFlows(ctx context.Context, defaults *models.DefaultFlows) error {
	defer s.invalidate()

	return s.backend.SaveDefaultFlows(ctx, defaults)
}

// invalidate drops this instance's cached flows. Other instances catch up
// within the cache TTL.
func (s *Store) invalidate() {
	if s.cached != nil {
		s.cached.Invalidate()
	}
}

func (s *Store) LoadContext(ctx context.Context, tenantID, conversationID string) (*models.ExecutionContext, error) {
	return s.contexts.LoadContext(ctx, tenantID, conversationID)
}

func (s *Store) SaveContext(ctx context.Context, execCtx *models.ExecutionContext) error {
	return s.contexts.SaveContext(ctx, execCtx)
}

func (s *Store) DeleteContext(ctx context.Context, tenantID, conversationID string) error {
	return s.contexts.DeleteContext(ctx, tenantID, conversationID)
}

func (s *Store) DueWaits(ctx context.Context, now time.Time, limit int) ([]*models.ExecutionContext, error) {
	return s.contexts.DueWaits(ctx, now, limit)
}

func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.backend.HealthCheck(ctx)

	if s.redis != nil {
		err = errors.Join(err, s.redis.HealthCheck(ctx))
	}

	return err
}

func (s *Store) Close(ctx context.Context) error {
	err := s.backend.Close(ctx)

	if s.redis != nil {
		err = errors.Join(err, s.redis.Close())
	}

	return err
}
