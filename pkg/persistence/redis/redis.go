// Package redis provides a Redis-backed execution context store. Contexts
// expire after a TTL; waits are indexed in a sorted set scored by resume
// time so the scheduler can pop due ones without scanning.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 7 * 24 * time.Hour

// Store implements persistence.ContextStore.
type Store struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
}

var _ persistence.ContextStore = (*Store)(nil)

type Config struct {
	URL       string
	TTL       time.Duration
	Namespace string
}

// New connects to the server at cfg.URL (redis://host:port/db).
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewWithClient(client, cfg.TTL, cfg.Namespace), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration, namespace string) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if namespace == "" {
		namespace = "flowengine"
	}

	return &Store{client: client, ttl: ttl, namespace: namespace}
}

// Keys:
// {ns}:ctx:{tenant}/{conversation} -> JSON execution context, with TTL
// {ns}:waits -> sorted set of {tenant}/{conversation} scored by resume time (ms)

func (s *Store) contextKey(key string) string {
	return s.namespace + ":ctx:" + key
}

func (s *Store) waitsKey() string {
	return s.namespace + ":waits"
}

func (s *Store) LoadContext(ctx context.Context, tenantID, conversationID string) (*models.ExecutionContext, error) {
	data, err := s.client.Get(ctx, s.contextKey(models.ConversationKey(tenantID, conversationID))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewStoreError("LoadContext", persistence.ErrExecutionContextNotFound, tenantID, conversationID)
	}

	if err != nil {
		return nil, persistence.NewStoreError("LoadContext", err, tenantID, conversationID)
	}

	execCtx, err := decode(data)
	if err != nil {
		return nil, persistence.NewStoreError("LoadContext", err, tenantID, conversationID)
	}

	return execCtx, nil
}

// SaveContext writes the context and refreshes its TTL. The wait index
// entry follows the context status.
func (s *Store) SaveContext(ctx context.Context, execCtx *models.ExecutionContext) error {
	data, err := json.Marshal(execCtx)
	if err != nil {
		return fmt.Errorf("failed to marshal execution context: %w", err)
	}

	key := execCtx.Key()
	pipe := s.client.TxPipeline()

	pipe.Set(ctx, s.contextKey(key), data, s.ttl)

	if execCtx.Active() && execCtx.Status == models.ExecutionStatusWaiting && execCtx.ResumeAt != nil {
		pipe.ZAdd(ctx, s.waitsKey(), redis.Z{
			Score:  float64(execCtx.ResumeAt.UnixMilli()),
			Member: key,
		})
	} else {
		pipe.ZRem(ctx, s.waitsKey(), key)
	}

	_, err = pipe.Exec(ctx)
	if err != nil {
		return persistence.NewStoreError("SaveContext", err, execCtx.TenantID, execCtx.ConversationID)
	}

	return nil
}

func (s *Store) DeleteContext(ctx context.Context, tenantID, conversationID string) error {
	key := models.ConversationKey(tenantID, conversationID)
	pipe := s.client.TxPipeline()

	pipe.Del(ctx, s.contextKey(key))
	pipe.ZRem(ctx, s.waitsKey(), key)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return persistence.NewStoreError("DeleteContext", err, tenantID, conversationID)
	}

	return nil
}

// DueWaits reads due entries from the wait index. Entries whose context
// expired are dropped from the index.
func (s *Store) DueWaits(ctx context.Context, now time.Time, limit int) ([]*models.ExecutionContext, error) {
	if limit <= 0 {
		limit = 100
	}

	keys, err := s.client.ZRangeByScore(ctx, s.waitsKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read wait index: %w", err)
	}

	if len(keys) == 0 {
		return nil, nil
	}

	contextKeys := make([]string, len(keys))
	for i, key := range keys {
		contextKeys[i] = s.contextKey(key)
	}

	values, err := s.client.MGet(ctx, contextKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due contexts: %w", err)
	}

	var (
		due   []*models.ExecutionContext
		stale []any
	)

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			stale = append(stale, keys[i])

			continue
		}

		execCtx, err := decode([]byte(raw))
		if err != nil || !persistence.Due(execCtx, now) {
			stale = append(stale, keys[i])

			continue
		}

		due = append(due, execCtx)
	}

	if len(stale) > 0 {
		_ = s.client.ZRem(ctx, s.waitsKey(), stale...).Err()
	}

	return due, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func decode(data []byte) (*models.ExecutionContext, error) {
	var execCtx models.ExecutionContext

	err := json.Unmarshal(data, &execCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution context: %w", err)
	}

	if execCtx.Variables == nil {
		execCtx.Variables = make(map[string]any)
	}

	return &execCtx, nil
}
