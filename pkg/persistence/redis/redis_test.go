package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
	"github.com/KallebyX/simao-sub001/pkg/persistence/persistencetest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()

	url := os.Getenv("FLOWENGINE_TEST_REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/15"
	}

	store, err := New(context.Background(), Config{
		URL:       url,
		TTL:       ttl,
		Namespace: "test-" + uuid.NewString(),
	})
	if err != nil {
		t.Skip("Redis not available:", err)
	}

	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := store.client.Keys(ctx, store.namespace+":*").Result()

		if len(keys) > 0 {
			_ = store.client.Del(ctx, keys...).Err()
		}

		_ = store.Close()
	})

	return store
}

func TestRedisStore(t *testing.T) {
	store := newTestStore(t, time.Hour)

	persistencetest.RunContextStore(t, store)
}

func TestRedisStore_TTL(t *testing.T) {
	store := newTestStore(t, time.Minute)
	ctx := context.Background()

	execCtx := models.NewExecutionContext("acme", "c1", "welcome", "greet", time.Now().UTC())
	require.NoError(t, store.SaveContext(ctx, execCtx))

	ttl, err := store.client.TTL(ctx, store.contextKey(execCtx.Key())).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRedisStore_ExpiredContextLeavesIndex(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()
	now := time.Now().UTC()
	resumeAt := now.Add(-time.Second)

	execCtx := models.NewExecutionContext("acme", "c1", "welcome", "pause", now)
	execCtx.Status = models.ExecutionStatusWaiting
	execCtx.ResumeAt = &resumeAt
	require.NoError(t, store.SaveContext(ctx, execCtx))

	// Simulate expiry of the context record.
	require.NoError(t, store.client.Del(ctx, store.contextKey(execCtx.Key())).Err())

	due, err := store.DueWaits(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	members, err := store.client.ZCard(ctx, store.waitsKey()).Result()
	require.NoError(t, err)
	assert.Zero(t, members)

	_, err = store.LoadContext(ctx, "acme", "c1")
	assert.True(t, persistence.IsExecutionContextNotFound(err))
}
