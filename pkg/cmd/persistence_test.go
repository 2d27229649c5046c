package cmd

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/config"
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence/file"
	"github.com/KallebyX/simao-sub001/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url      string
		provider string
		rest     string
	}{
		{url: "file://./data", provider: "file", rest: "./data"},
		{url: "./data", provider: "file", rest: "./data"},
		{url: "memory://", provider: "memory", rest: ""},
		{url: "postgres://u:p@localhost/flows", provider: "postgres", rest: "u:p@localhost/flows"},
		{url: "postgresql://localhost/flows", provider: "postgresql", rest: "localhost/flows"},
		{url: "s3://bucket", provider: "file", rest: "s3://bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			provider, rest := parsePersistenceProvider(tt.url)
			assert.Equal(t, tt.provider, provider)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestNewPersistence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	t.Run("memory", func(t *testing.T) {
		store, err := NewPersistence(ctx, config.PersistenceConfig{DatabaseURL: "memory://"}, logger)
		require.NoError(t, err)

		assert.IsType(t, &memory.Persistence{}, store.backend)
		assert.Nil(t, store.cached)
		assert.NoError(t, store.HealthCheck(ctx))
		assert.NoError(t, store.Close(ctx))
	})

	t.Run("file", func(t *testing.T) {
		root := t.TempDir()

		store, err := NewPersistence(ctx, config.PersistenceConfig{DatabaseURL: "file://" + root, GraphCacheTTL: time.Minute}, logger)
		require.NoError(t, err)

		backend, ok := store.backend.(*file.Persistence)
		require.True(t, ok)
		assert.Equal(t, root, backend.Root())
		assert.NotNil(t, store.cached)
	})

	t.Run("gives up after retries", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		_, err := NewPersistence(ctx, config.PersistenceConfig{
			DatabaseURL: "memory://",
			RedisURL:    "not a url",
		}, logger)
		assert.Error(t, err)
	})
}

func TestStore_WritesInvalidateCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := memory.NewPersistence()
	store := NewStore(backend, nil, time.Hour)

	graph := &models.FlowGraph{
		ID:       "welcome",
		TenantID: "acme",
		Name:     "v1",
		Nodes:    []*models.Node{{ID: "end", Kind: models.NodeKindEndFlow}},
	}
	require.NoError(t, store.SaveGraph(ctx, graph))

	loaded, err := store.LoadGraph(ctx, "acme", "welcome")
	require.NoError(t, err)
	assert.Equal(t, "v1", loaded.Name)

	changed := *graph
	changed.Name = "v2"
	require.NoError(t, backend.SaveGraph(ctx, &changed))

	loaded, err = store.LoadGraph(ctx, "acme", "welcome")
	require.NoError(t, err)
	assert.Equal(t, "v1", loaded.Name, "direct backend writes are served stale until the TTL")

	require.NoError(t, store.SaveGraph(ctx, &changed))

	loaded, err = store.LoadGraph(ctx, "acme", "welcome")
	require.NoError(t, err)
	assert.Equal(t, "v2", loaded.Name)
}

func TestStore_ContextsGoToBackendWithoutRedis(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := memory.NewPersistence()
	store := NewStore(backend, nil, 0)

	execCtx := &models.ExecutionContext{
		TenantID:       "acme",
		ConversationID: "conv-1",
		FlowID:         "welcome",
		CurrentNodeID:  "end",
		Status:         models.ExecutionStatusRunning,
	}
	require.NoError(t, store.SaveContext(ctx, execCtx))

	loaded, err := backend.LoadContext(ctx, "acme", "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "welcome", loaded.FlowID)

	require.NoError(t, store.DeleteContext(ctx, "acme", "conv-1"))

	_, err = store.LoadContext(ctx, "acme", "conv-1")
	assert.Error(t, err)
}
