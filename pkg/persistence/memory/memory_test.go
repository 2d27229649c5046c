package memory_test

import (
	"context"
	"testing"

	"github.com/KallebyX/simao-sub001/pkg/persistence/memory"
	"github.com/KallebyX/simao-sub001/pkg/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPersistence(t *testing.T) {
	store := memory.NewPersistence()

	persistencetest.RunGraphStore(t, store)
	persistencetest.RunContextStore(t, store)
}

func TestMemoryPersistence_CopiesRecords(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()

	graph := persistencetest.Graph("acme", "welcome")
	require.NoError(t, store.SaveGraph(ctx, graph))

	graph.Name = "changed"
	graph.Nodes = nil

	loaded, err := store.LoadGraph(ctx, "acme", "welcome")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", loaded.Name)
	assert.Len(t, loaded.Nodes, 2)
}
