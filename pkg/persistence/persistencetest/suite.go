// Package persistencetest holds the behaviour every persistence backend
// must share, run by each backend's tests.
package persistencetest

import (
	"context"
	"testing"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
	"github.com/KallebyX/simao-sub001/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Graph returns a small two-node flow for tenantID.
func Graph(tenantID, flowID string) *models.FlowGraph {
	return testutil.CreateTestFlow(testutil.WithTenant(tenantID), testutil.WithFlowID(flowID))
}

// RunGraphStore exercises graphs, triggers and default flows.
func RunGraphStore(t *testing.T, store persistence.Persistence) {
	t.Helper()

	ctx := context.Background()

	t.Run("graph roundtrip", func(t *testing.T) {
		require.NoError(t, store.SaveGraph(ctx, Graph("acme", "welcome")))

		graph, err := store.LoadGraph(ctx, "acme", "welcome")
		require.NoError(t, err)
		assert.Equal(t, "greet", graph.EntryNode())
		require.Len(t, graph.Nodes, 2)
		assert.Equal(t, "Olá!", graph.Nodes[0].Config["text"])
		require.Len(t, graph.Connections, 1)
		assert.Equal(t, "end", graph.Connections[0].TargetNodeID)
	})

	t.Run("graphs are tenant scoped", func(t *testing.T) {
		_, err := store.LoadGraph(ctx, "globex", "welcome")
		assert.True(t, persistence.IsGraphNotFound(err))
	})

	t.Run("graph delete", func(t *testing.T) {
		require.NoError(t, store.SaveGraph(ctx, Graph("acme", "temporary")))
		require.NoError(t, store.DeleteGraph(ctx, "acme", "temporary"))

		_, err := store.LoadGraph(ctx, "acme", "temporary")
		assert.True(t, persistence.IsGraphNotFound(err))

		require.NoError(t, store.DeleteGraph(ctx, "acme", "temporary"), "deleting twice is fine")
	})

	t.Run("triggers filtered by channel and status", func(t *testing.T) {
		for _, trigger := range []*models.Trigger{
			{ID: "t1", TenantID: "acme", Phrase: "oi", FlowID: "welcome"},
			{ID: "t2", TenantID: "acme", ChannelID: "ch-2", Phrase: "menu", FlowID: "menu"},
			{ID: "t3", TenantID: "acme", Phrase: "promo", FlowID: "promo", Status: models.TriggerStatusInactive},
			{ID: "t4", TenantID: "globex", Phrase: "oi", FlowID: "other"},
		} {
			require.NoError(t, store.SaveTrigger(ctx, trigger))
		}

		triggers, err := store.Triggers(ctx, "acme", "ch-1")
		require.NoError(t, err)
		require.Len(t, triggers, 1)
		assert.Equal(t, "t1", triggers[0].ID)

		triggers, err = store.Triggers(ctx, "acme", "ch-2")
		require.NoError(t, err)
		require.Len(t, triggers, 2)
		assert.Equal(t, []string{"t1", "t2"}, []string{triggers[0].ID, triggers[1].ID})
	})

	t.Run("saving a trigger again replaces it", func(t *testing.T) {
		require.NoError(t, store.SaveTrigger(ctx, &models.Trigger{ID: "t1", TenantID: "acme", Phrase: "olá", FlowID: "welcome"}))

		triggers, err := store.Triggers(ctx, "acme", "ch-1")
		require.NoError(t, err)
		require.Len(t, triggers, 1)
		assert.Equal(t, "olá", triggers[0].Phrase)
	})

	t.Run("default flows fall back to tenant wide", func(t *testing.T) {
		defaults, err := store.DefaultFlows(ctx, "acme", "ch-1")
		require.NoError(t, err)
		assert.Nil(t, defaults)

		require.NoError(t, store.SaveDefaultFlows(ctx, &models.DefaultFlows{TenantID: "acme", WelcomeFlowID: "welcome"}))
		require.NoError(t, store.SaveDefaultFlows(ctx, &models.DefaultFlows{TenantID: "acme", ChannelID: "ch-2", NoPhraseFlowID: "fallback"}))

		defaults, err = store.DefaultFlows(ctx, "acme", "ch-1")
		require.NoError(t, err)
		require.NotNil(t, defaults)
		assert.Equal(t, "welcome", defaults.Fallback())

		defaults, err = store.DefaultFlows(ctx, "acme", "ch-2")
		require.NoError(t, err)
		require.NotNil(t, defaults)
		assert.Equal(t, "fallback", defaults.Fallback())
	})
}

// RunContextStore exercises execution context storage and the due-wait index.
func RunContextStore(t *testing.T, store persistence.ContextStore) {
	t.Helper()

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("missing context", func(t *testing.T) {
		_, err := store.LoadContext(ctx, "acme", "nobody")
		assert.True(t, persistence.IsExecutionContextNotFound(err))
	})

	t.Run("context roundtrip", func(t *testing.T) {
		execCtx := testutil.CreateTestContext("c1", "welcome", "greet", now)
		execCtx.Variables["name"] = "Ana"
		execCtx.Variables[models.ReservedKey(models.ReservedRandom, "ab")] = "A"
		execCtx.Epoch = 3

		require.NoError(t, store.SaveContext(ctx, execCtx))

		loaded, err := store.LoadContext(ctx, "acme", "c1")
		require.NoError(t, err)
		assert.Equal(t, "welcome", loaded.FlowID)
		assert.Equal(t, "greet", loaded.CurrentNodeID)
		assert.Equal(t, "Ana", loaded.Variables["name"])
		assert.Equal(t, "A", loaded.Variables["__random:ab"])
		assert.Equal(t, uint64(3), loaded.Epoch)
		assert.True(t, now.Equal(loaded.CreatedAt))

		_, err = store.LoadContext(ctx, "globex", "c1")
		assert.True(t, persistence.IsExecutionContextNotFound(err))
	})

	t.Run("delete context", func(t *testing.T) {
		require.NoError(t, store.DeleteContext(ctx, "acme", "c1"))

		_, err := store.LoadContext(ctx, "acme", "c1")
		assert.True(t, persistence.IsExecutionContextNotFound(err))

		require.NoError(t, store.DeleteContext(ctx, "acme", "c1"))
	})

	t.Run("due waits", func(t *testing.T) {
		save := func(conversationID string, status models.ExecutionStatus, resumeAt time.Time) {
			execCtx := models.NewExecutionContext("acme", conversationID, "welcome", "pause", now)
			execCtx.Status = status
			execCtx.ResumeAt = &resumeAt
			require.NoError(t, store.SaveContext(ctx, execCtx))
		}

		save("late", models.ExecutionStatusWaiting, now.Add(-time.Minute))
		save("later", models.ExecutionStatusWaiting, now.Add(-time.Hour))
		save("future", models.ExecutionStatusWaiting, now.Add(time.Minute))
		save("webhook", models.ExecutionStatusAwaitingResult, now.Add(-time.Minute))

		due, err := store.DueWaits(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, "later", due[0].ConversationID)
		assert.Equal(t, "late", due[1].ConversationID)

		due, err = store.DueWaits(ctx, now, 1)
		require.NoError(t, err)
		require.Len(t, due, 1)

		// Resuming moves the context off the index.
		resumed := due[0]
		resumed.Status = models.ExecutionStatusRunning
		resumed.ResumeAt = nil
		require.NoError(t, store.SaveContext(ctx, resumed))

		due, err = store.DueWaits(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, "late", due[0].ConversationID)

		require.NoError(t, store.DeleteContext(ctx, "acme", "late"))

		due, err = store.DueWaits(ctx, now, 10)
		require.NoError(t, err)
		assert.Empty(t, due)
	})
}
