package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/KallebyX/simao-sub001/pkg/dispatcher"
	"github.com/KallebyX/simao-sub001/pkg/eventbus"
	"github.com/KallebyX/simao-sub001/pkg/mocks"
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence/memory"
	"github.com/KallebyX/simao-sub001/pkg/registry"
	"github.com/KallebyX/simao-sub001/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	acmeToken   = "acme-token"
	globexToken = "globex-token"
)

type testServer struct {
	app        *fiber.App
	dispatcher *mocks.MockDispatcher
	store      *memory.Persistence
	bus        *eventbus.Bus
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes(registry.DefaultNodeSettings())

	ts := &testServer{
		dispatcher: &mocks.MockDispatcher{},
		store:      memory.NewPersistence(),
		bus:        eventbus.New(16, logger),
	}

	handlers := web.NewAPIHandlers(ts.dispatcher, ts.store, ts.bus, reg, validator.New(validator.WithRequiredStructEnabled()), logger)
	auth := web.StaticTokens{
		acmeToken:   {UserID: "u-1", CompanyID: "acme", Profile: "admin"},
		globexToken: {UserID: "u-2", CompanyID: "globex", Profile: "user"},
	}

	ts.app = web.NewServer(handlers, auth, ts.store.HealthCheck, logger).App()

	t.Cleanup(func() {
		_ = ts.bus.Close()
	})

	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func flowDocument(tenantID, id string) map[string]any {
	return map[string]any{
		"id":            id,
		"tenant_id":     tenantID,
		"entry_node_id": "hello",
		"nodes": []map[string]any{
			{"id": "hello", "kind": "message", "config": map[string]any{"text": "Hi {{.variables.name}}"}},
			{"id": "end", "kind": "end_flow"},
		},
		"connections": []map[string]any{
			{"source_node_id": "hello", "target_node_id": "end"},
		},
	}
}

func TestAuth(t *testing.T) {
	t.Parallel()

	ts := setupTestServer(t)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "missing token", status: http.StatusUnauthorized},
		{name: "unknown token", token: "nope", status: http.StatusUnauthorized},
		{name: "valid token", token: acmeToken, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := ts.do(t, http.MethodGet, "/nodes", tt.token, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ts := setupTestServer(t)

	for _, path := range []string{"/livez", "/readyz"} {
		resp, body := ts.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "OK", string(body))
	}
}

func TestInboundEvent(t *testing.T) {
	t.Parallel()

	t.Run("accepted without waiting", func(t *testing.T) {
		ts := setupTestServer(t)
		ts.dispatcher.On("OnInboundEvent", mock.Anything, mock.MatchedBy(func(event models.InboundEvent) bool {
			return event.TenantID == "acme" &&
				event.ConversationID == "conv-1" &&
				event.Text == "hi" &&
				event.Variables["age"] == float64(16)
		})).Return(mocks.Answered(dispatcher.Outcome{Route: dispatcher.RouteStarted}), nil)

		resp, body := ts.do(t, http.MethodPost, "/events/inbound", acmeToken, web.InboundEventRequest{
			ConversationID: "conv-1",
			Text:           "hi",
			Variables:      map[string]any{"age": 16},
		})

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.JSONEq(t, `{"accepted": true}`, string(body))
		ts.dispatcher.AssertExpectations(t)
	})

	t.Run("waits for the outcome", func(t *testing.T) {
		ts := setupTestServer(t)
		ts.dispatcher.On("OnInboundEvent", mock.Anything, mock.Anything).Return(mocks.Answered(dispatcher.Outcome{
			Route:  dispatcher.RouteStarted,
			FlowID: "welcome",
			NodeID: "pause",
			Status: models.ExecutionStatusWaiting,
		}), nil)

		resp, body := ts.do(t, http.MethodPost, "/events/inbound?wait=true", acmeToken, web.InboundEventRequest{
			ConversationID: "conv-1",
			Text:           "hi",
		})

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var outcome web.OutcomeResponse
		require.NoError(t, json.Unmarshal(body, &outcome))
		assert.Equal(t, dispatcher.RouteStarted, outcome.Route)
		assert.Equal(t, "welcome", outcome.FlowID)
		assert.Equal(t, models.ExecutionStatusWaiting, outcome.Status)
		assert.False(t, outcome.Deferred)
	})

	t.Run("deferred is not an error", func(t *testing.T) {
		ts := setupTestServer(t)
		ts.dispatcher.On("OnInboundEvent", mock.Anything, mock.Anything).Return(mocks.Answered(dispatcher.Outcome{
			Route:  dispatcher.RouteStarted,
			Status: models.ExecutionStatusDeferred,
		}), nil)

		resp, body := ts.do(t, http.MethodPost, "/events/inbound?wait=true", acmeToken, web.InboundEventRequest{ConversationID: "conv-1"})

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var outcome web.OutcomeResponse
		require.NoError(t, json.Unmarshal(body, &outcome))
		assert.True(t, outcome.Deferred)
	})

	t.Run("conversation id required", func(t *testing.T) {
		ts := setupTestServer(t)

		resp, _ := ts.do(t, http.MethodPost, "/events/inbound", acmeToken, web.InboundEventRequest{Text: "hi"})

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		ts.dispatcher.AssertNotCalled(t, "OnInboundEvent", mock.Anything, mock.Anything)
	})

	t.Run("invalid json", func(t *testing.T) {
		ts := setupTestServer(t)

		resp, _ := ts.do(t, http.MethodPost, "/events/inbound", acmeToken, []byte("{"))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("shutting down", func(t *testing.T) {
		ts := setupTestServer(t)
		ts.dispatcher.On("OnInboundEvent", mock.Anything, mock.Anything).Return(nil, dispatcher.ErrDispatcherClosed)

		resp, body := ts.do(t, http.MethodPost, "/events/inbound", acmeToken, web.InboundEventRequest{ConversationID: "conv-1"})

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Contains(t, string(body), "unavailable")
	})
}

func TestCloseConversation(t *testing.T) {
	t.Parallel()

	ts := setupTestServer(t)
	ts.dispatcher.On("Close", mock.Anything, "globex", "conv-9").Return(mocks.Answered(dispatcher.Outcome{
		Route:  dispatcher.RouteClosed,
		Status: models.ExecutionStatusCancelled,
		Reason: models.ReasonCancelled,
	}), nil)

	resp, body := ts.do(t, http.MethodPost, "/conversations/conv-9/close?wait=true", globexToken, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var outcome web.OutcomeResponse
	require.NoError(t, json.Unmarshal(body, &outcome))
	assert.Equal(t, dispatcher.RouteClosed, outcome.Route)
	assert.Equal(t, models.ReasonCancelled, outcome.Reason)
	ts.dispatcher.AssertExpectations(t)
}

func TestValidateFlow(t *testing.T) {
	t.Parallel()

	ts := setupTestServer(t)

	t.Run("valid", func(t *testing.T) {
		resp, body := ts.do(t, http.MethodPost, "/flows/validate", acmeToken, flowDocument("acme", "welcome"))

		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.JSONEq(t, `{"valid": true, "id": "welcome", "entryNodeId": "hello", "nodes": 2}`, string(body))
	})

	t.Run("schema violation", func(t *testing.T) {
		doc := flowDocument("acme", "welcome")
		doc["nodes"] = []map[string]any{{"id": "x", "kind": "teleport"}}

		resp, body := ts.do(t, http.MethodPost, "/flows/validate", acmeToken, doc)

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var problem map[string]any
		require.NoError(t, json.Unmarshal(body, &problem))
		assert.Equal(t, "invalid_flow", problem["type"])
		assert.NotEmpty(t, problem["problems"])
	})

	t.Run("invalid node config", func(t *testing.T) {
		doc := flowDocument("acme", "welcome")
		doc["nodes"] = []map[string]any{
			{"id": "hello", "kind": "condition", "config": map[string]any{}},
		}
		doc["connections"] = []map[string]any{}

		resp, body := ts.do(t, http.MethodPost, "/flows/validate", acmeToken, doc)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, string(body), "hello")
	})
}

func TestFlowLifecycle(t *testing.T) {
	t.Parallel()

	ts := setupTestServer(t)

	resp, body := ts.do(t, http.MethodPut, "/flows/welcome", acmeToken, flowDocument("acme", "welcome"))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	graph, err := ts.store.LoadGraph(context.Background(), "acme", "welcome")
	require.NoError(t, err)
	assert.False(t, graph.UpdatedAt.IsZero())

	resp, body = ts.do(t, http.MethodGet, "/flows/welcome", acmeToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var loaded models.FlowGraph
	require.NoError(t, json.Unmarshal(body, &loaded))
	assert.Equal(t, "hello", loaded.EntryNode())

	resp, _ = ts.do(t, http.MethodGet, "/flows/welcome", globexToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "flows are tenant scoped")

	resp, _ = ts.do(t, http.MethodDelete, "/flows/welcome", acmeToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/flows/welcome", acmeToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSaveFlow_Rejections(t *testing.T) {
	t.Parallel()

	ts := setupTestServer(t)

	resp, _ := ts.do(t, http.MethodPut, "/flows/welcome", globexToken, flowDocument("acme", "welcome"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPut, "/flows/other", acmeToken, flowDocument("acme", "welcome"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTriggersAndDefaults(t *testing.T) {
	t.Parallel()

	ts := setupTestServer(t)
	require.NoError(t, ts.store.SaveGraph(context.Background(), &models.FlowGraph{
		ID:       "welcome",
		TenantID: "acme",
		Nodes:    []*models.Node{{ID: "end", Kind: models.NodeKindEndFlow}},
	}))

	resp, _ := ts.do(t, http.MethodPost, "/triggers", acmeToken, web.TriggerRequest{ID: "t-1", Phrase: "hi", FlowID: "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/triggers", acmeToken, web.TriggerRequest{ID: "t-1", Phrase: "Hi", FlowID: "welcome"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = ts.do(t, http.MethodGet, "/triggers", acmeToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var triggers []models.Trigger
	require.NoError(t, json.Unmarshal(body, &triggers))
	require.Len(t, triggers, 1)
	assert.Equal(t, models.TriggerStatusActive, triggers[0].Status)
	assert.Equal(t, "acme", triggers[0].TenantID)

	resp, _ = ts.do(t, http.MethodPut, "/defaults", acmeToken, web.DefaultFlowsRequest{WelcomeFlowID: "welcome"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defaults, err := ts.store.DefaultFlows(context.Background(), "acme", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, "welcome", defaults.Fallback())
}

func TestNodes(t *testing.T) {
	t.Parallel()

	ts := setupTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/nodes", acmeToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var catalogue []registry.NodeDescriptor
	require.NoError(t, json.Unmarshal(body, &catalogue))
	assert.Len(t, catalogue, len(models.NodeKinds))

	kinds := make([]models.NodeKind, 0, len(catalogue))
	for _, descriptor := range catalogue {
		kinds = append(kinds, descriptor.Kind)
		assert.NotEmpty(t, descriptor.Schema, descriptor.Kind)
	}

	assert.ElementsMatch(t, models.NodeKinds, kinds)
}
