package effects

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestBuildPayload(t *testing.T) {
	data, err := BuildPayload(models.WebhookRequest{
		Payload: map[string]any{"conversation_id": "c1", "variables": map[string]any{"name": "Ana"}},
		Fields:  map[string]any{"customer.name": "Ana", "customer.age": 30, "variables.name": "Bia"},
	})
	require.NoError(t, err)

	assert.Equal(t, "c1", gjson.GetBytes(data, "conversation_id").String())
	assert.Equal(t, "Ana", gjson.GetBytes(data, "customer.name").String())
	assert.Equal(t, int64(30), gjson.GetBytes(data, "customer.age").Int())
	assert.Equal(t, "Bia", gjson.GetBytes(data, "variables.name").String())
}

func TestMapResponse(t *testing.T) {
	body := []byte(`{"data":{"id":"T-7","tags":["vip"]},"ok":true}`)

	got := MapResponse(body, map[string]string{
		"ticket":   "data.id",
		"firstTag": "data.tags.0",
		"ok":       "ok",
		"missing":  "data.nope",
	})

	assert.Equal(t, map[string]any{"ticket": "T-7", "firstTag": "vip", "ok": true}, got)
	assert.Nil(t, MapResponse([]byte("not json"), map[string]string{"x": "y"}))
}

func TestHTTPWebhookCaller(t *testing.T) {
	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "acme", r.Header.Get("X-Tenant"))

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lead":{"id":42}}`))
	}))
	defer server.Close()

	caller := NewHTTPWebhookCaller(nil, time.Second)

	variables, err := caller.Call(context.Background(), models.WebhookRequest{
		URL:             server.URL,
		Headers:         map[string]string{"X-Tenant": "acme"},
		Payload:         map[string]any{"conversation_id": "c1"},
		Fields:          map[string]any{"source": "whatsapp"},
		ResponseMapping: map[string]string{"leadId": "lead.id"},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(42), variables["leadId"])
	assert.Equal(t, "c1", received["conversation_id"])
	assert.Equal(t, "whatsapp", received["source"])
}

func TestHTTPWebhookCaller_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPWebhookCaller(nil, time.Second).Call(context.Background(), models.WebhookRequest{URL: server.URL, Method: http.MethodGet})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, "unavailable", httpErr.Message)
}

func TestHTTPMessageSender(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tenants/acme/conversations/conv%201/messages", r.URL.EscapedPath())
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var content models.MessageContent
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&content))
		assert.Equal(t, "Olá", content.Text)

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewHTTPMessageSender(server.URL+"/", "secret", time.Second)
	require.NoError(t, sender.SendMessage(context.Background(), "acme", "conv 1", models.MessageContent{Text: "Olá"}))
}
