package web_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/events"
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinLeaveTopic(t *testing.T) {
	t.Parallel()

	ts := setupTestServer(t)

	sub, err := ts.bus.Subscribe("acme", "sub-1", []string{events.TopicTicket})
	require.NoError(t, err)

	resp, body := ts.do(t, http.MethodPost, "/realtime/sub-1/topics/open", acmeToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "open")
	assert.True(t, sub.Has("open"))

	resp, _ = ts.do(t, http.MethodDelete, "/realtime/sub-1/topics/open", acmeToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, sub.Has("open"))

	resp, _ = ts.do(t, http.MethodPost, "/realtime/sub-1/topics/open", globexToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "subscribers are tenant scoped")
}

func TestRealtimeStream(t *testing.T) {
	t.Parallel()

	ts := setupTestServer(t)

	go func() {
		assert.Eventually(t, func() bool { return ts.bus.Subscribers("acme") == 1 }, 500*time.Millisecond, 5*time.Millisecond)

		event := events.TicketUpdated(events.TicketState{
			TenantID:       "acme",
			ConversationID: "conv-1",
			Status:         models.ExecutionStatusWaiting,
		})

		_ = ts.bus.Publish(context.Background(), "acme", events.TopicTicket, event)
		_ = ts.bus.Publish(context.Background(), "globex", events.TopicTicket, event)

		sub, err := ts.bus.Lookup("acme", "console-1")
		if assert.NoError(t, err) {
			ts.bus.Unsubscribe(sub)
		}
	}()

	req := httptest.NewRequest(http.MethodGet, "/realtime?id=console-1&topics=ticket", nil)
	req.Header.Set("Authorization", "Bearer "+acmeToken)

	resp, err := ts.app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := readFrames(t, resp)
	require.Len(t, frames, 2)

	assert.Equal(t, "subscribed", frames[0].name)
	assert.Contains(t, frames[0].data, `"subscriberId":"console-1"`)

	assert.Equal(t, "ticket.update", frames[1].name)

	var message struct {
		Action  string             `json:"action"`
		Entity  string             `json:"entity"`
		Topic   string             `json:"topic"`
		Payload events.TicketState `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(frames[1].data), &message))
	assert.Equal(t, "update", message.Action)
	assert.Equal(t, "ticket", message.Entity)
	assert.Equal(t, events.TopicTicket, message.Topic)
	assert.Equal(t, "conv-1", message.Payload.ConversationID)
}

type frame struct {
	name string
	data string
}

func readFrames(t *testing.T, resp *http.Response) []frame {
	t.Helper()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var frames []frame

	for _, block := range strings.Split(string(raw), "\n\n") {
		var f frame

		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				f.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				f.data = strings.TrimPrefix(line, "data: ")
			}
		}

		if f.name != "" {
			frames = append(frames, f)
		}
	}

	return frames
}
