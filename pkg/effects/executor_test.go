package effects

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/KallebyX/simao-sub001/pkg/events"
	"github.com/KallebyX/simao-sub001/pkg/mocks"
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type fixture struct {
	messages  *mocks.MockMessageSender
	webhooks  *mocks.MockWebhookCaller
	queues    *mocks.MockQueueRouter
	publisher *mocks.MockPublisher
	executor  *Executor
}

func newFixture() *fixture {
	f := &fixture{
		messages:  &mocks.MockMessageSender{},
		webhooks:  &mocks.MockWebhookCaller{},
		queues:    &mocks.MockQueueRouter{},
		publisher: &mocks.MockPublisher{},
	}
	f.executor = NewExecutor(f.messages, f.webhooks, f.queues, f.publisher, testLogger())

	return f
}

func task(effect models.Effect) models.WorkerTask {
	return models.WorkerTask{
		TaskID:         "task-1",
		TenantID:       "acme",
		ConversationID: "conv-1",
		NodeID:         effect.NodeID,
		Payload:        effect,
	}
}

func TestExecutor_SendMessage(t *testing.T) {
	f := newFixture()
	content := models.MessageContent{Text: "Olá"}

	f.messages.On("SendMessage", mock.Anything, "acme", "conv-1", content).Return(nil)
	f.publisher.On("Publish", mock.Anything, "acme", "conv-1", mock.MatchedBy(func(e events.Event) bool {
		return e.Entity == events.EntityMessage && e.Action == events.ActionCreate
	})).Return(nil)

	result, err := f.executor.Execute(context.Background(), task(models.Effect{
		Kind:    models.EffectSendMessage,
		NodeID:  "greet",
		Message: &content,
	}))
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSucceeded, result.Status)
	assert.Equal(t, []models.EffectKind{models.EffectSendMessage}, result.EffectsApplied)

	f.messages.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestExecutor_SendMessageFailure(t *testing.T) {
	f := newFixture()

	f.messages.On("SendMessage", mock.Anything, "acme", "conv-1", mock.Anything).Return(errors.New("session disconnected"))

	_, err := f.executor.Execute(context.Background(), task(models.Effect{
		Kind:    models.EffectSendMessage,
		Message: &models.MessageContent{Text: "Olá"},
	}))
	require.ErrorContains(t, err, "session disconnected")
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutor_Webhook(t *testing.T) {
	request := models.WebhookRequest{URL: "https://crm.example.com", OnSuccess: "thanks", OnError: "sorry"}

	t.Run("success", func(t *testing.T) {
		f := newFixture()
		f.webhooks.On("Call", mock.Anything, request).Return(map[string]any{"ticket": "T-1"}, nil)

		result, err := f.executor.Execute(context.Background(), task(models.Effect{Kind: models.EffectCallWebhook, Webhook: &request}))
		require.NoError(t, err)
		require.NotNil(t, result.NextNodeID)
		assert.Equal(t, "thanks", *result.NextNodeID)
		assert.Equal(t, "T-1", result.Variables["ticket"])
	})

	t.Run("failure routes to error node", func(t *testing.T) {
		f := newFixture()
		f.webhooks.On("Call", mock.Anything, request).Return(nil, &HTTPError{StatusCode: 500, Message: "boom"})

		result, err := f.executor.Execute(context.Background(), task(models.Effect{Kind: models.EffectCallWebhook, Webhook: &request}))
		require.Error(t, err)

		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, 500, httpErr.StatusCode)
		require.NotNil(t, result.NextNodeID)
		assert.Equal(t, "sorry", *result.NextNodeID)
	})
}

func TestExecutor_RouteToQueue(t *testing.T) {
	f := newFixture()
	handoff := models.Handoff{QueueID: "vendas"}

	f.queues.On("RouteToQueue", mock.Anything, "acme", "conv-1", handoff).Return(nil)

	result, err := f.executor.Execute(context.Background(), task(models.Effect{Kind: models.EffectRouteToQueue, Handoff: &handoff}))
	require.NoError(t, err)
	assert.Equal(t, []models.EffectKind{models.EffectRouteToQueue}, result.EffectsApplied)
	f.queues.AssertExpectations(t)
}

func TestExecutor_MalformedEffects(t *testing.T) {
	f := newFixture()

	for _, effect := range []models.Effect{
		{Kind: models.EffectSendMessage},
		{Kind: models.EffectCallWebhook},
		{Kind: models.EffectRouteToQueue},
		{Kind: "teleport"},
	} {
		_, err := f.executor.Execute(context.Background(), task(effect))
		assert.ErrorIs(t, err, ErrUnsupportedEffect, effect.Kind)
	}
}

func TestBusQueueRouter(t *testing.T) {
	publisher := &mocks.MockPublisher{}
	router := NewBusQueueRouter(publisher)

	for _, topic := range []string{events.TopicTicket, TicketStatusPending, "conv-1"} {
		publisher.On("Publish", mock.Anything, "acme", topic, mock.MatchedBy(func(e events.Event) bool {
			state, ok := e.Payload.(events.TicketState)

			return ok && state.QueueID == "vendas" && state.Reason == models.ReasonHandoff
		})).Return(nil).Once()
	}

	require.NoError(t, router.RouteToQueue(context.Background(), "acme", "conv-1", models.Handoff{QueueID: "vendas"}))
	publisher.AssertExpectations(t)
}
