package mocks

import (
	"context"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockMessageSender is a mock implementation of effects.MessageSender.
type MockMessageSender struct {
	mock.Mock
}

func (m *MockMessageSender) SendMessage(ctx context.Context, tenantID, conversationID string, content models.MessageContent) error {
	args := m.Called(ctx, tenantID, conversationID, content)

	return args.Error(0)
}

// MockWebhookCaller is a mock implementation of effects.WebhookCaller.
type MockWebhookCaller struct {
	mock.Mock
}

func (m *MockWebhookCaller) Call(ctx context.Context, request models.WebhookRequest) (map[string]any, error) {
	args := m.Called(ctx, request)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string]any), args.Error(1)
}

// MockQueueRouter is a mock implementation of effects.QueueRouter.
type MockQueueRouter struct {
	mock.Mock
}

func (m *MockQueueRouter) RouteToQueue(ctx context.Context, tenantID, conversationID string, handoff models.Handoff) error {
	args := m.Called(ctx, tenantID, conversationID, handoff)

	return args.Error(0)
}
