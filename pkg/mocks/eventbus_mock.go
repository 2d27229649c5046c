package mocks

import (
	"context"

	"github.com/KallebyX/simao-sub001/pkg/events"
	"github.com/stretchr/testify/mock"
)

// MockPublisher is a mock implementation of eventbus.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, tenantID, topic string, event events.Event) error {
	args := m.Called(ctx, tenantID, topic, event)

	return args.Error(0)
}
