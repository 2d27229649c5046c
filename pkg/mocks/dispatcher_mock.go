package mocks

import (
	"context"

	"github.com/KallebyX/simao-sub001/pkg/dispatcher"
	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockDispatcher is a mock implementation of the dispatcher entry points.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) OnInboundEvent(ctx context.Context, event models.InboundEvent) (<-chan dispatcher.Outcome, error) {
	args := m.Called(ctx, event)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(<-chan dispatcher.Outcome), args.Error(1)
}

func (m *MockDispatcher) Close(ctx context.Context, tenantID, conversationID string) (<-chan dispatcher.Outcome, error) {
	args := m.Called(ctx, tenantID, conversationID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(<-chan dispatcher.Outcome), args.Error(1)
}

// Answered returns a channel already holding outcome.
func Answered(outcome dispatcher.Outcome) <-chan dispatcher.Outcome {
	done := make(chan dispatcher.Outcome, 1)
	done <- outcome

	return done
}
