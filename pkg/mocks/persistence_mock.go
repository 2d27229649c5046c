package mocks

import (
	"context"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockGraphStore is a mock implementation of persistence.GraphStore.
type MockGraphStore struct {
	mock.Mock
}

func (m *MockGraphStore) LoadGraph(ctx context.Context, tenantID, flowID string) (*models.FlowGraph, error) {
	args := m.Called(ctx, tenantID, flowID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.FlowGraph), args.Error(1)
}

func (m *MockGraphStore) Triggers(ctx context.Context, tenantID, channelID string) ([]*models.Trigger, error) {
	args := m.Called(ctx, tenantID, channelID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Trigger), args.Error(1)
}

func (m *MockGraphStore) DefaultFlows(ctx context.Context, tenantID, channelID string) (*models.DefaultFlows, error) {
	args := m.Called(ctx, tenantID, channelID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.DefaultFlows), args.Error(1)
}

// MockContextStore is a mock implementation of persistence.ContextStore.
type MockContextStore struct {
	mock.Mock
}

func (m *MockContextStore) LoadContext(ctx context.Context, tenantID, conversationID string) (*models.ExecutionContext, error) {
	args := m.Called(ctx, tenantID, conversationID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionContext), args.Error(1)
}

func (m *MockContextStore) SaveContext(ctx context.Context, execCtx *models.ExecutionContext) error {
	args := m.Called(ctx, execCtx)

	return args.Error(0)
}

func (m *MockContextStore) DeleteContext(ctx context.Context, tenantID, conversationID string) error {
	args := m.Called(ctx, tenantID, conversationID)

	return args.Error(0)
}

func (m *MockContextStore) DueWaits(ctx context.Context, now time.Time, limit int) ([]*models.ExecutionContext, error) {
	args := m.Called(ctx, now, limit)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionContext), args.Error(1)
}
