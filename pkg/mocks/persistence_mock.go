package mocks

import (
	"context"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowDefinition), args.Error(1)
}

func (m *MockPersistence) SaveWorkflow(ctx context.Context, def *models.WorkflowDefinition) error {
	args := m.Called(ctx, def)

	return args.Error(0)
}

func (m *MockPersistence) WorkflowByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowDefinition), args.Error(1)
}

func (m *MockPersistence) DeleteWorkflow(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockPersistence) SaveExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	args := m.Called(ctx, rec)

	return args.Error(0)
}

func (m *MockPersistence) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionRecord), args.Error(1)
}

func (m *MockPersistence) ExecutionByID(ctx context.Context, workflowID, executionID string) (*models.ExecutionRecord, error) {
	args := m.Called(ctx, workflowID, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionRecord), args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

var _ persistence.Persistence = (*MockPersistence)(nil)
