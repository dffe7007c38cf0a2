package plannermock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/agentd/internal/model"
	"github.com/slok/agentd/internal/planner"
)

// MockPlanner is a mock implementation of planner.Planner.
type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) CreatePlan(ctx context.Context, req planner.Request) (*model.Plan, error) {
	args := m.Called(ctx, req)
	plan, _ := args.Get(0).(*model.Plan)
	return plan, args.Error(1)
}
