package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/agentd/internal/model"
	"github.com/slok/agentd/internal/storage"
)

// MockTaskRepository is a mock implementation of storage.TaskRepository.
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) CreateTask(ctx context.Context, objective string, taskContext map[string]interface{}) (*model.Task, error) {
	args := m.Called(ctx, objective, taskContext)
	task, _ := args.Get(0).(*model.Task)
	return task, args.Error(1)
}

func (m *MockTaskRepository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	args := m.Called(ctx, id)
	task, _ := args.Get(0).(*model.Task)
	return task, args.Error(1)
}

func (m *MockTaskRepository) ListTasks(ctx context.Context, opts storage.ListOptions) ([]model.Task, error) {
	args := m.Called(ctx, opts)
	tasks, _ := args.Get(0).([]model.Task)
	return tasks, args.Error(1)
}

func (m *MockTaskRepository) Transition(ctx context.Context, id string, next model.TaskState) error {
	args := m.Called(ctx, id, next)
	return args.Error(0)
}

func (m *MockTaskRepository) AppendLog(ctx context.Context, id string, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}

func (m *MockTaskRepository) AppendStep(ctx context.Context, id string, description string) error {
	args := m.Called(ctx, id, description)
	return args.Error(0)
}

func (m *MockTaskRepository) Complete(ctx context.Context, id string, result model.TaskResult) error {
	args := m.Called(ctx, id, result)
	return args.Error(0)
}

func (m *MockTaskRepository) Cancel(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTaskRepository) Stats(ctx context.Context) (*model.TaskStats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*model.TaskStats)
	return stats, args.Error(1)
}
