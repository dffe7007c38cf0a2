package toolmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/agentd/internal/tool"
)

// MockTool is a mock implementation of tool.Tool.
type MockTool struct {
	mock.Mock

	// Name is returned in the manifest so mocks can be registered.
	Name string
}

func (m *MockTool) Invoke(ctx context.Context, params map[string]interface{}) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *MockTool) Manifest() tool.Manifest {
	return tool.Manifest{Name: m.Name, Description: "mock tool"}
}
