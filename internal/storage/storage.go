package storage

import (
	"context"

	"github.com/slok/agentd/internal/model"
)

// ListOptions are the options for listing tasks.
type ListOptions struct {
	// State filters tasks by state when set.
	State *model.TaskState
	// Limit caps the number of returned tasks. Zero or negative uses the
	// implementation default.
	Limit int
}

// TaskRepository is the interface for task persistence and lifecycle
// management. Every mutating operation enforces the lifecycle transition
// table and is safe for concurrent use.
type TaskRepository interface {
	// CreateTask validates the objective, assigns a fresh unique id and
	// stores a new pending task with a creation log entry.
	CreateTask(ctx context.Context, objective string, taskContext map[string]interface{}) (*model.Task, error)

	// GetTask retrieves a task by id.
	GetTask(ctx context.Context, id string) (*model.Task, error)

	// ListTasks returns tasks in insertion order, optionally filtered.
	ListTasks(ctx context.Context, opts ListOptions) ([]model.Task, error)

	// Transition moves a task through a legal lifecycle edge.
	Transition(ctx context.Context, id string, next model.TaskState) error

	// AppendLog appends a log entry to a task.
	AppendLog(ctx context.Context, id string, message string) error

	// AppendStep appends an executed step entry to a task.
	AppendStep(ctx context.Context, id string, description string) error

	// Complete atomically attaches the result, transitions the task to
	// completed or failed and appends a final log entry. Callable at most
	// once per task.
	Complete(ctx context.Context, id string, result model.TaskResult) error

	// Cancel transitions a pending or running task to cancelled.
	Cancel(ctx context.Context, id string) error

	// Stats returns live per-state counters.
	Stats(ctx context.Context) (*model.TaskStats, error)
}
