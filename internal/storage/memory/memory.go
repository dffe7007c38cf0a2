package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/agentd/internal/log"
	"github.com/slok/agentd/internal/model"
	"github.com/slok/agentd/internal/storage"
)

const defaultListLimit = 50

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.TaskRepository.
//
// A single mutex serializes all mutations; readers always get deep copies so
// they can never observe a partially written record.
type Repository struct {
	tasks  map[string]*model.Task
	order  []string
	mu     sync.RWMutex
	logger log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		tasks:  map[string]*model.Task{},
		logger: cfg.Logger,
	}, nil
}

// CreateTask creates a new pending task.
func (r *Repository) CreateTask(ctx context.Context, objective string, taskContext map[string]interface{}) (*model.Task, error) {
	if err := model.ValidateObjective(objective); err != nil {
		return nil, fmt.Errorf("invalid objective: %w", err)
	}

	now := time.Now().UTC()
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()

	task := &model.Task{
		ID:        id,
		Objective: objective,
		Context:   copyContext(taskContext),
		State:     model.TaskStatePending,
		CreatedAt: now,
		UpdatedAt: now,
		Logs: []model.LogEntry{
			{Timestamp: now, Message: fmt.Sprintf("Task created: %s", objective)},
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; ok {
		return nil, fmt.Errorf("task with id %s: %w", id, model.ErrAlreadyExists)
	}
	r.tasks[id] = task
	r.order = append(r.order, id)

	r.logger.Debugf("Created task in repository: %s", id)

	return copyTask(task), nil
}

// GetTask retrieves a task by id.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	return copyTask(task), nil
}

// ListTasks returns tasks in insertion order, optionally filtered by state.
func (r *Repository) ListTasks(ctx context.Context, opts storage.ListOptions) ([]model.Task, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.Task, 0, limit)
	for _, id := range r.order {
		task := r.tasks[id]
		if opts.State != nil && task.State != *opts.State {
			continue
		}
		tasks = append(tasks, *copyTask(task))
		if len(tasks) >= limit {
			break
		}
	}

	return tasks, nil
}

// Transition moves a task through a legal lifecycle edge.
func (r *Repository) Transition(ctx context.Context, id string, next model.TaskState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	if !task.State.CanTransitionTo(next) {
		return fmt.Errorf("task %s cannot transition from %q to %q: %w", id, task.State, next, model.ErrIllegalTransition)
	}

	task.State = next
	r.touch(task)

	r.logger.Debugf("Task %s transitioned to %s", id, next)

	return nil
}

// AppendLog appends a log entry to a task.
func (r *Repository) AppendLog(ctx context.Context, id string, message string) error {
	if message == "" {
		return fmt.Errorf("log message is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	task.Logs = append(task.Logs, model.LogEntry{Timestamp: time.Now().UTC(), Message: message})
	r.touch(task)

	return nil
}

// AppendStep appends an executed step entry to a task.
func (r *Repository) AppendStep(ctx context.Context, id string, description string) error {
	if description == "" {
		return fmt.Errorf("step description is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	task.Steps = append(task.Steps, model.Step{Timestamp: time.Now().UTC(), Description: description})
	r.touch(task)

	return nil
}

// Complete atomically attaches the result, transitions the task and appends
// the final log entry.
func (r *Repository) Complete(ctx context.Context, id string, result model.TaskResult) error {
	if err := result.Validate(); err != nil {
		return fmt.Errorf("invalid result: %w", err)
	}

	next := model.TaskStateFailed
	outcome := "failure"
	if result.Success {
		next = model.TaskStateCompleted
		outcome = "success"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	if task.State.IsTerminal() {
		return fmt.Errorf("task %s is %s: %w", id, task.State, model.ErrAlreadyTerminal)
	}
	if !task.State.CanTransitionTo(next) {
		return fmt.Errorf("task %s cannot transition from %q to %q: %w", id, task.State, next, model.ErrIllegalTransition)
	}

	resultCopy := copyResult(&result)
	task.Result = resultCopy
	task.State = next
	task.Logs = append(task.Logs, model.LogEntry{
		Timestamp: time.Now().UTC(),
		Message:   fmt.Sprintf("Task finished with %s", outcome),
	})
	r.touch(task)

	r.logger.Debugf("Task %s completed with %s", id, outcome)

	return nil
}

// Cancel transitions a pending or running task to cancelled.
func (r *Repository) Cancel(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	if !task.State.CanTransitionTo(model.TaskStateCancelled) {
		return fmt.Errorf("task %s is %s: %w", id, task.State, model.ErrNotCancellable)
	}

	task.State = model.TaskStateCancelled
	task.Logs = append(task.Logs, model.LogEntry{Timestamp: time.Now().UTC(), Message: "Task cancelled by caller"})
	r.touch(task)

	r.logger.Debugf("Task %s cancelled", id)

	return nil
}

// Stats returns live per-state counters.
func (r *Repository) Stats(ctx context.Context) (*model.TaskStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &model.TaskStats{Total: len(r.tasks)}
	for _, task := range r.tasks {
		switch task.State {
		case model.TaskStatePending:
			stats.Pending++
		case model.TaskStateRunning:
			stats.Running++
		case model.TaskStateCompleted:
			stats.Completed++
		case model.TaskStateFailed:
			stats.Failed++
		case model.TaskStateCancelled:
			stats.Cancelled++
		}
	}

	return stats, nil
}

// touch bumps UpdatedAt keeping it monotonically non-decreasing.
func (r *Repository) touch(task *model.Task) {
	now := time.Now().UTC()
	if now.Before(task.UpdatedAt) {
		return
	}
	task.UpdatedAt = now
}

func copyTask(t *model.Task) *model.Task {
	taskCopy := *t
	taskCopy.Context = copyContext(t.Context)
	taskCopy.Logs = append([]model.LogEntry(nil), t.Logs...)
	taskCopy.Steps = append([]model.Step(nil), t.Steps...)
	taskCopy.Result = copyResult(t.Result)
	return &taskCopy
}

func copyResult(res *model.TaskResult) *model.TaskResult {
	if res == nil {
		return nil
	}
	resultCopy := *res
	resultCopy.ActionsTaken = make([]model.ActionRecord, 0, len(res.ActionsTaken))
	for _, action := range res.ActionsTaken {
		actionCopy := action
		actionCopy.Params = copyContext(action.Params)
		resultCopy.ActionsTaken = append(resultCopy.ActionsTaken, actionCopy)
	}
	return &resultCopy
}

func copyContext(values map[string]interface{}) map[string]interface{} {
	if values == nil {
		return nil
	}
	valuesCopy := make(map[string]interface{}, len(values))
	for k, v := range values {
		valuesCopy[k] = v
	}
	return valuesCopy
}
