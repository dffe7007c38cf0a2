// Package task implements the application service for task management: it
// accepts tasks, runs them in the background and owns their cooperative
// cancellation.
package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/agentd/internal/log"
	"github.com/slok/agentd/internal/model"
	"github.com/slok/agentd/internal/storage"
)

// Orchestrator runs a single task to a terminal state.
type Orchestrator interface {
	Run(ctx context.Context, taskID string) error
}

// ServiceConfig is the configuration for the task application service.
type ServiceConfig struct {
	Repository   storage.TaskRepository
	Orchestrator Orchestrator
	Logger       log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Orchestrator == nil {
		return fmt.Errorf("orchestrator is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Task"})
	return nil
}

// Service is the task application service.
type Service struct {
	repo   storage.TaskRepository
	orch   Orchestrator
	logger log.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates a new task application service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:    cfg.Repository,
		orch:    cfg.Orchestrator,
		logger:  cfg.Logger,
		cancels: map[string]context.CancelFunc{},
	}, nil
}

// Create stores a new task and starts executing it in the background. The
// returned task is the stored pending snapshot, callers poll for progress.
func (s *Service) Create(ctx context.Context, objective string, taskContext map[string]interface{}) (*model.Task, error) {
	task, err := s.repo.CreateTask(ctx, objective, taskContext)
	if err != nil {
		return nil, fmt.Errorf("could not create task: %w", err)
	}

	// The execution outlives the request, so it gets its own cancellable
	// context instead of the caller's.
	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[task.ID] = cancel
	s.mu.Unlock()

	s.logger.WithValues(log.Kv{"task-id": task.ID}).Infof("Task accepted")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.forgetCancel(task.ID)

		err := s.orch.Run(runCtx, task.ID)
		if err != nil {
			s.logger.WithValues(log.Kv{"task-id": task.ID}).Errorf("Task execution error: %v", err)
		}
	}()

	return task, nil
}

// Get returns a task by id.
func (s *Service) Get(ctx context.Context, id string) (*model.Task, error) {
	return s.repo.GetTask(ctx, id)
}

// List returns tasks in creation order.
func (s *Service) List(ctx context.Context, opts storage.ListOptions) ([]model.Task, error) {
	return s.repo.ListTasks(ctx, opts)
}

// Stats returns live per-state task counters.
func (s *Service) Stats(ctx context.Context) (*model.TaskStats, error) {
	return s.repo.Stats(ctx)
}

// Cancel cancels a pending or running task. The repository transition is the
// source of truth, the running execution (if any) is signalled afterwards and
// stops cooperatively at its next action boundary.
func (s *Service) Cancel(ctx context.Context, id string) (*model.Task, error) {
	err := s.repo.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	cancel, ok := s.cancels[id]
	delete(s.cancels, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}

	s.logger.WithValues(log.Kv{"task-id": id}).Infof("Task cancelled")

	return s.repo.GetTask(ctx, id)
}

// Wait blocks until all in-flight task executions have returned. Meant for
// graceful shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) forgetCancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
}
