// Package orchestrator drives a single task through its whole lifecycle:
// plan, validate, execute, record the outcome.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/agentd/internal/executor"
	"github.com/slok/agentd/internal/log"
	"github.com/slok/agentd/internal/model"
	"github.com/slok/agentd/internal/planner"
	"github.com/slok/agentd/internal/storage"
	"github.com/slok/agentd/internal/tool"
)

const defaultPlanTimeout = 30 * time.Second

// Executor knows how to execute a plan.
type Executor interface {
	Run(ctx context.Context, plan *model.Plan, onStep executor.StepFunc) (*model.TaskResult, error)
}

// ServiceConfig is the configuration for the orchestrator service.
type ServiceConfig struct {
	Repository storage.TaskRepository
	Planner    planner.Planner
	Registry   *tool.Registry
	Executor   Executor
	// PlanTimeout bounds a single planning call.
	PlanTimeout time.Duration
	Logger      log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Planner == nil {
		return fmt.Errorf("planner is required")
	}
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if c.PlanTimeout <= 0 {
		c.PlanTimeout = defaultPlanTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "orchestrator.Service"})
	return nil
}

// Service runs tasks.
type Service struct {
	repo        storage.TaskRepository
	planner     planner.Planner
	registry    *tool.Registry
	executor    Executor
	planTimeout time.Duration
	logger      log.Logger
}

// NewService creates a new orchestrator service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:        cfg.Repository,
		planner:     cfg.Planner,
		registry:    cfg.Registry,
		executor:    cfg.Executor,
		planTimeout: cfg.PlanTimeout,
		logger:      cfg.Logger,
	}, nil
}

// Run executes the task with the given id until it reaches a terminal state.
//
// Run itself only errors on infrastructure problems (e.g. the task does not
// exist), a task that fails to plan or execute ends up failed with the reason
// attached as its result. Cancellation through ctx leaves the task cancelled
// and is not an error.
func (s *Service) Run(ctx context.Context, taskID string) error {
	logger := s.logger.WithValues(log.Kv{"task-id": taskID})

	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("could not get task: %w", err)
	}

	err = s.repo.Transition(ctx, taskID, model.TaskStateRunning)
	if err != nil {
		// The task was most likely cancelled before execution started.
		logger.Infof("Task not runnable, skipping: %v", err)
		return nil
	}

	_ = s.repo.AppendLog(ctx, taskID, "Execution started")
	logger.Infof("Task execution started")

	plan, err := s.createPlan(ctx, task)
	if err != nil {
		return s.finish(ctx, logger, taskID, &model.TaskResult{Error: err.Error()})
	}

	_ = s.repo.AppendLog(ctx, taskID, fmt.Sprintf("Plan created with %d action(s)", len(plan.Actions)))

	result, err := s.executor.Run(ctx, plan, func(record model.ActionRecord) {
		_ = s.repo.AppendStep(ctx, taskID, stepDescription(record))
	})
	if err != nil {
		// Cancelled at an action boundary, the cancel call already moved the
		// task to its terminal state.
		logger.Infof("Task execution cancelled")
		return nil
	}

	return s.finish(ctx, logger, taskID, result)
}

func (s *Service) createPlan(ctx context.Context, task *model.Task) (*model.Plan, error) {
	planCtx, cancel := context.WithTimeout(ctx, s.planTimeout)
	defer cancel()

	plan, err := s.planner.CreatePlan(planCtx, planner.Request{
		Objective: task.Objective,
		Context:   task.Context,
		Tools:     s.registry.Manifests(),
	})
	if err != nil {
		return nil, err
	}

	if err := planner.ValidatePlan(plan, s.registry); err != nil {
		return nil, err
	}

	return plan, nil
}

func (s *Service) finish(ctx context.Context, logger log.Logger, taskID string, result *model.TaskResult) error {
	// Cancellation may have won the race while we were executing, finishing a
	// terminal task is not an error then.
	err := s.repo.Complete(ctx, taskID, *result)
	switch {
	case errors.Is(err, model.ErrAlreadyTerminal):
		logger.Infof("Task already terminal, result discarded")
		return nil
	case err != nil:
		return fmt.Errorf("could not complete task: %w", err)
	}

	if result.Success {
		logger.Infof("Task completed")
	} else {
		logger.Warningf("Task failed: %s", result.Error)
	}

	return nil
}

func stepDescription(record model.ActionRecord) string {
	if record.Success {
		return fmt.Sprintf("Executed %s (ok in %s)", record.Tool, record.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("Executed %s (failed: %s)", record.Tool, record.Error)
}
