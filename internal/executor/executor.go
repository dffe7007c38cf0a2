// Package executor turns a plan into tool invocations with per action result
// capture and failure isolation.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slok/agentd/internal/log"
	"github.com/slok/agentd/internal/model"
	"github.com/slok/agentd/internal/tool"
)

// StepFunc is called after every executed action, successful or not, so the
// caller can report live progress.
type StepFunc func(record model.ActionRecord)

// ServiceConfig is the configuration for the executor service.
type ServiceConfig struct {
	Registry *tool.Registry
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "executor.Service"})
	return nil
}

// Service executes plans.
type Service struct {
	registry *tool.Registry
	logger   log.Logger
}

// NewService creates a new executor service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}, nil
}

// Run executes the plan's actions strictly in order.
//
// On the first failing action the remaining ones are skipped (later actions
// typically depend on earlier side effects). The outcome's output is the
// newline joined output of the successful actions, which on failure is the
// partial output produced before the failing action.
//
// Cancellation is observed between actions only, an in-flight invocation is
// never interrupted. A non-nil error is returned only when the context was
// cancelled at one of those boundaries, in that case no outcome is produced.
func (s *Service) Run(ctx context.Context, plan *model.Plan, onStep StepFunc) (*model.TaskResult, error) {
	result := &model.TaskResult{}
	var outputs []string

	for i, action := range plan.Actions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record := s.runAction(ctx, action)
		result.ActionsTaken = append(result.ActionsTaken, record)
		if onStep != nil {
			onStep(record)
		}

		if !record.Success {
			result.Success = false
			result.Error = fmt.Sprintf("action %d (%s) failed: %s", i+1, action.Tool, record.Error)
			result.Output = strings.Join(outputs, "\n")
			s.logger.Debugf("Plan aborted at action %d/%d (%s)", i+1, len(plan.Actions), action.Tool)
			return result, nil
		}

		outputs = append(outputs, record.Result)
	}

	result.Success = true
	result.Output = strings.Join(outputs, "\n")

	s.logger.Debugf("Plan executed, %d action(s)", len(plan.Actions))

	return result, nil
}

func (s *Service) runAction(ctx context.Context, action model.Action) model.ActionRecord {
	record := model.ActionRecord{
		Tool:   action.Tool,
		Params: action.Params,
	}

	// Plans are validated before execution, but the registry may have
	// changed since then, so resolution is re-checked.
	t, err := s.registry.Get(action.Tool)
	if err != nil {
		record.Error = fmt.Sprintf("tool not registered: %v", err)
		return record
	}

	// The invocation gets a detached context so cooperative cancellation
	// cannot kill it mid flight.
	start := time.Now()
	output, err := t.Invoke(context.WithoutCancel(ctx), action.Params)
	record.Duration = time.Since(start)

	if err != nil {
		record.Error = err.Error()
		return record
	}

	record.Success = true
	record.Result = output

	return record
}
