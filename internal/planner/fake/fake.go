// Package fake implements a deterministic offline planner, useful for
// development and tests where no real oracle is available.
package fake

import (
	"context"
	"fmt"
	"strings"

	"github.com/slok/agentd/internal/log"
	"github.com/slok/agentd/internal/model"
	"github.com/slok/agentd/internal/planner"
)

// PlannerConfig is the configuration for the fake planner.
type PlannerConfig struct {
	Logger log.Logger
}

func (c *PlannerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "planner.Fake"})
	return nil
}

// Planner maps objective keywords to single action plans. Same objective and
// tool catalog always produce the same plan.
type Planner struct {
	logger log.Logger
}

// NewPlanner creates a new fake planner.
func NewPlanner(cfg PlannerConfig) (*Planner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Planner{logger: cfg.Logger}, nil
}

// CreatePlan implements planner.Planner.
func (p *Planner) CreatePlan(ctx context.Context, req planner.Request) (*model.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	available := map[string]bool{}
	for _, manifest := range req.Tools {
		available[manifest.Name] = true
	}

	objective := strings.ToLower(req.Objective)

	var action model.Action
	switch {
	case containsAny(objective, "list", "show", "find") && available["list_files"]:
		action = model.Action{Tool: "list_files", Params: map[string]interface{}{"root": "."}}
	case containsAny(objective, "status") && available["git_status"]:
		action = model.Action{Tool: "git_status", Params: map[string]interface{}{}}
	case containsAny(objective, "commit") && available["git_commit"]:
		action = model.Action{Tool: "git_commit", Params: map[string]interface{}{"message": req.Objective}}
	case available["shell"]:
		action = model.Action{Tool: "shell", Params: map[string]interface{}{"command": fmt.Sprintf("echo %q", req.Objective)}}
	default:
		return nil, planner.NewPlanError(planner.FailureUpstreamError, "no suitable tool available for objective")
	}

	p.logger.Debugf("Fake plan for %q: %s", req.Objective, action.Tool)

	return &model.Plan{Objective: req.Objective, Actions: []model.Action{action}}, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
