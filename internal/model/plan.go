package model

import "fmt"

// Action is a single tool invocation within a plan.
type Action struct {
	Tool   string
	Params map[string]interface{}
}

// Plan is an ordered sequence of actions produced by a planner for an
// objective. It is ephemeral: its trace ends up flattened into the owning
// task's steps and result.
type Plan struct {
	Objective string
	Actions   []Action
}

// Validate validates the plan structure.
func (p *Plan) Validate() error {
	if len(p.Actions) == 0 {
		return fmt.Errorf("plan requires at least one action: %w", ErrNotValid)
	}
	for i, action := range p.Actions {
		if action.Tool == "" {
			return fmt.Errorf("action %d has an empty tool name: %w", i+1, ErrNotValid)
		}
	}
	return nil
}
