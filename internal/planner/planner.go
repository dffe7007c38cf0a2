// Package planner contains the planning oracle contract: something that
// turns an objective and a tool catalog into an ordered plan of actions.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/agentd/internal/model"
	"github.com/slok/agentd/internal/tool"
)

// FailureCode classifies a planning failure.
type FailureCode string

const (
	// FailureTimeout indicates the oracle did not answer within the bounded
	// timeout.
	FailureTimeout FailureCode = "timeout"
	// FailureMalformedOutput indicates the oracle answered with something
	// that is not a structurally valid plan.
	FailureMalformedOutput FailureCode = "malformed_output"
	// FailureUnknownTool indicates the plan references a tool that is not
	// registered.
	FailureUnknownTool FailureCode = "unknown_tool"
	// FailureUpstreamError indicates the oracle itself failed.
	FailureUpstreamError FailureCode = "upstream_error"
)

// PlanError is a typed planning failure.
type PlanError struct {
	Code    FailureCode
	Message string
	cause   error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("planning failed (%s): %s", e.Code, e.Message)
}

func (e *PlanError) Unwrap() error { return e.cause }

// NewPlanError creates a PlanError with a formatted message.
func NewPlanError(code FailureCode, format string, args ...interface{}) *PlanError {
	return &PlanError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapPlanError creates a PlanError wrapping a cause.
func WrapPlanError(code FailureCode, cause error, format string, args ...interface{}) *PlanError {
	return &PlanError{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// AsPlanError unwraps a PlanError from an error chain.
func AsPlanError(err error) (*PlanError, bool) {
	var planErr *PlanError
	ok := errors.As(err, &planErr)
	return planErr, ok
}

// Request is the input of a planning call.
type Request struct {
	Objective string
	// Context is an opaque payload passed through to the oracle unmodified.
	Context map[string]interface{}
	// Tools is the catalog of available tools, in registry order.
	Tools []tool.Manifest
}

// Planner creates plans for objectives. Implementations never retry on
// their own, the retry policy (if any) belongs to the caller.
type Planner interface {
	CreatePlan(ctx context.Context, req Request) (*model.Plan, error)
}

// ValidatePlan checks that every action in the plan resolves against the
// registry, so an unknown tool surfaces as a planning failure instead of an
// execution time crash.
func ValidatePlan(plan *model.Plan, reg *tool.Registry) error {
	if err := plan.Validate(); err != nil {
		return WrapPlanError(FailureMalformedOutput, err, "invalid plan structure: %v", err)
	}

	for i, action := range plan.Actions {
		if _, err := reg.Get(action.Tool); err != nil {
			return NewPlanError(FailureUnknownTool, "action %d references unknown tool %q", i+1, action.Tool)
		}
	}

	return nil
}
