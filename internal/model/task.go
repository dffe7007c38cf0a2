package model

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	// TaskStatePending indicates the task is created and waiting for execution.
	TaskStatePending TaskState = "pending"
	// TaskStateRunning indicates the task is being executed.
	TaskStateRunning TaskState = "running"
	// TaskStateCompleted indicates the task finished successfully.
	TaskStateCompleted TaskState = "completed"
	// TaskStateFailed indicates the task failed during planning or execution.
	TaskStateFailed TaskState = "failed"
	// TaskStateCancelled indicates the task was cancelled by a caller.
	TaskStateCancelled TaskState = "cancelled"
)

// taskTransitions is the legal lifecycle transition table. Terminal states
// have no outgoing edges.
var taskTransitions = map[TaskState][]TaskState{
	TaskStatePending: {TaskStateRunning, TaskStateCancelled},
	TaskStateRunning: {TaskStateCompleted, TaskStateFailed, TaskStateCancelled},
}

// IsTerminal returns true when no further transitions are allowed.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCancelled:
		return true
	}
	return false
}

// CanTransitionTo returns true when the s -> next edge exists in the
// transition table. Transitioning into the current state is never legal.
func (s TaskState) CanTransitionTo(next TaskState) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseTaskState parses a task state from its string representation.
func ParseTaskState(raw string) (TaskState, error) {
	s := TaskState(raw)
	switch s {
	case TaskStatePending, TaskStateRunning, TaskStateCompleted, TaskStateFailed, TaskStateCancelled:
		return s, nil
	}
	return "", fmt.Errorf("unknown task state %q: %w", raw, ErrNotValid)
}

// LogEntry is a single append-only log line on a task.
type LogEntry struct {
	Timestamp time.Time
	Message   string
}

// Step is a single executed action entry on a task.
type Step struct {
	Timestamp   time.Time
	Description string
}

// ActionRecord captures one tool invocation, successful or not.
type ActionRecord struct {
	Tool     string
	Params   map[string]interface{}
	Result   string
	Success  bool
	Error    string
	Duration time.Duration
}

// TaskResult is the final outcome of a task execution. It is immutable once
// attached to a task.
type TaskResult struct {
	Success      bool
	Output       string
	Error        string
	ActionsTaken []ActionRecord
}

// Validate validates the result invariants.
func (r *TaskResult) Validate() error {
	if r.Success && r.Error != "" {
		return fmt.Errorf("successful result must not carry an error: %w", ErrNotValid)
	}
	if !r.Success && r.Error == "" {
		return fmt.Errorf("failed result requires an error: %w", ErrNotValid)
	}
	return nil
}

const (
	// MinObjectiveLength is the minimum objective length in characters.
	MinObjectiveLength = 3
	// MaxObjectiveLength is the maximum objective length in characters.
	MaxObjectiveLength = 1000
)

// ValidateObjective validates the free-text objective of a task.
func ValidateObjective(objective string) error {
	length := utf8.RuneCountInString(objective)
	if length < MinObjectiveLength {
		return fmt.Errorf("objective must be at least %d characters: %w", MinObjectiveLength, ErrNotValid)
	}
	if length > MaxObjectiveLength {
		return fmt.Errorf("objective must be at most %d characters: %w", MaxObjectiveLength, ErrNotValid)
	}
	return nil
}

// Task represents a unit of work submitted to the agent.
type Task struct {
	ID        string
	Objective string
	Context   map[string]interface{}
	State     TaskState
	CreatedAt time.Time
	UpdatedAt time.Time
	Logs      []LogEntry
	Steps     []Step
	Result    *TaskResult
}

// TaskStats are live counters of tasks per state.
type TaskStats struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
	Cancelled int
}
