package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrIllegalTransition is returned when a task state change does not follow
	// the lifecycle transition table.
	ErrIllegalTransition = errors.New("illegal state transition")
	// ErrAlreadyTerminal is returned when completing a task that already
	// reached a terminal state.
	ErrAlreadyTerminal = errors.New("task already in terminal state")
	// ErrNotCancellable is returned when cancelling a task that is not pending
	// or running.
	ErrNotCancellable = errors.New("task not cancellable")
)
