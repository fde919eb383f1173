package queue

import "errors"

var (
	// ErrTaskNotFound is returned when a task id does not exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrConflict is returned when a lifecycle transition is not allowed from
	// the task's current state.
	ErrConflict = errors.New("operation not allowed in current state")
	// ErrUserQueueFull is returned when enqueueing would exceed the per-user cap.
	ErrUserQueueFull = errors.New("user queue limit reached")
)
