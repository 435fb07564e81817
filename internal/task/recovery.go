package task

import "context"

// RecoveryHandler is the compensation strategy applied when a task
// fails with a non-retryable error.
type RecoveryHandler interface {
	// Recover attempts to compensate or degrade. A non-nil result is
	// written to the task as a degraded success; a nil result lets the
	// normal failure path continue.
	Recover(ctx context.Context, task *Task, cause error) (*string, error)
}
