package persistence

import (
	"errors"
	"fmt"
)

var (
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrInvalidRecord is returned when saving a record without the ids
	// needed to address it.
	ErrInvalidRecord = errors.New("invalid record")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "get", "save", "delete")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// ExecutionError wraps execution-history errors with additional context.
type ExecutionError struct {
	Op          string
	WorkflowID  string
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	if e.ExecutionID == "" {
		return fmt.Sprintf("%s operation failed for executions of workflow %s: %v", e.Op, e.WorkflowID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for execution %s of workflow %s: %v", e.Op, e.ExecutionID, e.WorkflowID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewExecutionError(op, workflowID, executionID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, WorkflowID: workflowID, ExecutionID: executionID, Err: err}
}

func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}
