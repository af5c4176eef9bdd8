// Package graph owns workflow definitions: the connection rules that decide
// which edges are admissible and the store that keeps nodes and edges
// consistent.
package graph

import (
	"errors"
	"fmt"
)

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrNodeNotFound     = errors.New("node not found")
	ErrEdgeNotFound     = errors.New("edge not found")
	ErrDuplicateNode    = errors.New("node already exists")
	ErrDuplicateEdge    = errors.New("edge already exists")
	ErrInvalidNode      = errors.New("invalid node")
	ErrInvalidEdge      = errors.New("invalid edge")

	// ErrInvalidConnection is returned when the connection rules reject an edge.
	ErrInvalidConnection = errors.New("invalid connection")

	// ErrWorkflowLocked is returned for mutations while a run owns the workflow.
	ErrWorkflowLocked = errors.New("workflow is locked by an active run")

	ErrNotRunOwner       = errors.New("caller does not own the active run")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ConnectionError carries the rule that rejected an edge.
type ConnectionError struct {
	SourceNodeID string
	TargetNodeID string
	Reason       string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("invalid connection %s -> %s: %s", e.SourceNodeID, e.TargetNodeID, e.Reason)
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrInvalidConnection
}

// WorkflowError wraps store errors with the operation and workflow involved.
type WorkflowError struct {
	Op         string
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

func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrNodeNotFound) ||
		errors.Is(err, ErrEdgeNotFound)
}

func IsInvalidConnection(err error) bool {
	return errors.Is(err, ErrInvalidConnection)
}

func IsLocked(err error) bool {
	return errors.Is(err, ErrWorkflowLocked)
}
