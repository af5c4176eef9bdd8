// Package services exposes workflow editing and execution to the outer
// surfaces (REST API, CLI, scheduler) and keeps persistence in step with the
// in-memory graph store.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/agentgraph/pkg/graph"
	"github.com/dukex/agentgraph/pkg/persistence"
	"github.com/dukex/agentgraph/pkg/registry"
	"github.com/dukex/agentgraph/pkg/snapshot"
	"github.com/dukex/agentgraph/pkg/workflow"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")

	// Lookups (404 Not Found).
	ErrExecutionNotFound = errors.New("execution not found")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, registry.ErrInvalidDescriptor) ||
		errors.Is(err, registry.ErrUnknownPlacement) ||
		errors.Is(err, registry.ErrUnknownUtilityKind) ||
		errors.Is(err, graph.ErrInvalidConnection) ||
		errors.Is(err, graph.ErrInvalidNode) ||
		errors.Is(err, graph.ErrInvalidEdge) ||
		errors.Is(err, graph.ErrDuplicateNode) ||
		errors.Is(err, graph.ErrDuplicateEdge) ||
		errors.Is(err, snapshot.ErrInvalidSnapshot) ||
		errors.Is(err, workflow.ErrCyclicGraph)
}

// IsConflictError checks if an error is a state conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, graph.ErrWorkflowLocked) ||
		errors.Is(err, workflow.ErrConcurrentRun) ||
		errors.Is(err, workflow.ErrRunNotFound)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return graph.IsNotFound(err) ||
		errors.Is(err, ErrExecutionNotFound) ||
		persistence.IsWorkflowNotFound(err) ||
		persistence.IsExecutionNotFound(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
