package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCyclicGraph   = errors.New("workflow graph contains a cycle")
	ErrConcurrentRun = errors.New("workflow already has a running execution")
	ErrRunNotFound   = errors.New("no running execution for workflow")
	ErrNoExecutor    = errors.New("no executor for node kind")
)

// CyclicGraphError names the nodes of one cycle, first node repeated last.
type CyclicGraphError struct {
	Cycle []string
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCyclicGraph, strings.Join(e.Cycle, " -> "))
}

func (e *CyclicGraphError) Is(target error) bool {
	return target == ErrCyclicGraph
}

// ConcurrentRunError is returned when a workflow is already held by a run.
type ConcurrentRunError struct {
	WorkflowID  string
	ActiveRunID string
}

func (e *ConcurrentRunError) Error() string {
	if e.ActiveRunID == "" {
		return fmt.Sprintf("%s: %s", ErrConcurrentRun, e.WorkflowID)
	}

	return fmt.Sprintf("%s: %s (execution %s)", ErrConcurrentRun, e.WorkflowID, e.ActiveRunID)
}

func (e *ConcurrentRunError) Is(target error) bool {
	return target == ErrConcurrentRun
}

func IsCyclicGraph(err error) bool {
	return errors.Is(err, ErrCyclicGraph)
}

func IsConcurrentRun(err error) bool {
	return errors.Is(err, ErrConcurrentRun)
}
