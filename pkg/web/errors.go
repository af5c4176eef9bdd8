package web

import (
	"errors"

	"github.com/dukex/agentgraph/pkg/graph"
	"github.com/dukex/agentgraph/pkg/services"
	"github.com/dukex/agentgraph/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

// handleServiceError maps service layer errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsNotFoundError(err):
		problemType := "not_found"

		switch {
		case errors.Is(err, graph.ErrWorkflowNotFound):
			problemType = "workflow_not_found"
		case errors.Is(err, graph.ErrNodeNotFound):
			problemType = "node_not_found"
		case errors.Is(err, graph.ErrEdgeNotFound):
			problemType = "edge_not_found"
		case errors.Is(err, services.ErrExecutionNotFound):
			problemType = "execution_not_found"
		}

		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType(problemType).
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case services.IsValidationError(err):
		problemType := "validation_error"
		if graph.IsInvalidConnection(err) {
			problemType = "invalid_connection"
		}

		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType(problemType).
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case services.IsConflictError(err):
		problemType := "conflict"

		switch {
		case errors.Is(err, workflow.ErrRunNotFound):
			problemType = "no_active_run"
		case graph.IsLocked(err), errors.Is(err, workflow.ErrConcurrentRun):
			problemType = "workflow_running"
		}

		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType(problemType).
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
