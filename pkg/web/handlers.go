// Package web provides HTTP handlers and REST API endpoints for workflow
// editing and execution.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/dukex/agentgraph/pkg/metrics"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/registry"
	"github.com/dukex/agentgraph/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
)

type APIHandlers struct {
	workflowService  *services.Workflow
	nodeService      *services.Node
	executionService *services.Execution
	metrics          *metrics.Metrics
	validator        *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	nodeService *services.Node,
	executionService *services.Execution,
	metrics *metrics.Metrics,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		nodeService:      nodeService,
		executionService: executionService,
		metrics:          metrics,
		validator:        validator,
	}
}

// Routes registers every API endpoint on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	if h.metrics != nil {
		router.Get("/metrics", adaptor.HTTPHandler(h.metrics.Handler()))
	}

	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Post("/import", h.ImportWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/reset", h.ResetWorkflow)
	w.Get("/:id/export", h.ExportWorkflow)

	w.Post("/:id/nodes", h.CreateWorkflowNode)
	w.Get("/:id/nodes/:nodeId", h.GetWorkflowNode)
	w.Patch("/:id/nodes/:nodeId", h.UpdateWorkflowNode)
	w.Delete("/:id/nodes/:nodeId", h.DeleteWorkflowNode)

	w.Get("/:id/connections/check", h.CheckConnection)
	w.Post("/:id/edges", h.CreateWorkflowEdge)
	w.Delete("/:id/edges/:edgeId", h.DeleteWorkflowEdge)

	w.Post("/:id/plan", h.PlanRun)
	w.Post("/:id/runs", h.StartRun)
	w.Get("/:id/runs", h.GetExecutions)
	w.Get("/:id/runs/active", h.GetActiveRun)
	w.Post("/:id/runs/cancel", h.CancelRun)
	w.Get("/:id/runs/:executionId", h.GetExecution)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "agentgraph API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "agentgraph API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows := h.workflowService.List()

	summaries := make([]WorkflowSummary, 0, len(workflows))
	for _, wf := range workflows {
		_, running := h.executionService.Active(wf.ID)

		summaries = append(summaries, WorkflowSummary{
			ID:          wf.ID,
			Name:        wf.Name,
			Description: wf.Description,
			NodeCount:   len(wf.Nodes),
			EdgeCount:   len(wf.Edges),
			Running:     running,
		})
	}

	return c.JSON(fiber.Map{
		"workflows":   summaries,
		"total_count": len(summaries),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), req.Name, req.Description)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.workflowService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ResetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.Reset(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) ExportWorkflow(c fiber.Ctx) error {
	snap, err := h.workflowService.Export(c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(snap)
}

func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return badRequest(c, "Snapshot body is required")
	}

	imported, err := h.workflowService.Import(c.Context(), body)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(imported)
}

func (h *APIHandlers) CreateWorkflowNode(c fiber.Ctx) error {
	var req registry.Placement
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.nodeService.CreateNode(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(node)
}

func (h *APIHandlers) GetWorkflowNode(c fiber.Ctx) error {
	node, err := h.nodeService.GetNode(c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) UpdateWorkflowNode(c fiber.Ctx) error {
	var req UpdateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.nodeService.UpdateNode(c.Context(), c.Params("id"), c.Params("nodeId"), req.toUpdate())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) DeleteWorkflowNode(c fiber.Ctx) error {
	if err := h.nodeService.DeleteNode(c.Context(), c.Params("id"), c.Params("nodeId")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// CheckConnection reports whether an edge between the source and target
// query parameters would be accepted, without creating it.
func (h *APIHandlers) CheckConnection(c fiber.Ctx) error {
	source := c.Query("source")
	target := c.Query("target")

	if source == "" || target == "" {
		return badRequest(c, "source and target are required")
	}

	kind := models.EdgeKind(c.Query("kind", string(models.EdgeKindData)))
	if !kind.Valid() {
		return badRequest(c, "kind must be data or a2a")
	}

	result, err := h.nodeService.CheckConnection(c.Params("id"), source, target, kind)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) CreateWorkflowEdge(c fiber.Ctx) error {
	var req CreateEdgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	edge, err := h.nodeService.CreateEdge(c.Context(), c.Params("id"), req.toServiceRequest())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(edge)
}

func (h *APIHandlers) DeleteWorkflowEdge(c fiber.Ctx) error {
	if err := h.nodeService.DeleteEdge(c.Context(), c.Params("id"), c.Params("edgeId")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PlanRun(c fiber.Ctx) error {
	req, err := bindRunRequest(c)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	id := c.Params("id")

	plan, err := h.executionService.Plan(id, req.Input)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(newPlanResponse(id, plan))
}

// StartRun starts a run. Without wait it answers 202 with the record as it
// stands right after start.
func (h *APIHandlers) StartRun(c fiber.Ctx) error {
	req, err := bindRunRequest(c)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	var ctx context.Context = c.Context()
	if !req.Wait {
		// The run outlives the request.
		ctx = context.Background()
	}

	record, err := h.executionService.Run(ctx, c.Params("id"), req.Input, req.Wait)
	if err != nil {
		return handleServiceError(c, err)
	}

	if !req.Wait {
		return c.Status(fiber.StatusAccepted).JSON(record)
	}

	return c.JSON(record)
}

func (h *APIHandlers) GetActiveRun(c fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.workflowService.FetchByID(id); err != nil {
		return handleServiceError(c, err)
	}

	record, ok := h.executionService.Active(id)
	if !ok {
		return notFound(c, "No active run")
	}

	return c.JSON(record)
}

func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	record, err := h.executionService.Cancel(c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(record)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.workflowService.FetchByID(id); err != nil {
		return handleServiceError(c, err)
	}

	records, err := h.executionService.List(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if records == nil {
		records = []*models.ExecutionRecord{}
	}

	return c.JSON(fiber.Map{
		"executions":  records,
		"total_count": len(records),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	record, err := h.executionService.Get(c.Context(), c.Params("id"), c.Params("executionId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func bindRunRequest(c fiber.Ctx) (RunRequest, error) {
	var req RunRequest

	if len(c.Body()) == 0 {
		return req, nil
	}

	err := c.Bind().JSON(&req)

	return req, err
}
