// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/penguintechinc/waddlebot-sub014/pkg/registry"
	"github.com/penguintechinc/waddlebot-sub014/pkg/services"
	"github.com/penguintechinc/waddlebot-sub014/pkg/trace"
	"github.com/penguintechinc/waddlebot-sub014/pkg/workflow"
)

type APIHandlers struct {
	workflowService   *services.Workflow
	publishingService *services.Publishing
	executionService  *services.Execution
	licenseService    *services.License
	validator         *validator.Validate
	registry          *registry.Registry
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	publishingService *services.Publishing,
	executionService *services.Execution,
	licenseService *services.License,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		workflowService:   workflowService,
		publishingService: publishingService,
		executionService:  executionService,
		licenseService:    licenseService,
		validator:         validator,
		registry:          registry,
	}
}

// Register mounts every workflow, execution and license route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/publish", h.PublishWorkflow)
	w.Post("/:id/drafts", h.CreateDraftFromPublished)
	w.Post("/:id/execute", h.ExecuteWorkflow)
	w.Get("/:id/executions", h.ListExecutions)

	router.Get("/executions/:id", h.GetExecution)
	router.Get("/executions/:id/trace", h.GetExecutionTrace)

	c := router.Group("/communities")
	c.Post("/:id/events", h.DispatchEvent)
	c.Get("/:id/license", h.GetLicense)
	c.Delete("/:id/license/cache", h.InvalidateLicenseCache)

	router.Get("/health", h.HealthCheck)
}

// GetWorkflows lists the workflows of the community named by the community_id query parameter.
func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	communityID := c.Query("community_id")
	if communityID == "" {
		return badRequest(c, "community_id query parameter is required")
	}

	workflows, err := h.workflowService.ListWorkflows(c.Context(), communityID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.GetWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryErr := h.registry.HealthCheck()
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	registryCheck := "Registry is healthy"
	if registryErr != nil {
		registryCheck = registryErr.Error()
	}

	status := "unhealthy"
	message := "Workflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if registryErr == nil && repOk {
		status = "healthy"
		message = "Workflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// CreateWorkflow accepts a workflow document. Editor-only fields are dropped by the decoder.
func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	def, err := workflow.DecodeJSON(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.CreateWorkflow(c.Context(), def)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	def, err := workflow.DecodeJSON(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.UpdateWorkflow(c.Context(), c.Params("id"), def)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.workflowService.DeleteWorkflow(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PublishWorkflow(c fiber.Ctx) error {
	published, err := h.publishingService.PublishWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(published)
}

func (h *APIHandlers) CreateDraftFromPublished(c fiber.Ctx) error {
	draft, err := h.publishingService.CreateDraftFromPublished(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(draft)
}

func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	req, err := h.bindExecuteRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.executionService.ExecuteWorkflow(c.Context(), c.Params("id"), req.TriggerEvent(c.Query("community_id")))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	results, err := h.executionService.ListExecutions(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  results,
		"total_count": len(results),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	result, err := h.executionService.GetExecution(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// GetExecutionTrace renders a stored execution as a trace document.
func (h *APIHandlers) GetExecutionTrace(c fiber.Ctx) error {
	result, err := h.executionService.GetExecution(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(trace.NewDocument(result))
}

// DispatchEvent offers a platform event to every published workflow of the community.
func (h *APIHandlers) DispatchEvent(c fiber.Ctx) error {
	req, err := h.bindExecuteRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	results, err := h.executionService.DispatchEvent(c.Context(), req.TriggerEvent(c.Params("id")))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(DispatchResponse{Executions: results, Count: len(results)})
}

func (h *APIHandlers) GetLicense(c fiber.Ctx) error {
	verdict, err := h.licenseService.Status(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(NewLicenseResponse(verdict))
}

func (h *APIHandlers) InvalidateLicenseCache(c fiber.Ctx) error {
	if err := h.licenseService.InvalidateCache(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

var errInvalidJSON = errors.New("invalid JSON format")

func (h *APIHandlers) bindExecuteRequest(c fiber.Ctx) (*ExecuteRequest, error) {
	var req ExecuteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return nil, errInvalidJSON
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, err
	}

	return &req, nil
}
