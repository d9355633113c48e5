package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/autoedit/internal/model"
	"github.com/makeasinger/autoedit/internal/service"
	"github.com/makeasinger/autoedit/pkg/response"
)

type JobHandler struct {
	jobs      *service.JobService
	assets    *service.AssetService
	validator *validator.Validate
}

func NewJobHandler(jobs *service.JobService, assets *service.AssetService, v *validator.Validate) *JobHandler {
	return &JobHandler{
		jobs:      jobs,
		assets:    assets,
		validator: v,
	}
}

// Submit handles POST /api/jobs
// Queues an edit of one registered asset. Omitted options fall back to the
// default set.
func (h *JobHandler) Submit(c *fiber.Ctx) error {
	var req model.SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	opts := model.DefaultEditOptions()
	if req.Options != nil {
		opts = *req.Options
	}

	ok, err := h.assets.Exists(c.UserContext(), req.AssetID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	if !ok {
		return response.NotFound(c, "Asset not found")
	}

	result, err := h.jobs.Submit(c.UserContext(), req.AssetID, opts)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/jobs/:jobId
func (h *JobHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.jobs.Status(c.UserContext(), jobID)
	if err != nil {
		return jobError(c, err)
	}

	return response.OK(c, result)
}

// Result handles GET /api/jobs/:jobId/result
func (h *JobHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.jobs.Result(c.UserContext(), jobID)
	if err != nil {
		return jobError(c, err)
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/jobs/:jobId/cancel
// A queued job fails immediately; a running job stops at its next checkpoint.
func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.jobs.Cancel(c.UserContext(), jobID)
	if err != nil {
		return jobError(c, err)
	}

	return response.OK(c, result)
}

func jobError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrJobNotCompleted):
		return response.JobNotReady(c)
	case errors.Is(err, service.ErrJobFinished):
		return response.JobFinished(c)
	default:
		return response.ServiceError(c, err.Error())
	}
}
