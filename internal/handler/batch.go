package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/makeasinger/autoedit/internal/model"
	"github.com/makeasinger/autoedit/internal/service"
	"github.com/makeasinger/autoedit/pkg/response"
)

type BatchHandler struct {
	jobs      *service.JobService
	assets    *service.AssetService
	validator *validator.Validate
}

func NewBatchHandler(jobs *service.JobService, assets *service.AssetService, v *validator.Validate) *BatchHandler {
	return &BatchHandler{
		jobs:      jobs,
		assets:    assets,
		validator: v,
	}
}

// Submit handles POST /api/batches
// Every asset must be registered up front; duplicates are run once.
func (h *BatchHandler) Submit(c *fiber.Ctx) error {
	var req model.BatchRequest
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
	ids := lo.Uniq(req.AssetIDs)

	var missing []string
	for _, id := range ids {
		ok, err := h.assets.Exists(c.UserContext(), id)
		if err != nil {
			return response.ServiceError(c, err.Error())
		}
		if !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return response.AssetsNotFound(c, missing)
	}

	result, err := h.jobs.SubmitBatch(c.UserContext(), ids, req.Concurrency, opts)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Get handles GET /api/batches/:batchId
func (h *BatchHandler) Get(c *fiber.Ctx) error {
	batchID := c.Params("batchId")
	if batchID == "" {
		return response.ValidationError(c, "Batch ID is required", nil)
	}

	result, err := h.jobs.GetBatch(c.UserContext(), batchID)
	if err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			return response.NotFound(c, "Batch not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
