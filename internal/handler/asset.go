package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/autoedit/internal/assets"
	"github.com/makeasinger/autoedit/internal/history"
	"github.com/makeasinger/autoedit/internal/model"
	"github.com/makeasinger/autoedit/internal/service"
	"github.com/makeasinger/autoedit/pkg/response"
)

const maxTranscriptLength = 200000

type AssetHandler struct {
	service   *service.AssetService
	validator *validator.Validate
}

func NewAssetHandler(svc *service.AssetService, v *validator.Validate) *AssetHandler {
	return &AssetHandler{
		service:   svc,
		validator: v,
	}
}

// Register handles POST /api/assets
// Records media that already lives in storage or on the worker's disk.
func (h *AssetHandler) Register(c *fiber.Ctx) error {
	var req model.RegisterAssetRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Register(c.UserContext(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// Upload handles POST /api/assets/upload
// Multipart form: file (required video), transcript (optional).
func (h *AssetHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	contentType := file.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "video/") && contentType != "application/octet-stream" {
		return response.UnsupportedMedia(c, "Invalid file type. Expected a video", map[string]interface{}{
			"contentType": contentType,
		})
	}

	transcript := c.FormValue("transcript")
	if len(transcript) > maxTranscriptLength {
		return response.ValidationError(c, "Transcript too long", map[string]interface{}{
			"maxLength": maxTranscriptLength,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.Upload(c.UserContext(), file.Filename, transcript, f)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedMedia) {
			return response.UnsupportedMedia(c, "File is not a readable video", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// Get handles GET /api/assets/:assetId
func (h *AssetHandler) Get(c *fiber.Ctx) error {
	result, err := h.service.Get(c.UserContext(), c.Params("assetId"))
	if err != nil {
		return assetError(c, err)
	}
	return response.OK(c, result)
}

// Versions handles GET /api/assets/:assetId/versions
func (h *AssetHandler) Versions(c *fiber.Ctx) error {
	result, err := h.service.Versions(c.UserContext(), c.Params("assetId"))
	if err != nil {
		return assetError(c, err)
	}
	return response.OK(c, result)
}

// Restore handles POST /api/assets/:assetId/versions/:versionId/restore
// Points the asset back at a stored render without re-rendering.
func (h *AssetHandler) Restore(c *fiber.Ctx) error {
	result, err := h.service.Restore(c.UserContext(), c.Params("assetId"), c.Params("versionId"))
	if err != nil {
		return assetError(c, err)
	}
	return response.OK(c, result)
}

// History handles GET /api/assets/:assetId/history
func (h *AssetHandler) History(c *fiber.Ctx) error {
	result, err := h.service.History(c.UserContext(), c.Params("assetId"))
	if err != nil {
		return assetError(c, err)
	}
	return response.OK(c, result)
}

func assetError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, assets.ErrNotFound):
		return response.NotFound(c, "Asset not found")
	case errors.Is(err, history.ErrVersionNotFound):
		return response.NotFound(c, "Version not found")
	default:
		return response.ServiceError(c, err.Error())
	}
}
