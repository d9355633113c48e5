package response

import "github.com/gofiber/fiber/v2"

// Error codes
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeNotFound        = "NOT_FOUND"
	CodeRateLimited     = "RATE_LIMITED"
	CodeServiceError    = "SERVICE_ERROR"

	// Edit pipeline codes
	CodeUnsupportedMedia = "UNSUPPORTED_MEDIA"
	CodeJobNotReady      = "JOB_NOT_READY"
	CodeJobFinished      = "JOB_FINISHED"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

// UnsupportedMedia rejects an upload that is not a video the probe can read.
func UnsupportedMedia(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusUnsupportedMediaType, CodeUnsupportedMedia, message, details)
}

// JobNotReady is returned for the result of a job that has not completed.
func JobNotReady(c *fiber.Ctx) error {
	return Error(c, fiber.StatusConflict, CodeJobNotReady, "Job not completed yet", nil)
}

// JobFinished is returned when acting on a job that already reached a terminal state.
func JobFinished(c *fiber.Ctx) error {
	return Error(c, fiber.StatusConflict, CodeJobFinished, "Job already finished", nil)
}

// AssetsNotFound lists the referenced assets that are not registered.
func AssetsNotFound(c *fiber.Ctx, ids []string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, "Assets not found", fiber.Map{"assetIds": ids})
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}
