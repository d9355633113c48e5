package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// RequestLogger logs one line per request. The query string is only logged
// at debug level.
func RequestLogger(logger zerolog.Logger) fiber.Handler {
	logger = logger.With().Str("component", "http").Logger()
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		event := logger.Info()
		if status >= fiber.StatusInternalServerError {
			event = logger.Error().Err(err)
		}
		event = event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start))
		if uid := GetUserID(c); uid != "" {
			event = event.Str("user_id", uid)
		}
		if zerolog.GlobalLevel() <= zerolog.DebugLevel {
			event = event.Str("query", string(c.Request().URI().QueryString()))
		}
		event.Msg("request")
		return err
	}
}
