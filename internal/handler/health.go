package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/autoedit/pkg/response"
)

// Pinger is a dependency the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	checks   map[string]Pinger
	features map[string]bool
}

// NewHealthHandler creates a health handler. checks must all pass for the
// service to be healthy; features are reported as configured or not.
func NewHealthHandler(checks map[string]Pinger, features map[string]bool) *HealthHandler {
	return &HealthHandler{
		checks:   checks,
		features: features,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	deps := make(fiber.Map, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			deps[name] = err.Error()
			healthy = false
			continue
		}
		deps[name] = "ok"
	}

	body := fiber.Map{
		"status":       "ok",
		"dependencies": deps,
		"services":     h.features,
	}
	if !healthy {
		body["status"] = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(body)
	}
	return response.OK(c, body)
}
