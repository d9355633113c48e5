package handler

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/makeasinger/autoedit/internal/config"
	"github.com/makeasinger/autoedit/internal/middleware"
	ws "github.com/makeasinger/autoedit/internal/websocket"
)

// Routes wires handlers onto an app. The server and the API tests share it.
type Routes struct {
	Auth        fiber.Handler
	RateLimiter *middleware.RateLimiter
	Limits      config.RateLimitConfig

	Jobs    *JobHandler
	Batches *BatchHandler
	Assets  *AssetHandler
	Health  *HealthHandler
	Hub     *ws.Hub
}

func (r *Routes) Register(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})
	app.Get("/health", r.Health.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api", r.Auth)

	jobs := api.Group("/jobs")
	jobs.Post("/", r.RateLimiter.SubmitLimit(r.Limits.SubmitPerHour), r.Jobs.Submit)
	jobs.Get("/:jobId", r.Jobs.Status)
	jobs.Get("/:jobId/result", r.Jobs.Result)
	jobs.Post("/:jobId/cancel", r.Jobs.Cancel)

	batches := api.Group("/batches")
	batches.Post("/", r.RateLimiter.BatchLimit(r.Limits.BatchPerHour), r.Batches.Submit)
	batches.Get("/:batchId", r.Batches.Get)

	assets := api.Group("/assets")
	assets.Post("/", r.Assets.Register)
	assets.Post("/upload", r.RateLimiter.UploadLimit(r.Limits.UploadPerHour), r.Assets.Upload)
	assets.Get("/:assetId", r.Assets.Get)
	assets.Get("/:assetId/versions", r.Assets.Versions)
	assets.Post("/:assetId/versions/:versionId/restore", r.Assets.Restore)
	assets.Get("/:assetId/history", r.Assets.History)

	if r.Hub == nil {
		return
	}
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		r.Hub.HandleConnection(c, c.Params("jobId"))
	}))
	app.Get("/ws/assets/:assetId", websocket.New(func(c *websocket.Conn) {
		r.Hub.HandleConnection(c, c.Params("assetId"))
	}))
}
