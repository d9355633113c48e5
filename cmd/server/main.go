package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"

	"github.com/makeasinger/autoedit/internal/app"
	"github.com/makeasinger/autoedit/internal/auth"
	"github.com/makeasinger/autoedit/internal/batch"
	"github.com/makeasinger/autoedit/internal/config"
	"github.com/makeasinger/autoedit/internal/handler"
	"github.com/makeasinger/autoedit/internal/logging"
	"github.com/makeasinger/autoedit/internal/middleware"
	"github.com/makeasinger/autoedit/internal/service"
	ws "github.com/makeasinger/autoedit/internal/websocket"
	"github.com/makeasinger/autoedit/internal/worker"
	"github.com/makeasinger/autoedit/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Base().Fatal().Err(err).Msg("failed to load config")
	}

	logging.Configure(logging.Config{
		Level:   cfg.Server.LogLevel,
		Service: "autoedit-api",
		Console: cfg.Server.Development(),
	})
	logger := logging.WithComponent("server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logging.Base())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize")
	}
	defer a.Close()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	validate := validator.New()

	hub := ws.NewHub(logging.Base())
	go hub.Run(ctx)

	// OIDC verifier is optional; legacy HMAC tokens cover local use
	var verifier auth.TokenVerifier
	if cfg.OIDC.Issuer != "" {
		jwks, err := auth.NewJWKSVerifier(ctx, &cfg.OIDC)
		if err != nil {
			logger.Warn().Err(err).Msg("JWKS verifier not initialized")
		} else {
			verifier = jwks
		}
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, verifier)
	if !authMiddleware.Enabled() {
		logger.Warn().Msg("no OIDC issuer or JWT secret configured, API requests will be rejected")
	}

	// Services
	jobService := service.NewJobService(a.Redis, asynqClient, inspector)
	assetService := service.NewAssetService(a.Assets, a.History, a.Storage, a.Executor, cfg.Pipeline.WorkDir)

	routes := &handler.Routes{
		Auth:        authMiddleware.Authenticate(),
		RateLimiter: middleware.NewRateLimiter(a.Redis, logging.Base()),
		Limits:      cfg.RateLimit,
		Jobs:        handler.NewJobHandler(jobService, assetService, validate),
		Batches:     handler.NewBatchHandler(jobService, assetService, validate),
		Assets:      handler.NewAssetHandler(assetService, validate),
		Health: handler.NewHealthHandler(
			map[string]handler.Pinger{
				"redis":    handler.PingFunc(func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }),
				"database": a.Assets,
			},
			map[string]bool{
				"groq": a.Groq.IsConfigured(),
				"r2":   a.StorageKind == "r2",
				"auth": authMiddleware.Enabled(),
			},
		),
		Hub: hub,
	}

	fiberApp := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
	})
	fiberApp.Use(recover.New())
	fiberApp.Use(middleware.RequestLogger(logging.Base()))
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	routes.Register(fiberApp)

	// Asynq worker server
	srv := newWorkerServer(cfg, redisOpt)
	mux := asynq.NewServeMux()
	editWorker := worker.NewEditWorker(jobService, a.Pipeline, hub, logging.Base())
	coordinator := batch.New(a.Pipeline, cfg.Pipeline.BatchConcurrency, hub, logging.Base())
	batchWorker := worker.NewBatchWorker(jobService, coordinator, logging.Base())
	mux.HandleFunc(service.TaskTypeProcess, editWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeBatch, batchWorker.ProcessTask)
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("failed to start worker server")
	}

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		if err := fiberApp.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
	}()

	addr := ":" + cfg.Server.Port
	logger.Info().Str("addr", addr).Str("storage", a.StorageKind).Msg("server starting")
	if err := fiberApp.Listen(addr); err != nil {
		logger.Error().Err(err).Msg("server error")
	}

	// running encodes see their context canceled and fail as canceled
	srv.Shutdown()
}

func newWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt) *asynq.Server {
	var level asynq.LogLevel
	if err := level.Set(logging.AsynqLevel(cfg.Server.LogLevel)); err != nil {
		level = asynq.InfoLevel
	}

	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			service.QueueEdit: 1,
		},
		Logger:          logging.NewAsynqLogger(logging.WithComponent("asynq")),
		LogLevel:        level,
		ShutdownTimeout: 30 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			if errors.Is(err, asynq.SkipRetry) {
				return
			}
			logging.WithComponent("asynq").Error().Err(err).Str("type", task.Type()).Msg("task failed")
		}),
	})
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
