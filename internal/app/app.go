// Package app builds the edit pipeline and its stores from configuration.
// The API server and the command line tool share it.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/makeasinger/autoedit/internal/analysis"
	"github.com/makeasinger/autoedit/internal/assets"
	"github.com/makeasinger/autoedit/internal/client"
	"github.com/makeasinger/autoedit/internal/config"
	"github.com/makeasinger/autoedit/internal/ffmpeg"
	"github.com/makeasinger/autoedit/internal/history"
	"github.com/makeasinger/autoedit/internal/pipeline"
	"github.com/makeasinger/autoedit/internal/planner"
	"github.com/makeasinger/autoedit/internal/render"
)

// App holds the long-lived components of one process.
type App struct {
	Config   *config.Config
	Redis    *redis.Client
	Assets   *assets.Store
	History  *history.Store
	Storage  client.StorageClient
	Groq     *client.GroqClient
	Executor *ffmpeg.Executor
	Pipeline *pipeline.Pipeline

	// StorageKind is "r2" or "local".
	StorageKind string
}

// Open connects to Redis and the asset database, picks a storage backend and
// builds the pipeline. Redis being unreachable is logged, not fatal.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg}

	a.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not available")
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}
	store, err := assets.Open(cfg.Database.Path)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Assets = store
	a.History = history.NewStore(a.Redis)

	if cfg.R2.Configured() {
		r2, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create r2 client: %w", err)
		}
		a.Storage, a.StorageKind = r2, "r2"
	} else {
		local, err := client.NewLocalStorage(cfg.Storage.LocalDir, cfg.Storage.PublicURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Storage, a.StorageKind = local, "local"
		logger.Info().Str("dir", cfg.Storage.LocalDir).Msg("r2 not configured, using local storage")
	}

	a.Executor, err = ffmpeg.New(logger, ffmpeg.Config{
		FFmpegPath:  cfg.Encoder.FFmpegPath,
		FFprobePath: cfg.Encoder.FFprobePath,
		Threads:     cfg.Encoder.Threads,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	var text analysis.TextIntelligence
	a.Groq = client.NewGroqClient(&cfg.Groq)
	if a.Groq.IsConfigured() {
		text = a.Groq
	}

	analyzerCfg := analysis.DefaultConfig()
	analyzerCfg.SilenceThresholdDb = cfg.Pipeline.SilenceThresholdDb
	analyzerCfg.MinSilenceSeconds = cfg.Pipeline.MinSilenceSeconds
	analyzerCfg.SceneThreshold = cfg.Pipeline.SceneThreshold
	analyzerCfg.Concurrency = cfg.Pipeline.AnalysisConcurrency
	analyzerCfg.Retry.BaseInterval = cfg.Pipeline.RetryBase
	if cfg.Pipeline.RetryAttempts > 0 {
		analyzerCfg.Retry.MaxAttempts = uint(cfg.Pipeline.RetryAttempts)
	}

	settings := render.DefaultSettings()
	settings.CRF = cfg.Encoder.CRF
	settings.Preset = cfg.Encoder.Preset
	settings.AudioBitrate = cfg.Encoder.AudioBitrate

	a.Pipeline = pipeline.New(
		pipeline.Config{
			WorkDir:        cfg.Pipeline.WorkDir,
			EnvelopeWindow: cfg.Pipeline.EnvelopeWindow,
		},
		pipeline.Deps{
			Assets:   a.Assets,
			History:  a.History,
			Storage:  a.Storage,
			Signals:  a.Executor,
			Renderer: render.New(a.Executor, settings, logger),
			Analyzer: analysis.NewAnalyzer(analyzerCfg, text, logger),
			Planner:  planner.New(logger),
		},
		logger,
	)
	return a, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Assets != nil {
		_ = a.Assets.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}
