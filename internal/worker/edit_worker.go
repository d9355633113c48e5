package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/makeasinger/autoedit/internal/model"
	"github.com/makeasinger/autoedit/internal/pipeline"
	"github.com/makeasinger/autoedit/internal/service"
)

// JobStore is the part of the job service a worker writes through.
type JobStore interface {
	CancelRequested(ctx context.Context, jobID string) (bool, error)
	UpdateProgress(ctx context.Context, event model.ProgressEvent) error
	Complete(ctx context.Context, jobID string, result *model.JobResult) error
	Fail(ctx context.Context, jobID string, category model.ErrorCategory, errMsg string) error
}

// Runner runs one asset's pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.RunRequest) (*model.JobResult, error)
}

// Broadcaster pushes job events to live subscribers.
type Broadcaster interface {
	pipeline.Notifier
	BroadcastComplete(jobID string, result *model.JobResult)
	BroadcastError(jobID, assetID, code, message string)
}

// EditWorker processes single-asset edit jobs
type EditWorker struct {
	jobs   JobStore
	runner Runner
	hub    Broadcaster
	logger zerolog.Logger
}

// NewEditWorker creates a new edit worker
func NewEditWorker(jobs JobStore, runner Runner, hub Broadcaster, logger zerolog.Logger) *EditWorker {
	return &EditWorker{
		jobs:   jobs,
		runner: runner,
		hub:    hub,
		logger: logger.With().Str("component", "edit_worker").Logger(),
	}
}

// ProcessTask handles edit task processing
func (w *EditWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.ProcessTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := w.logger.With().Str("job_id", payload.JobID).Str("asset_id", payload.AssetID).Logger()

	requested, err := w.jobs.CancelRequested(ctx, payload.JobID)
	if errors.Is(err, service.ErrJobNotFound) {
		// the record expired while the task waited
		return fmt.Errorf("job %s has no record: %w", payload.JobID, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	if requested {
		w.failJob(ctx, &payload, model.ErrorCategoryCanceled, "canceled by request")
		return nil
	}

	logger.Info().Msg("starting edit job")
	notifier := pipeline.NotifierFunc(func(e model.ProgressEvent) {
		w.updateProgress(ctx, e)
	})

	result, err := w.runner.Run(ctx, pipeline.RunRequest{
		JobID:    payload.JobID,
		AssetID:  payload.AssetID,
		Options:  payload.Options,
		Notifier: notifier,
	})
	if err != nil {
		category := pipeline.CategoryOf(err)
		w.failJob(ctx, &payload, category, err.Error())
		if category == model.ErrorCategoryCanceled {
			return nil
		}
		return fmt.Errorf("edit job %s: %w", payload.JobID, err)
	}

	if err := w.jobs.Complete(context.WithoutCancel(ctx), payload.JobID, result); err != nil {
		logger.Error().Err(err).Msg("failed to save result")
		return err
	}

	w.hub.BroadcastComplete(payload.JobID, result)
	logger.Info().Int("improvement", result.Improvement).Msg("edit job completed")
	return nil
}

func (w *EditWorker) updateProgress(ctx context.Context, e model.ProgressEvent) {
	if err := w.jobs.UpdateProgress(context.WithoutCancel(ctx), e); err != nil {
		w.logger.Warn().Err(err).Str("job_id", e.JobID).Msg("failed to update progress")
	}
	w.hub.Notify(e)
}

func (w *EditWorker) failJob(ctx context.Context, p *model.ProcessTaskPayload, category model.ErrorCategory, errMsg string) {
	// a cancel may have failed the record already
	err := w.jobs.Fail(context.WithoutCancel(ctx), p.JobID, category, errMsg)
	if err != nil && !errors.Is(err, service.ErrJobFinished) {
		w.logger.Error().Err(err).Str("job_id", p.JobID).Msg("failed to mark job as failed")
	}
	w.hub.BroadcastError(p.JobID, p.AssetID, strings.ToUpper(string(category)), errMsg)
}
