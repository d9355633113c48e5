package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/makeasinger/autoedit/internal/model"
)

// BatchStore is the part of the job service that tracks batch records.
type BatchStore interface {
	StartBatch(ctx context.Context, batchID string) error
	FinishBatch(ctx context.Context, batchID string, result *model.BatchResult) error
	FailBatch(ctx context.Context, batchID, errMsg string) error
}

// BatchRunner fans a batch out over per-asset pipelines.
type BatchRunner interface {
	RunBatch(ctx context.Context, assetIDs []string, concurrency int, opts model.EditOptions) *model.BatchResult
}

// BatchWorker processes batch runs
type BatchWorker struct {
	batches BatchStore
	runner  BatchRunner
	logger  zerolog.Logger
}

// NewBatchWorker creates a new batch worker
func NewBatchWorker(batches BatchStore, runner BatchRunner, logger zerolog.Logger) *BatchWorker {
	return &BatchWorker{
		batches: batches,
		runner:  runner,
		logger:  logger.With().Str("component", "batch_worker").Logger(),
	}
}

// ProcessTask handles batch task processing
func (w *BatchWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.BatchTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := w.logger.With().Str("batch_id", payload.BatchID).Logger()

	if err := w.batches.StartBatch(ctx, payload.BatchID); err != nil {
		return fmt.Errorf("failed to start batch: %v: %w", err, asynq.SkipRetry)
	}
	logger.Info().Int("total", len(payload.AssetIDs)).Msg("starting batch")

	result := w.runner.RunBatch(ctx, payload.AssetIDs, payload.Concurrency, payload.Options)

	if err := w.batches.FinishBatch(context.WithoutCancel(ctx), payload.BatchID, result); err != nil {
		logger.Error().Err(err).Msg("failed to save batch result")
		if ferr := w.batches.FailBatch(context.WithoutCancel(ctx), payload.BatchID, "failed to save result"); ferr != nil {
			logger.Error().Err(ferr).Msg("failed to mark batch as failed")
		}
		return err
	}
	return nil
}
