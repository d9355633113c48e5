package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/makeasinger/autoedit/internal/metrics"
	"github.com/makeasinger/autoedit/internal/model"
	"github.com/makeasinger/autoedit/internal/pipeline"
)

// DefaultConcurrency is how many assets run at once when the caller does not say.
const DefaultConcurrency = 3

// Runner runs one asset's pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.RunRequest) (*model.JobResult, error)
}

// Coordinator runs many asset pipelines under a concurrency cap.
type Coordinator struct {
	runner      Runner
	concurrency int
	notifier    pipeline.Notifier
	logger      zerolog.Logger
}

// New creates a coordinator. A nil notifier drops progress events.
func New(runner Runner, concurrency int, notifier pipeline.Notifier, logger zerolog.Logger) *Coordinator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if notifier == nil {
		notifier = pipeline.NoopNotifier{}
	}
	return &Coordinator{
		runner:      runner,
		concurrency: concurrency,
		notifier:    notifier,
		logger:      logger.With().Str("component", "batch").Logger(),
	}
}

type outcome struct {
	result *model.JobResult
	err    error
}

// RunBatch processes assetIDs with at most concurrency in flight. A failed or
// panicking asset is reported in Failed and never stops the others. Completed
// and Failed follow input order. The batch itself never returns an error.
func (c *Coordinator) RunBatch(ctx context.Context, assetIDs []string, concurrency int, opts model.EditOptions) *model.BatchResult {
	if concurrency <= 0 {
		concurrency = c.concurrency
	}
	start := time.Now()
	outcomes := make([]outcome, len(assetIDs))

	// a plain group: one failure must not cancel its siblings
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, id := range assetIDs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i].err = fmt.Errorf("asset pipeline panicked: %v", r)
				}
			}()
			if err := ctx.Err(); err != nil {
				outcomes[i].err = err
				return nil
			}
			res, err := c.runner.Run(ctx, pipeline.RunRequest{
				JobID:    uuid.New().String(),
				AssetID:  id,
				Options:  opts,
				Notifier: c.notifier,
			})
			outcomes[i] = outcome{result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := &model.BatchResult{
		Completed: []string{},
		Failed:    []model.BatchFailure{},
		Total:     len(assetIDs),
	}
	for i, o := range outcomes {
		id := assetIDs[i]
		if o.err != nil {
			result.Failed = append(result.Failed, model.BatchFailure{
				ID:       id,
				Error:    o.err.Error(),
				Category: pipeline.CategoryOf(o.err),
			})
			metrics.BatchAssets.WithLabelValues("failed").Inc()
			c.logger.Warn().Err(o.err).Str("asset_id", id).Msg("batch asset failed")
			continue
		}
		result.Completed = append(result.Completed, id)
		metrics.BatchAssets.WithLabelValues("completed").Inc()
	}

	c.logger.Info().
		Int("total", result.Total).
		Int("completed", len(result.Completed)).
		Int("failed", len(result.Failed)).
		Int("concurrency", concurrency).
		Dur("elapsed", time.Since(start)).
		Msg("batch finished")
	return result
}
