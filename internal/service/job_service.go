package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/autoedit/internal/model"
	"github.com/makeasinger/autoedit/internal/pipeline"
)

const (
	TaskTypeProcess = "autoedit:process"
	TaskTypeBatch   = "autoedit:batch"

	// QueueEdit is the asynq queue both task types run on.
	QueueEdit = "edit"

	recordTTL     = 24 * time.Hour
	maxTxAttempts = 5
	cancelMessage = "canceled by request"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotCompleted = errors.New("job not completed")
	ErrJobFinished     = errors.New("job already finished")
	ErrBatchNotFound   = errors.New("batch not found")
)

// Enqueuer is the part of asynq.Client the service needs.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskCanceler is the part of asynq.Inspector the service needs.
type TaskCanceler interface {
	DeleteTask(queue, id string) error
	CancelProcessing(id string) error
}

// JobService manages edit job records and their queue tasks.
type JobService struct {
	redis     *redis.Client
	queue     Enqueuer
	inspector TaskCanceler
}

// NewJobService creates a job service. The inspector may be nil, in which
// case running jobs are only flagged for cancellation.
func NewJobService(redisClient *redis.Client, queue Enqueuer, inspector TaskCanceler) *JobService {
	return &JobService{
		redis:     redisClient,
		queue:     queue,
		inspector: inspector,
	}
}

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func batchKey(batchID string) string {
	return fmt.Sprintf("batch:%s", batchID)
}

// Submit queues an edit of one asset.
func (s *JobService) Submit(ctx context.Context, assetID string, opts model.EditOptions) (*model.SubmitResponse, error) {
	jobID := uuid.New().String()
	now := time.Now().UTC()

	job := &model.Job{
		ID:        jobID,
		AssetID:   assetID,
		State:     model.JobStateQueued,
		Options:   opts,
		CreatedAt: now,
	}
	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := NewProcessTask(&model.ProcessTaskPayload{JobID: jobID, AssetID: assetID, Options: opts})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// a failed encode is terminal, so the queue never retries
	_, err = s.queue.Enqueue(task,
		asynq.Queue(QueueEdit),
		asynq.TaskID(jobID),
		asynq.MaxRetry(0),
		asynq.Retention(recordTTL),
	)
	if err != nil {
		_ = s.Fail(ctx, jobID, model.ErrorCategoryInternal, "failed to enqueue job")
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.SubmitResponse{
		JobID:     jobID,
		AssetID:   assetID,
		State:     model.JobStateQueued,
		CreatedAt: now,
	}, nil
}

// Status returns the current state of a job.
func (s *JobService) Status(ctx context.Context, jobID string) (*model.StatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.StatusResponse{
		JobID:         job.ID,
		AssetID:       job.AssetID,
		State:         job.State,
		Progress:      job.Progress,
		CurrentStep:   job.CurrentStep,
		ErrorCategory: job.ErrorCategory,
		Error:         job.Error,
		CreatedAt:     job.CreatedAt,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
	}, nil
}

// Result returns what a completed job produced.
func (s *JobService) Result(ctx context.Context, jobID string) (*model.JobResult, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.State != model.JobStateCompleted || job.Result == nil {
		return nil, ErrJobNotCompleted
	}
	return job.Result, nil
}

// Cancel stops a job. A job still waiting in the queue is removed and failed
// at once; a running job is interrupted through the worker's context and
// fails when its pipeline unwinds.
func (s *JobService) Cancel(ctx context.Context, jobID string) (*model.CancelResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.State.Terminal() {
		return nil, ErrJobFinished
	}

	if job.State == model.JobStateQueued && s.inspector != nil {
		if err := s.inspector.DeleteTask(QueueEdit, jobID); err == nil {
			if err := s.Fail(ctx, jobID, model.ErrorCategoryCanceled, cancelMessage); err != nil {
				return nil, err
			}
			return &model.CancelResponse{Success: true, JobID: jobID, State: model.JobStateFailed}, nil
		}
		// the worker picked it up in the meantime
	}

	job, err = s.update(ctx, jobID, func(j *model.Job) error {
		if j.State.Terminal() {
			return ErrJobFinished
		}
		j.CancelRequested = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.inspector != nil {
		if err := s.inspector.CancelProcessing(jobID); err != nil {
			return nil, fmt.Errorf("failed to signal cancellation: %w", err)
		}
	}

	return &model.CancelResponse{Success: true, JobID: jobID, State: job.State}, nil
}

// CancelRequested reports whether a cancel was recorded for the job. Workers
// check it before starting so a cancel that raced the dequeue still wins.
func (s *JobService) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return job.CancelRequested, nil
}

// UpdateProgress applies a pipeline progress event (called by worker). Events
// that would move the record backwards or out of a terminal state are dropped.
func (s *JobService) UpdateProgress(ctx context.Context, event model.ProgressEvent) error {
	if event.Stage.Terminal() {
		return nil
	}
	_, err := s.update(ctx, event.JobID, func(j *model.Job) error {
		if j.State != event.Stage {
			if !pipeline.CanTransition(j.State, event.Stage) {
				return nil
			}
			if j.State == model.JobStateQueued {
				now := time.Now().UTC()
				j.StartedAt = &now
			}
			j.State = event.Stage
		}
		j.Progress = max(j.Progress, event.Percent)
		if event.Message != "" {
			j.CurrentStep = event.Message
		}
		return nil
	})
	return err
}

// Complete marks a job as completed (called by worker).
func (s *JobService) Complete(ctx context.Context, jobID string, result *model.JobResult) error {
	_, err := s.update(ctx, jobID, func(j *model.Job) error {
		if j.State.Terminal() {
			return ErrJobFinished
		}
		now := time.Now().UTC()
		j.State = model.JobStateCompleted
		j.Progress = 100
		j.CurrentStep = "Completed"
		j.Result = result
		j.CompletedAt = &now
		return nil
	})
	return err
}

// Fail marks a job as failed (called by worker).
func (s *JobService) Fail(ctx context.Context, jobID string, category model.ErrorCategory, errMsg string) error {
	_, err := s.update(ctx, jobID, func(j *model.Job) error {
		if j.State.Terminal() {
			return ErrJobFinished
		}
		now := time.Now().UTC()
		j.State = model.JobStateFailed
		j.ErrorCategory = category
		j.Error = &errMsg
		j.CompletedAt = &now
		return nil
	})
	return err
}

// SubmitBatch queues a batch run over several assets.
func (s *JobService) SubmitBatch(ctx context.Context, assetIDs []string, concurrency int, opts model.EditOptions) (*model.BatchResponse, error) {
	batchID := uuid.New().String()
	now := time.Now().UTC()

	b := &model.Batch{
		ID:          batchID,
		AssetIDs:    assetIDs,
		Concurrency: concurrency,
		State:       model.BatchStateQueued,
		CreatedAt:   now,
	}
	if err := s.saveBatch(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to save batch: %w", err)
	}

	task, err := NewBatchTask(&model.BatchTaskPayload{
		BatchID:     batchID,
		AssetIDs:    assetIDs,
		Concurrency: concurrency,
		Options:     opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.queue.Enqueue(task,
		asynq.Queue(QueueEdit),
		asynq.TaskID(batchID),
		asynq.MaxRetry(0),
		asynq.Timeout(6*time.Hour),
		asynq.Retention(recordTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.BatchResponse{
		BatchID:   batchID,
		Total:     len(assetIDs),
		State:     model.BatchStateQueued,
		CreatedAt: now,
	}, nil
}

// GetBatch returns a batch record.
func (s *JobService) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	data, err := s.redis.Get(ctx, batchKey(batchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	var b model.Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// StartBatch marks a batch as running (called by worker).
func (s *JobService) StartBatch(ctx context.Context, batchID string) error {
	b, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	b.State = model.BatchStateRunning
	b.StartedAt = &now
	return s.saveBatch(ctx, b)
}

// FinishBatch stores the aggregate result (called by worker).
func (s *JobService) FinishBatch(ctx context.Context, batchID string, result *model.BatchResult) error {
	b, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	b.State = model.BatchStateCompleted
	b.Result = result
	b.CompletedAt = &now
	return s.saveBatch(ctx, b)
}

// FailBatch records a batch that could not run at all.
func (s *JobService) FailBatch(ctx context.Context, batchID, errMsg string) error {
	b, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	b.State = model.BatchStateFailed
	b.Error = errMsg
	b.CompletedAt = &now
	return s.saveBatch(ctx, b)
}

// Helper methods

func (s *JobService) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, recordTTL).Err()
}

func (s *JobService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

// update applies fn to the job record under WATCH so the worker's progress
// writes and a concurrent cancel cannot overwrite each other.
func (s *JobService) update(ctx context.Context, jobID string, fn func(*model.Job) error) (*model.Job, error) {
	key := jobKey(jobID)
	var job model.Job

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrJobNotFound
			}
			return err
		}
		job = model.Job{}
		if err := json.Unmarshal(data, &job); err != nil {
			return err
		}
		if err := fn(&job); err != nil {
			return err
		}
		out, err := json.Marshal(&job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, recordTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxAttempts; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &job, nil
	}
	return nil, fmt.Errorf("job %s: too much contention", jobID)
}

func (s *JobService) saveBatch(ctx context.Context, b *model.Batch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, batchKey(b.ID), data, recordTTL).Err()
}

// NewProcessTask builds the queue task for one asset edit.
func NewProcessTask(p *model.ProcessTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeProcess, data), nil
}

// NewBatchTask builds the queue task for a batch run.
func NewBatchTask(p *model.BatchTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBatch, data), nil
}
