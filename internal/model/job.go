package model

import "time"

// Job is the persisted record of one edit run.
type Job struct {
	ID              string        `json:"id"`
	AssetID         string        `json:"assetId"`
	State           JobState      `json:"state"`
	Progress        int           `json:"progress"`
	CurrentStep     string        `json:"currentStep,omitempty"`
	ErrorCategory   ErrorCategory `json:"errorCategory,omitempty"`
	Error           *string       `json:"error,omitempty"`
	Options         EditOptions   `json:"options"`
	Result          *JobResult    `json:"result,omitempty"`
	CancelRequested bool          `json:"cancelRequested,omitempty"`
	BatchID         string        `json:"batchId,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	StartedAt       *time.Time    `json:"startedAt,omitempty"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
}

// JobResult is what a completed job produced.
type JobResult struct {
	AssetID        string   `json:"assetId"`
	VersionID      string   `json:"versionId"`
	RenderedRef    string   `json:"renderedRef"`
	RenderedURL    string   `json:"renderedUrl"`
	ThumbnailRef   string   `json:"thumbnailRef,omitempty"`
	OutputDuration float64  `json:"outputDuration"`
	OutputSize     int64    `json:"outputSize"`
	QualityBefore  int      `json:"qualityBefore"`
	QualityAfter   int      `json:"qualityAfter"`
	Improvement    int      `json:"improvement"`
	SecondsRemoved float64  `json:"secondsRemoved"`
	EditsApplied   []string `json:"editsApplied"`
	MusicMixed     bool     `json:"musicMixed"`
	Promoted       bool     `json:"promoted"`
}

// ProcessTaskPayload is the queue payload for a single asset edit.
type ProcessTaskPayload struct {
	JobID   string      `json:"jobId"`
	AssetID string      `json:"assetId"`
	Options EditOptions `json:"options"`
}

// BatchTaskPayload is the queue payload for a batch run.
type BatchTaskPayload struct {
	BatchID     string      `json:"batchId"`
	AssetIDs    []string    `json:"assetIds"`
	Concurrency int         `json:"concurrency"`
	Options     EditOptions `json:"options"`
}

// BatchFailure records why one batch member failed.
type BatchFailure struct {
	ID       string        `json:"id"`
	Error    string        `json:"error"`
	Category ErrorCategory `json:"category,omitempty"`
}

// BatchResult aggregates a batch run. Completed and Failed keep input order.
type BatchResult struct {
	Completed []string       `json:"completed"`
	Failed    []BatchFailure `json:"failed"`
	Total     int            `json:"total"`
}

// BatchState is the lifecycle state of a batch run.
type BatchState string

const (
	BatchStateQueued    BatchState = "queued"
	BatchStateRunning   BatchState = "running"
	BatchStateCompleted BatchState = "completed"
	BatchStateFailed    BatchState = "failed"
)

// Batch is the persisted record of a batch run.
type Batch struct {
	ID          string       `json:"id"`
	AssetIDs    []string     `json:"assetIds"`
	Concurrency int          `json:"concurrency"`
	State       BatchState   `json:"state"`
	Result      *BatchResult `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}
