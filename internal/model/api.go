package model

import "time"

// SubmitRequest is the body of POST /api/jobs.
type SubmitRequest struct {
	AssetID string       `json:"assetId" validate:"required,max=128"`
	Options *EditOptions `json:"options,omitempty"`
}

// SubmitResponse is returned when a job is queued.
type SubmitResponse struct {
	JobID     string    `json:"jobId"`
	AssetID   string    `json:"assetId"`
	State     JobState  `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}

// StatusResponse describes a job's current state.
type StatusResponse struct {
	JobID         string        `json:"jobId"`
	AssetID       string        `json:"assetId"`
	State         JobState      `json:"state"`
	Progress      int           `json:"progress"`
	CurrentStep   string        `json:"currentStep,omitempty"`
	ErrorCategory ErrorCategory `json:"errorCategory,omitempty"`
	Error         *string       `json:"error,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	StartedAt     *time.Time    `json:"startedAt,omitempty"`
	CompletedAt   *time.Time    `json:"completedAt,omitempty"`
}

// CancelResponse is returned by POST /api/jobs/:jobId/cancel.
type CancelResponse struct {
	Success bool     `json:"success"`
	JobID   string   `json:"jobId"`
	State   JobState `json:"state"`
}

// BatchRequest is the body of POST /api/batches.
type BatchRequest struct {
	AssetIDs    []string     `json:"assetIds" validate:"required,min=1,max=100,dive,required"`
	Concurrency int          `json:"concurrency,omitempty" validate:"omitempty,min=1,max=16"`
	Options     *EditOptions `json:"options,omitempty"`
}

// BatchResponse is returned when a batch is queued.
type BatchResponse struct {
	BatchID   string     `json:"batchId"`
	Total     int        `json:"total"`
	State     BatchState `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
}

// VersionsResponse lists an asset's retained versions, newest first.
type VersionsResponse struct {
	AssetID  string        `json:"assetId"`
	Versions []EditVersion `json:"versions"`
}

// RestoreResponse is returned after a version is restored.
type RestoreResponse struct {
	AssetID   string `json:"assetId"`
	VersionID string `json:"versionId"`
	SourceRef string `json:"sourceRef"`
}

// HistoryResponse lists recorded cuts for an asset.
type HistoryResponse struct {
	AssetID string             `json:"assetId"`
	Entries []EditHistoryEntry `json:"entries"`
}

// RegisterAssetRequest is the body of POST /api/assets. It records media that
// already lives in storage or on the worker's filesystem.
type RegisterAssetRequest struct {
	ID                string    `json:"id,omitempty" validate:"omitempty,max=128"`
	SourceRef         string    `json:"sourceRef" validate:"required,max=1024"`
	DurationSeconds   float64   `json:"durationSeconds" validate:"gte=0"`
	Transcript        string    `json:"transcript,omitempty" validate:"max=200000"`
	AudioLevelSamples []float64 `json:"audioLevelSamples,omitempty" validate:"max=360000"`
	Width             int       `json:"width,omitempty" validate:"gte=0"`
	Height            int       `json:"height,omitempty" validate:"gte=0"`
}
