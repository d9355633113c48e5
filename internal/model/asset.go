package model

import "time"

// Asset is a source video owned by the calling system.
type Asset struct {
	ID                string      `json:"id"`
	SourceRef         string      `json:"sourceRef"`
	DurationSeconds   float64     `json:"durationSeconds"`
	Transcript        string      `json:"transcript,omitempty"`
	AudioLevelSamples []float64   `json:"audioLevelSamples,omitempty"`
	Width             int         `json:"width,omitempty"`
	Height            int         `json:"height,omitempty"`
	Thumbnail         string      `json:"thumbnail,omitempty"`
	Status            AssetStatus `json:"status"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// EditHistoryEntry records one region removed by a previous run.
type EditHistoryEntry struct {
	AssetID      string    `json:"assetId"`
	CutTimestamp float64   `json:"cutTimestamp"`
	DurationCut  float64   `json:"durationCut"`
	AppliedAt    time.Time `json:"appliedAt"`
}

// EditVersion is a retained reference to one rendered output of an asset.
type EditVersion struct {
	ID           string       `json:"id"`
	AssetID      string       `json:"assetId"`
	CreatedAt    time.Time    `json:"createdAt"`
	RenderedRef  string       `json:"renderedRef"`
	ThumbnailRef string       `json:"thumbnailRef,omitempty"`
	EditsApplied []string     `json:"editsApplied"`
	Stats        VersionStats `json:"stats"`
}

// VersionStats summarises what produced a version.
type VersionStats struct {
	OutputDuration float64 `json:"outputDuration"`
	OutputSize     int64   `json:"outputSize"`
	QualityBefore  int     `json:"qualityBefore"`
	QualityAfter   int     `json:"qualityAfter"`
	CutsApplied    int     `json:"cutsApplied"`
}
