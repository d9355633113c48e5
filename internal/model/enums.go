package model

// JobState is the lifecycle state of an edit job.
type JobState string

const (
	JobStateQueued         JobState = "queued"
	JobStateAnalyzing      JobState = "analyzing"
	JobStatePlanning       JobState = "planning"
	JobStateRendering      JobState = "rendering"
	JobStatePostProcessing JobState = "post_processing"
	JobStateUploading      JobState = "uploading"
	JobStateCompleted      JobState = "completed"
	JobStateFailed         JobState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// ErrorCategory classifies why a job failed.
type ErrorCategory string

const (
	ErrorCategoryInput        ErrorCategory = "input"
	ErrorCategoryRender       ErrorCategory = "render"
	ErrorCategoryVerification ErrorCategory = "verification"
	ErrorCategoryCanceled     ErrorCategory = "canceled"
	ErrorCategoryInternal     ErrorCategory = "internal"
)

// AssetStatus tracks where an asset is in its edit lifecycle.
type AssetStatus string

const (
	AssetStatusReady      AssetStatus = "ready"
	AssetStatusProcessing AssetStatus = "processing"
	AssetStatusEdited     AssetStatus = "edited"
	AssetStatusFailed     AssetStatus = "failed"
)

// Platform selects an output aspect ratio and resolution.
type Platform string

const (
	PlatformOriginal Platform = ""
	PlatformYouTube  Platform = "youtube"
	PlatformShorts   Platform = "shorts"
	PlatformTikTok   Platform = "tiktok"
	PlatformReels    Platform = "reels"
	PlatformSquare   Platform = "square"
	PlatformPortrait Platform = "portrait"
)

// PlatformTarget is the frame geometry a platform expects.
type PlatformTarget struct {
	Aspect string
	Width  int
	Height int
}

var PlatformTargets = map[Platform]PlatformTarget{
	PlatformYouTube:  {Aspect: "16:9", Width: 1920, Height: 1080},
	PlatformShorts:   {Aspect: "9:16", Width: 1080, Height: 1920},
	PlatformTikTok:   {Aspect: "9:16", Width: 1080, Height: 1920},
	PlatformReels:    {Aspect: "9:16", Width: 1080, Height: 1920},
	PlatformSquare:   {Aspect: "1:1", Width: 1080, Height: 1080},
	PlatformPortrait: {Aspect: "4:5", Width: 1080, Height: 1350},
}

// QualityPreset selects encoder settings.
type QualityPreset string

const (
	QualityStandard QualityPreset = "standard"
	QualityBest     QualityPreset = "best"
)

// Color grade presets
const (
	ColorPresetAuto      = "auto"
	ColorPresetCinematic = "cinematic"
	ColorPresetBleach    = "bleach"
	ColorPresetLog709    = "log709"
)

var ValidColorPresets = []string{
	ColorPresetAuto, ColorPresetCinematic, ColorPresetBleach, ColorPresetLog709,
}

// OverlayPosition anchors caption text vertically.
type OverlayPosition string

const (
	PositionTop    OverlayPosition = "top"
	PositionCenter OverlayPosition = "center"
	PositionBottom OverlayPosition = "bottom"
)

// RepetitionKind distinguishes repeated phrases from filler words.
type RepetitionKind string

const (
	RepetitionPhrase RepetitionKind = "repetition"
	RepetitionFiller RepetitionKind = "filler"
)
