package model

// EditOptions are the user-selected feature flags for one edit run.
type EditOptions struct {
	RemoveSilence   bool `json:"removeSilence"`
	EnableZoom      bool `json:"enableZoom"`
	EnableCaptions  bool `json:"enableCaptions"`
	EnableDucking   bool `json:"enableDucking"`
	EnableBeatSync  bool `json:"enableBeatSync"`
	EnablePacing    bool `json:"enablePacing"`
	EnableStabilize bool `json:"enableStabilize"`
	EnableDenoise   bool `json:"enableDenoise"`
	EnableNormalize bool `json:"enableNormalize"`

	ColorPreset string        `json:"colorPreset,omitempty" validate:"omitempty,oneof=auto cinematic bleach log709"`
	ColorAdjust *ColorAdjust  `json:"colorAdjust,omitempty" validate:"omitempty"`
	Platform    Platform      `json:"platform,omitempty" validate:"omitempty,oneof=youtube shorts tiktok reels square portrait"`
	Quality     QualityPreset `json:"quality,omitempty" validate:"omitempty,oneof=standard best"`

	MusicTrack  string  `json:"musicTrack,omitempty"`
	MusicVolume float64 `json:"musicVolume" validate:"gte=0,lte=1"`

	ExplicitCuts []Interval `json:"explicitCuts,omitempty"`

	SilenceThresholdDb float64 `json:"silenceThresholdDb" validate:"gte=-100,lte=0"`
	MinSilenceSeconds  float64 `json:"minSilenceSeconds" validate:"gte=0,lte=30"`

	// Promote rewrites the asset's source reference to the new render once it is verified.
	Promote bool `json:"promote"`
}

// DefaultEditOptions returns the option set used when a caller supplies none.
func DefaultEditOptions() EditOptions {
	return EditOptions{
		RemoveSilence:      true,
		EnableZoom:         false,
		EnableCaptions:     true,
		EnableDucking:      true,
		EnableBeatSync:     false,
		EnablePacing:       true,
		EnableNormalize:    true,
		Quality:            QualityStandard,
		MusicVolume:        0.15,
		SilenceThresholdDb: -50,
		MinSilenceSeconds:  0.5,
	}
}
