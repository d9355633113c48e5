package model

import "fmt"

// KeptInterval is a source range retained in the output.
type KeptInterval struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	OutputStart  float64 `json:"outputStart"`
	SyncedToBeat bool    `json:"syncedToBeat,omitempty"`
}

// Duration returns the kept length in seconds.
func (k KeptInterval) Duration() float64 {
	return k.End - k.Start
}

// FilterKind names a plan-level edit operation.
type FilterKind string

const (
	FilterStabilize  FilterKind = "stabilize"
	FilterAspectCrop FilterKind = "aspect_crop"
	FilterColorGrade FilterKind = "color_grade"
	FilterZoom       FilterKind = "zoom"
	FilterLoudnorm   FilterKind = "loudnorm"
	FilterDenoise    FilterKind = "denoise"
	FilterDuck       FilterKind = "duck"
	FilterTempo      FilterKind = "tempo"
)

// ColorAdjust is a manual eq correction applied after any preset.
type ColorAdjust struct {
	Brightness float64 `json:"brightness" validate:"gte=-1,lte=1"`
	Contrast   float64 `json:"contrast" validate:"gte=0,lte=3"`
	Saturation float64 `json:"saturation" validate:"gte=0,lte=3"`
}

// Filter is one semantic edit operation. Which fields matter depends on Kind.
type Filter struct {
	Kind    FilterKind   `json:"kind"`
	Preset  string       `json:"preset,omitempty"`
	Adjust  *ColorAdjust `json:"adjust,omitempty"`
	Aspect  string       `json:"aspect,omitempty"`
	Windows []Interval   `json:"windows,omitempty"`
	Factor  float64      `json:"factor,omitempty"`
}

// Overlay is caption text drawn over [Start, End) of the output timeline.
type Overlay struct {
	Text     string          `json:"text"`
	Start    float64         `json:"start"`
	End      float64         `json:"end"`
	Position OverlayPosition `json:"position"`
}

// EditPlan is the deterministic set of operations computed before rendering.
type EditPlan struct {
	AssetID        string         `json:"assetId"`
	SourceDuration float64        `json:"sourceDuration"`
	KeptIntervals  []KeptInterval `json:"keptIntervals"`
	Cuts           []Interval     `json:"cuts"`
	VideoFilters   []Filter       `json:"videoFilters"`
	AudioFilters   []Filter       `json:"audioFilters"`
	Overlays       []Overlay      `json:"overlays"`
	SpeedFactor    float64        `json:"speedFactor"`
	Width          int            `json:"width"`
	Height         int            `json:"height"`
	QualityBefore  int            `json:"qualityBefore"`
	QualityAfter   int            `json:"qualityAfter"`
}

// KeptDuration is the output length before any retiming.
func (p *EditPlan) KeptDuration() float64 {
	total := 0.0
	for _, k := range p.KeptIntervals {
		total += k.Duration()
	}
	return total
}

// OutputDuration is the final output length after the speed factor.
func (p *EditPlan) OutputDuration() float64 {
	if p.SpeedFactor <= 0 {
		return p.KeptDuration()
	}
	return p.KeptDuration() / p.SpeedFactor
}

// Improvement is the quality delta the plan is expected to produce.
func (p *EditPlan) Improvement() int {
	return p.QualityAfter - p.QualityBefore
}

// EditsApplied lists the operations in the plan for version records.
func (p *EditPlan) EditsApplied() []string {
	var edits []string
	if len(p.Cuts) > 0 {
		edits = append(edits, fmt.Sprintf("cuts:%d", len(p.Cuts)))
	}
	for _, k := range p.KeptIntervals {
		if k.SyncedToBeat {
			edits = append(edits, "beat_sync")
			break
		}
	}
	for _, f := range p.VideoFilters {
		switch {
		case f.Preset != "":
			edits = append(edits, string(f.Kind)+":"+f.Preset)
		case f.Aspect != "":
			edits = append(edits, string(f.Kind)+":"+f.Aspect)
		default:
			edits = append(edits, string(f.Kind))
		}
	}
	for _, f := range p.AudioFilters {
		edits = append(edits, string(f.Kind))
	}
	if len(p.Overlays) > 0 {
		edits = append(edits, fmt.Sprintf("captions:%d", len(p.Overlays)))
	}
	return edits
}
