package filtergraph

import "fmt"

// Domain is the stream a stage operates on.
type Domain int

const (
	DomainVideo Domain = iota
	DomainAudio
)

func (d Domain) String() string {
	if d == DomainAudio {
		return "audio"
	}
	return "video"
}

// Stage is a position in the execution order. A chain only accepts stages in
// non-decreasing order, so the numeric value is the precedence.
type Stage int

// Video stages. Geometry and grading run on source time, the cut re-timestamps
// the stream, and everything after it addresses output time.
const (
	StageStabilize Stage = iota + 1
	StageAspectCrop
	StageColorGrade
	StageZoom
	StageCut
	StageOverlay
	StageRetime
)

// Audio stages.
const (
	StageAudioCut Stage = iota + 100
	StageResample
	StageLoudnorm
	StageDenoise
	StageDuck
	StageTempo
)

var stageNames = map[Stage]string{
	StageStabilize:  "stabilize",
	StageAspectCrop: "aspect_crop",
	StageColorGrade: "color_grade",
	StageZoom:       "zoom",
	StageCut:        "cut",
	StageOverlay:    "overlay",
	StageRetime:     "retime",
	StageAudioCut:   "audio_cut",
	StageResample:   "resample",
	StageLoudnorm:   "loudnorm",
	StageDenoise:    "denoise",
	StageDuck:       "duck",
	StageTempo:      "tempo",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Domain reports which stream the stage belongs to.
func (s Stage) Domain() Domain {
	if s >= StageAudioCut {
		return DomainAudio
	}
	return DomainVideo
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := stageNames[s]
	return ok
}

// OutputTimed reports whether the stage expresses its timing on the post-cut
// timeline.
func (s Stage) OutputTimed() bool {
	switch s {
	case StageOverlay, StageDuck:
		return true
	}
	return false
}
