package planner

import (
	"errors"
	"sort"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/makeasinger/autoedit/internal/analysis"
	"github.com/makeasinger/autoedit/internal/model"
)

var (
	// ErrNothingKept means the cuts would remove the whole asset.
	ErrNothingKept = errors.New("edit plan keeps nothing of the source")
	// ErrInvalidDuration means the asset has no usable duration.
	ErrInvalidDuration = errors.New("asset duration must be positive")
)

const (
	maxSpeedFactor     = 1.10
	speedPerRepetition = 0.02
	zoomFactor         = 1.2
	duckLevel          = 0.35
	captionSeconds     = 2.5
	minCaptionSeconds  = 0.5
	defaultWidth       = 1920
	defaultHeight      = 1080
)

// Input is everything the planner combines into a plan.
type Input struct {
	AssetID  string
	Duration float64
	Width    int
	Height   int
	Analysis *model.AnalysisResult
	History  []model.EditHistoryEntry
	Options  model.EditOptions
	// Audio is used to score the kept material; optional.
	Audio analysis.Signal
}

// Planner turns analysis results into an EditPlan.
type Planner struct {
	logger zerolog.Logger
}

// New creates a planner.
func New(logger zerolog.Logger) *Planner {
	return &Planner{logger: logger.With().Str("component", "planner").Logger()}
}

// Plan builds the edit plan. Given the same input it always returns the same
// plan. Filters come out in feature order; the filter graph builder decides
// execution order.
func (p *Planner) Plan(in Input) (*model.EditPlan, error) {
	if in.Duration <= 0 {
		return nil, ErrInvalidDuration
	}
	res := in.Analysis
	if res == nil {
		res = &model.AnalysisResult{}
	}
	opts := in.Options

	var cuts []model.Interval
	if opts.RemoveSilence {
		cuts = append(cuts, DedupSilences(res.SilencePeriods, in.History)...)
	}
	cuts = append(cuts, opts.ExplicitCuts...)

	kept := Complement(MergeCuts(cuts, in.Duration), in.Duration)
	if len(kept) == 0 {
		return nil, ErrNothingKept
	}

	var synced []bool
	if opts.EnableBeatSync {
		kept, synced = SnapToBeats(kept, res.BeatTimestamps, in.Duration)
	}

	width, height := outputSize(opts.Platform, in.Width, in.Height)
	plan := &model.EditPlan{
		AssetID:        in.AssetID,
		SourceDuration: in.Duration,
		KeptIntervals:  Rebase(kept, synced),
		Cuts:           gaps(kept, in.Duration),
		VideoFilters:   []model.Filter{},
		AudioFilters:   []model.Filter{},
		Overlays:       []model.Overlay{},
		SpeedFactor:    1,
		Width:          width,
		Height:         height,
	}

	if opts.EnablePacing {
		plan.SpeedFactor = SpeedFactor(res.RepetitionCount())
	}

	plan.VideoFilters = videoFilters(opts, res)
	plan.AudioFilters = audioFilters(opts, res, plan)
	if opts.EnableCaptions {
		plan.Overlays = overlays(res, plan)
	}

	plan.QualityBefore = QualityScore(QualityInputs{
		DurationSeconds: in.Duration,
		MeanAudioLevel:  res.MeanAudioLevel,
		WordsPerSecond:  float64(res.WordCount) / in.Duration,
		TranscriptChars: res.TranscriptChars,
		Width:           in.Width,
		Height:          in.Height,
	})
	plan.QualityAfter = QualityScore(QualityInputs{
		DurationSeconds: plan.OutputDuration(),
		MeanAudioLevel:  keptLevel(in.Audio, kept, res.MeanAudioLevel),
		WordsPerSecond:  float64(res.WordCount) / plan.OutputDuration(),
		TranscriptChars: res.TranscriptChars,
		Width:           width,
		Height:          height,
	})

	p.logger.Debug().
		Str("asset_id", in.AssetID).
		Int("kept", len(plan.KeptIntervals)).
		Int("cuts", len(plan.Cuts)).
		Float64("speed", plan.SpeedFactor).
		Int("quality_before", plan.QualityBefore).
		Int("quality_after", plan.QualityAfter).
		Msg("edit plan built")

	return plan, nil
}

// SpeedFactor is the uniform pacing speed-up for a repetition count.
func SpeedFactor(repetitions int) float64 {
	if repetitions <= 0 {
		return 1
	}
	return round3(min(maxSpeedFactor, 1+speedPerRepetition*float64(repetitions)))
}

func outputSize(platform model.Platform, srcW, srcH int) (int, int) {
	if target, ok := model.PlatformTargets[platform]; ok {
		return target.Width, target.Height
	}
	if srcW > 0 && srcH > 0 {
		return srcW, srcH
	}
	return defaultWidth, defaultHeight
}

func videoFilters(opts model.EditOptions, res *model.AnalysisResult) []model.Filter {
	filters := []model.Filter{}

	if preset := colorPreset(opts.ColorPreset, res.Sentiment); preset != "" || opts.ColorAdjust != nil {
		filters = append(filters, model.Filter{Kind: model.FilterColorGrade, Preset: preset, Adjust: opts.ColorAdjust})
	}

	if opts.EnableZoom && len(res.ZoomMoments) > 0 {
		windows := lo.Map(res.ZoomMoments, func(t float64, _ int) model.Interval {
			return model.Interval{Start: t, End: round3(t + analysis.ZoomWindowSeconds)}
		})
		filters = append(filters, model.Filter{Kind: model.FilterZoom, Windows: windows, Factor: zoomFactor})
	}

	if target, ok := model.PlatformTargets[opts.Platform]; ok {
		filters = append(filters, model.Filter{Kind: model.FilterAspectCrop, Aspect: target.Aspect})
	}

	if opts.EnableStabilize {
		filters = append(filters, model.Filter{Kind: model.FilterStabilize})
	}
	return filters
}

// colorPreset resolves "auto" from the transcript mood; an unavailable
// sentiment leaves the grade off.
func colorPreset(requested string, s *model.Sentiment) string {
	if requested != model.ColorPresetAuto {
		return requested
	}
	if s == nil {
		return ""
	}
	switch {
	case s.Energy >= 7:
		return model.ColorPresetLog709
	case s.Label == "negative":
		return model.ColorPresetBleach
	default:
		return model.ColorPresetCinematic
	}
}

func audioFilters(opts model.EditOptions, res *model.AnalysisResult, plan *model.EditPlan) []model.Filter {
	filters := []model.Filter{}
	if opts.EnableNormalize {
		filters = append(filters, model.Filter{Kind: model.FilterLoudnorm})
	}
	if opts.EnableDenoise {
		filters = append(filters, model.Filter{Kind: model.FilterDenoise})
	}
	if opts.EnableDucking {
		if speech := MapWindows(plan.KeptIntervals, res.SpeechSegments); len(speech) > 0 {
			filters = append(filters, model.Filter{Kind: model.FilterDuck, Windows: speech, Factor: duckLevel})
		}
	}
	if plan.SpeedFactor > 1 {
		filters = append(filters, model.Filter{Kind: model.FilterTempo, Factor: plan.SpeedFactor})
	}
	return filters
}

// overlays places caption text in output time. Captions whose anchor was cut
// are skipped.
func overlays(res *model.AnalysisResult, plan *model.EditPlan) []model.Overlay {
	out := []model.Overlay{}
	limit := round3(plan.KeptDuration())

	if hook := res.KeyMoments.Hook; hook != nil && hook.Text != "" {
		mapped := MapWindows(plan.KeptIntervals, []model.Interval{{Start: hook.Start, End: hook.End}})
		if len(mapped) > 0 && mapped[0].Duration() >= minCaptionSeconds {
			out = append(out, model.Overlay{
				Text:     hook.Text,
				Start:    mapped[0].Start,
				End:      mapped[0].End,
				Position: model.PositionTop,
			})
		}
	}

	for _, h := range res.KeyMoments.Highlights {
		start, ok := ToOutputTime(plan.KeptIntervals, h.Time)
		if !ok {
			continue
		}
		end := round3(min(limit, start+captionSeconds))
		if end-start < minCaptionSeconds {
			continue
		}
		out = append(out, model.Overlay{
			Text:     h.Text,
			Start:    start,
			End:      end,
			Position: model.PositionBottom,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// gaps returns the source ranges removed by the plan.
func gaps(kept []model.Interval, duration float64) []model.Interval {
	out := []model.Interval{}
	cursor := 0.0
	for _, k := range kept {
		if k.Start > cursor {
			out = append(out, model.Interval{Start: cursor, End: k.Start})
		}
		cursor = k.End
	}
	if duration > cursor {
		out = append(out, model.Interval{Start: cursor, End: duration})
	}
	return out
}

func keptLevel(audio analysis.Signal, kept []model.Interval, fallback float64) float64 {
	if !audio.Valid() {
		return fallback
	}
	ranges := lo.Map(kept, func(k model.Interval, _ int) [2]float64 { return [2]float64{k.Start, k.End} })
	return audio.MeanWithin(ranges)
}
