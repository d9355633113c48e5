package filtergraph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/makeasinger/autoedit/internal/model"
)

var (
	// ErrEmptyPlan is returned for a plan with nothing to render.
	ErrEmptyPlan = errors.New("edit plan has no kept intervals")
	// ErrOverlayOutOfRange is returned when an overlay falls outside the
	// post-cut timeline.
	ErrOverlayOutOfRange = errors.New("overlay outside output timeline")
	// ErrUnknownFilter is returned for a filter kind the builder cannot compile.
	ErrUnknownFilter = errors.New("unknown filter kind")
)

const (
	defaultFPS = 30
	// rounding slack on output-time bounds
	timeEpsilon = 1e-3
)

// Options carry source properties the plan does not.
type Options struct {
	HasAudio bool
	FPS      float64
}

// Graph is a compiled plan: one video chain and, when the source has audio,
// one audio chain.
type Graph struct {
	Video          *Chain
	Audio          *Chain
	Width          int
	Height         int
	OutputDuration float64
}

// FilterComplex renders the graph as an ffmpeg -filter_complex value reading
// from input 0 and writing [vout] and [aout].
func (g *Graph) FilterComplex() string {
	fc := "[0:v]" + g.Video.String() + "[vout]"
	if g.Audio != nil {
		fc += ";[0:a]" + g.Audio.String() + "[aout]"
	}
	return fc
}

// Args returns the filter and stream mapping arguments for the encoder.
func (g *Graph) Args() []string {
	args := []string{"-filter_complex", g.FilterComplex(), "-map", "[vout]"}
	if g.Audio != nil {
		args = append(args, "-map", "[aout]")
	}
	return args
}

type pending struct {
	stage Stage
	exprs []string
}

var videoStages = map[model.FilterKind]Stage{
	model.FilterStabilize:  StageStabilize,
	model.FilterAspectCrop: StageAspectCrop,
	model.FilterColorGrade: StageColorGrade,
	model.FilterZoom:       StageZoom,
}

var audioStages = map[model.FilterKind]Stage{
	model.FilterLoudnorm: StageLoudnorm,
	model.FilterDenoise:  StageDenoise,
	model.FilterDuck:     StageDuck,
	model.FilterTempo:    StageTempo,
}

// Build compiles a plan into execution order. Plan filters arrive in feature
// order; Build ranks them by stage, places the cut between source-timed and
// output-timed stages, and appends through Chain so any ordering mistake
// surfaces as ErrStageOrder instead of a desynchronized render.
func Build(plan *model.EditPlan, opts Options) (*Graph, error) {
	if plan == nil || len(plan.KeptIntervals) == 0 {
		return nil, ErrEmptyPlan
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	keptDuration := plan.KeptDuration()

	var video []pending
	for _, f := range plan.VideoFilters {
		stage, ok := videoStages[f.Kind]
		if !ok {
			return nil, fmt.Errorf("%w: %s in video filters", ErrUnknownFilter, f.Kind)
		}
		exprs, err := videoExprs(f, plan, fps)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", f.Kind, err)
		}
		if len(exprs) > 0 {
			video = append(video, pending{stage: stage, exprs: exprs})
		}
	}
	if len(plan.Cuts) > 0 {
		video = append(video, pending{stage: StageCut, exprs: []string{videoCutExpr(plan.KeptIntervals)}})
	}
	for _, o := range plan.Overlays {
		if o.Start < 0 || o.End <= o.Start || o.End > keptDuration+timeEpsilon {
			return nil, fmt.Errorf("%w: %q at [%s,%s] of %s", ErrOverlayOutOfRange, o.Text, num(o.Start), num(o.End), num(keptDuration))
		}
		video = append(video, pending{stage: StageOverlay, exprs: []string{overlayExpr(o)}})
	}
	if plan.SpeedFactor > 1 {
		video = append(video, pending{stage: StageRetime, exprs: []string{retimeExpr(plan.SpeedFactor)}})
	}

	g := &Graph{
		Video:          NewChain(DomainVideo),
		Width:          plan.Width,
		Height:         plan.Height,
		OutputDuration: plan.OutputDuration(),
	}
	if err := appendAll(g.Video, video); err != nil {
		return nil, err
	}

	if !opts.HasAudio {
		return g, nil
	}

	var audio []pending
	if len(plan.Cuts) > 0 {
		audio = append(audio,
			pending{stage: StageAudioCut, exprs: []string{audioCutExpr(plan.KeptIntervals)}},
			pending{stage: StageResample, exprs: []string{resampleExpr}},
		)
	}
	for _, f := range plan.AudioFilters {
		stage, ok := audioStages[f.Kind]
		if !ok {
			return nil, fmt.Errorf("%w: %s in audio filters", ErrUnknownFilter, f.Kind)
		}
		if expr := audioExpr(f, keptDuration); expr != "" {
			audio = append(audio, pending{stage: stage, exprs: []string{expr}})
		}
	}

	g.Audio = NewChain(DomainAudio)
	if err := appendAll(g.Audio, audio); err != nil {
		return nil, err
	}
	return g, nil
}

func appendAll(c *Chain, ops []pending) error {
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].stage < ops[j].stage })
	for _, p := range ops {
		for _, expr := range p.exprs {
			if err := c.Append(p.stage, expr); err != nil {
				return err
			}
		}
	}
	return nil
}

func videoExprs(f model.Filter, plan *model.EditPlan, fps float64) ([]string, error) {
	switch f.Kind {
	case model.FilterStabilize:
		return []string{stabilizeExpr()}, nil
	case model.FilterAspectCrop:
		expr, err := aspectCropExpr(f.Aspect, plan.Width, plan.Height)
		if err != nil {
			return nil, err
		}
		return []string{expr}, nil
	case model.FilterColorGrade:
		return colorGradeExprs(f.Preset, f.Adjust)
	case model.FilterZoom:
		if len(f.Windows) == 0 || f.Factor <= 1 {
			return nil, nil
		}
		return []string{zoomExpr(f.Windows, f.Factor, plan.Width, plan.Height, fps)}, nil
	}
	return nil, nil
}

func audioExpr(f model.Filter, keptDuration float64) string {
	switch f.Kind {
	case model.FilterLoudnorm:
		return loudnormExpr
	case model.FilterDenoise:
		return denoiseExpr
	case model.FilterDuck:
		windows := make([]model.Interval, 0, len(f.Windows))
		for _, w := range f.Windows {
			if w.Start < keptDuration+timeEpsilon {
				windows = append(windows, w)
			}
		}
		if len(windows) == 0 {
			return ""
		}
		return duckExpr(windows, f.Factor)
	case model.FilterTempo:
		if f.Factor <= 1 {
			return ""
		}
		return tempoExpr(f.Factor)
	}
	return ""
}
