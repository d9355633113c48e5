package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/makeasinger/autoedit/internal/analysis"
	"github.com/makeasinger/autoedit/internal/assets"
	"github.com/makeasinger/autoedit/internal/client"
	"github.com/makeasinger/autoedit/internal/ffmpeg"
	"github.com/makeasinger/autoedit/internal/filtergraph"
	"github.com/makeasinger/autoedit/internal/metrics"
	"github.com/makeasinger/autoedit/internal/model"
	"github.com/makeasinger/autoedit/internal/planner"
	"github.com/makeasinger/autoedit/internal/render"
)

// beatWindowSeconds is the envelope resolution used for beat detection when
// the asset only carries coarse level samples.
const beatWindowSeconds = 0.05

// registeredDurationTolerance is how far a probe may drift from the recorded
// duration before the source is treated as a different file.
const registeredDurationTolerance = 0.5

// AssetStore is the asset record boundary.
type AssetStore interface {
	Get(ctx context.Context, id string) (*model.Asset, error)
	SetStatus(ctx context.Context, id string, status model.AssetStatus) error
	Promote(ctx context.Context, id string, p assets.Promotion) error
}

// HistoryStore persists cuts and version snapshots.
type HistoryStore interface {
	History(ctx context.Context, assetID string) ([]model.EditHistoryEntry, error)
	AppendHistory(ctx context.Context, assetID string, entries []model.EditHistoryEntry) error
	SaveVersion(ctx context.Context, v *model.EditVersion) error
	HasRenderedRef(ctx context.Context, assetID, ref string) (bool, error)
	RaiseRenderedRef(ctx context.Context, assetID, ref string) (bool, error)
}

// SignalSource probes media and extracts raw signals from it.
type SignalSource interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	LoudnessEnvelope(ctx context.Context, input string, windowSeconds float64) ([]float64, error)
	SceneScores(ctx context.Context, input string) ([]float64, error)
}

// Renderer encodes compiled graphs and runs the second pass.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (*render.Result, error)
	PostProcess(ctx context.Context, req render.PostRequest) (*render.PostResult, error)
}

// Config tunes a pipeline.
type Config struct {
	WorkDir        string
	EnvelopeWindow float64
}

// Deps are the collaborators a pipeline is wired with.
type Deps struct {
	Assets   AssetStore
	History  HistoryStore
	Storage  client.StorageClient
	Signals  SignalSource
	Renderer Renderer
	Analyzer *analysis.Analyzer
	Planner  *planner.Planner
}

// Pipeline runs one asset from analysis to a stored, versioned render.
type Pipeline struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger
}

// New creates a pipeline.
func New(cfg Config, deps Deps, logger zerolog.Logger) *Pipeline {
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "autoedit")
	}
	if cfg.EnvelopeWindow <= 0 {
		cfg.EnvelopeWindow = 0.1
	}
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

// RunRequest identifies one run.
type RunRequest struct {
	JobID    string
	AssetID  string
	Options  model.EditOptions
	Notifier Notifier
}

// run carries the state of one Run call between stages.
type run struct {
	*Pipeline
	req      RunRequest
	sm       *StateMachine
	progress *reporter
	logger   zerolog.Logger
	workDir  string

	asset    *model.Asset
	source   string
	info     *ffmpeg.VideoInfo
	audio    analysis.Signal
	result   *model.AnalysisResult
	plan     *model.EditPlan
	graph    *filtergraph.Graph
	rendered *render.Result
	post     *render.PostResult
}

// Run executes Analyze, Plan, Build, Render, PostProcess and Upload in order.
// Failures come back as *Error. Degraded analysis and post-processing
// problems are logged and never fail the run.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*model.JobResult, error) {
	if req.Notifier == nil {
		req.Notifier = NoopNotifier{}
	}
	r := &run{
		Pipeline: p,
		req:      req,
		sm:       NewStateMachine(),
		progress: &reporter{notifier: req.Notifier, jobID: req.JobID, assetID: req.AssetID},
		logger:   p.logger.With().Str("job_id", req.JobID).Str("asset_id", req.AssetID).Logger(),
		workDir:  filepath.Join(p.cfg.WorkDir, req.JobID),
	}

	if err := os.MkdirAll(r.workDir, 0o755); err != nil {
		return nil, r.fail(ctx, newError(model.JobStateQueued, model.ErrorCategoryInternal, err))
	}
	defer func() {
		if err := os.RemoveAll(r.workDir); err != nil {
			r.logger.Warn().Err(err).Msg("failed to clean work dir")
		}
	}()

	stages := []struct {
		state model.JobState
		fn    func(context.Context) error
	}{
		{model.JobStateAnalyzing, r.analyze},
		{model.JobStatePlanning, r.planAndBuild},
		{model.JobStateRendering, r.render},
		{model.JobStatePostProcessing, r.postProcess},
	}
	for _, s := range stages {
		if err := r.enter(ctx, s.state); err != nil {
			return nil, r.fail(ctx, err)
		}
		start := time.Now()
		err := s.fn(ctx)
		metrics.StageDuration.WithLabelValues(string(s.state)).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, r.fail(ctx, err)
		}
	}

	if err := r.enter(ctx, model.JobStateUploading); err != nil {
		return nil, r.fail(ctx, err)
	}
	start := time.Now()
	result, err := r.upload(ctx)
	metrics.StageDuration.WithLabelValues(string(model.JobStateUploading)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, r.fail(ctx, err)
	}

	if err := r.sm.Transition(model.JobStateCompleted); err != nil {
		return nil, r.fail(ctx, newError(model.JobStateUploading, model.ErrorCategoryInternal, err))
	}
	r.progress.report(model.JobStateCompleted, 1, "Completed")
	metrics.JobsTotal.WithLabelValues(string(model.JobStateCompleted), "").Inc()

	r.logger.Info().
		Str("rendered_ref", result.RenderedRef).
		Float64("output_duration", result.OutputDuration).
		Float64("seconds_removed", result.SecondsRemoved).
		Int("improvement", result.Improvement).
		Bool("promoted", result.Promoted).
		Msg("edit completed")
	return result, nil
}

// enter transitions into a stage and reports its start. A canceled context
// stops the run at the stage boundary.
func (r *run) enter(ctx context.Context, state model.JobState) error {
	current := r.sm.State()
	if err := ctx.Err(); err != nil {
		return newError(current, model.ErrorCategoryCanceled, err)
	}
	if err := r.sm.Transition(state); err != nil {
		return newError(current, model.ErrorCategoryInternal, err)
	}
	r.progress.report(state, 0, stageMessages[state])
	return nil
}

var stageMessages = map[model.JobState]string{
	model.JobStateAnalyzing:      "Analyzing source",
	model.JobStatePlanning:       "Planning edits",
	model.JobStateRendering:      "Rendering",
	model.JobStatePostProcessing: "Post-processing",
	model.JobStateUploading:      "Uploading",
}

func (r *run) fail(ctx context.Context, cause error) error {
	err := newError(r.sm.State(), model.ErrorCategoryInternal, cause)
	_ = r.sm.Transition(model.JobStateFailed)
	metrics.JobsTotal.WithLabelValues(string(model.JobStateFailed), string(err.Category)).Inc()

	if r.asset != nil {
		// the job context may already be canceled
		if serr := r.deps.Assets.SetStatus(context.WithoutCancel(ctx), r.asset.ID, model.AssetStatusFailed); serr != nil {
			r.logger.Warn().Err(serr).Msg("failed to mark asset failed")
		}
	}

	r.logger.Error().
		Err(err.Err).
		Str("stage", string(err.Stage)).
		Str("category", string(err.Category)).
		Msg("edit failed")
	return err
}

func (r *run) analyze(ctx context.Context) error {
	stage := model.JobStateAnalyzing
	asset, err := r.deps.Assets.Get(ctx, r.req.AssetID)
	if err != nil {
		if errors.Is(err, assets.ErrNotFound) {
			return newError(stage, model.ErrorCategoryInput, err)
		}
		return newError(stage, model.ErrorCategoryInternal, err)
	}
	r.asset = asset
	if err := r.deps.Assets.SetStatus(ctx, asset.ID, model.AssetStatusProcessing); err != nil {
		r.logger.Warn().Err(err).Msg("failed to mark asset processing")
	}

	r.source, err = r.fetch(ctx, asset.SourceRef, "source")
	if err != nil {
		return newError(stage, model.ErrorCategoryInput, err)
	}

	r.info, err = r.deps.Signals.ProbeVideo(ctx, r.source)
	if err != nil {
		return newError(stage, model.ErrorCategoryInput, fmt.Errorf("unreadable source: %w", err))
	}
	duration := r.info.DurationSeconds
	if duration <= 0 {
		duration = asset.DurationSeconds
	}
	if duration <= 0 {
		return newError(stage, model.ErrorCategoryInput, fmt.Errorf("source %s has no duration", asset.SourceRef))
	}
	r.progress.report(stage, 0.1, "Probed source")

	// the stored levels and transcript belong to the registered file; a
	// promoted render is shorter and gets measured afresh
	levels, transcript := asset.AudioLevelSamples, asset.Transcript
	if r.info.DurationSeconds > 0 && asset.DurationSeconds > 0 &&
		math.Abs(r.info.DurationSeconds-asset.DurationSeconds) > registeredDurationTolerance {
		r.logger.Info().
			Float64("probed", r.info.DurationSeconds).
			Float64("registered", asset.DurationSeconds).
			Msg("source is not the registered media, ignoring stored signals")
		levels, transcript = nil, ""
	}

	coarse := len(levels) > 0
	switch {
	case coarse:
		r.audio = analysis.NewSignal(levels, duration)
	case r.info.HasAudio:
		levels, err := r.deps.Signals.LoudnessEnvelope(ctx, r.source, r.cfg.EnvelopeWindow)
		if err != nil {
			if ctx.Err() != nil {
				return newError(stage, model.ErrorCategoryCanceled, ctx.Err())
			}
			r.degraded("audio_levels", err)
		}
		r.audio = analysis.NewSignal(levels, duration)
	}
	r.progress.report(stage, 0.35, "Measured loudness")

	var frameDiff analysis.Signal
	scores, err := r.deps.Signals.SceneScores(ctx, r.source)
	if err != nil {
		if ctx.Err() != nil {
			return newError(stage, model.ErrorCategoryCanceled, ctx.Err())
		}
		r.degraded("scenes", err)
	} else {
		frameDiff = analysis.NewSignal(scores, duration)
	}
	r.progress.report(stage, 0.6, "Scored scenes")

	in := analysis.Input{
		Transcript:         transcript,
		Duration:           duration,
		Audio:              r.audio,
		FrameDiff:          frameDiff,
		SilenceThresholdDb: r.req.Options.SilenceThresholdDb,
		MinSilenceSeconds:  r.req.Options.MinSilenceSeconds,
	}
	if coarse && r.info.HasAudio && r.req.Options.EnableBeatSync {
		in.BeatAudio = func(ctx context.Context) (analysis.Signal, error) {
			levels, err := r.deps.Signals.LoudnessEnvelope(ctx, r.source, beatWindowSeconds)
			if err != nil {
				return analysis.Signal{}, err
			}
			return analysis.NewSignal(levels, duration), nil
		}
	}

	r.result, err = r.deps.Analyzer.Analyze(ctx, in)
	if err != nil {
		return newError(stage, model.ErrorCategoryInput, err)
	}
	for _, step := range r.result.Degraded {
		metrics.AnalysisDegraded.WithLabelValues(step).Inc()
	}
	r.progress.report(stage, 1, "Analysis complete")
	return nil
}

func (r *run) degraded(step string, err error) {
	metrics.AnalysisDegraded.WithLabelValues(step).Inc()
	r.logger.Warn().Err(err).Str("step", step).Msg("signal extraction unavailable")
}

func (r *run) planAndBuild(ctx context.Context) error {
	stage := model.JobStatePlanning

	// history is read once per run; a missing history only weakens dedup
	history, err := r.deps.History.History(ctx, r.asset.ID)
	if err != nil {
		if ctx.Err() != nil {
			return newError(stage, model.ErrorCategoryCanceled, ctx.Err())
		}
		r.logger.Warn().Err(err).Msg("edit history unavailable, planning without dedup")
		history = nil
	}

	r.plan, err = r.deps.Planner.Plan(planner.Input{
		AssetID:  r.asset.ID,
		Duration: r.result.DurationSeconds,
		Width:    r.info.Width,
		Height:   r.info.Height,
		Analysis: r.result,
		History:  history,
		Options:  r.req.Options,
		Audio:    r.audio,
	})
	if err != nil {
		return newError(stage, model.ErrorCategoryInput, err)
	}
	metrics.SecondsRemoved.Observe(r.plan.SourceDuration - r.plan.KeptDuration())
	r.progress.report(stage, 0.5, "Compiling filter graph")

	r.graph, err = filtergraph.Build(r.plan, filtergraph.Options{HasAudio: r.info.HasAudio, FPS: r.info.FPS})
	if err != nil {
		return newError(stage, model.ErrorCategoryRender, err)
	}
	r.logger.Debug().
		Strs("video_stages", stageNames(r.graph.Video)).
		Strs("audio_stages", stageNames(r.graph.Audio)).
		Msg("filter graph compiled")
	return nil
}

func stageNames(c *filtergraph.Chain) []string {
	if c == nil {
		return nil
	}
	return lo.Map(c.Stages(), func(s filtergraph.Stage, _ int) string { return s.String() })
}

func (r *run) render(ctx context.Context) error {
	var err error
	r.rendered, err = r.deps.Renderer.Render(ctx, render.Request{
		Input:   r.source,
		Output:  filepath.Join(r.workDir, "render.mp4"),
		Graph:   r.graph,
		Quality: r.req.Options.Quality,
		Progress: func(percent float64) {
			r.progress.report(model.JobStateRendering, percent/100, "Rendering")
		},
	})
	if err != nil {
		return newError(model.JobStateRendering, model.ErrorCategoryRender, err)
	}
	return nil
}

func (r *run) postProcess(ctx context.Context) error {
	stage := model.JobStatePostProcessing
	req := render.PostRequest{
		Rendered:        r.rendered,
		MusicVolume:     r.req.Options.MusicVolume,
		Speech:          outputWindows(r.plan, r.result.SpeechSegments),
		MixOutput:       filepath.Join(r.workDir, "mixed.mp4"),
		ThumbnailOutput: filepath.Join(r.workDir, "thumbnail.jpg"),
		Quality:         r.req.Options.Quality,
	}

	if track := r.req.Options.MusicTrack; track != "" {
		local, err := r.fetch(ctx, track, "music")
		switch {
		case err == nil:
			req.MusicTrack = local
		case ctx.Err() != nil:
			return newError(stage, model.ErrorCategoryCanceled, ctx.Err())
		default:
			r.logger.Warn().Err(err).Str("track", track).Msg("music track unavailable, skipping mix")
		}
	}

	if t := r.result.KeyMoments.BestThumbnailTime; t != nil {
		at := 0.0
		if mapped, ok := planner.ToOutputTime(r.plan.KeptIntervals, *t); ok {
			at = mapped / r.plan.SpeedFactor
		}
		req.ThumbnailAt = &at
	}

	post, err := r.deps.Renderer.PostProcess(ctx, req)
	if err != nil {
		return newError(stage, model.ErrorCategoryRender, err)
	}
	r.post = post
	return nil
}

// outputWindows maps source-time windows onto the final, retimed output.
func outputWindows(plan *model.EditPlan, windows []model.Interval) []model.Interval {
	mapped := planner.MapWindows(plan.KeptIntervals, windows)
	if plan.SpeedFactor <= 1 {
		return mapped
	}
	return lo.Map(mapped, func(w model.Interval, _ int) model.Interval {
		return model.Interval{Start: w.Start / plan.SpeedFactor, End: w.End / plan.SpeedFactor}
	})
}

func (r *run) upload(ctx context.Context) (*model.JobResult, error) {
	stage := model.JobStateUploading
	prefix := fmt.Sprintf("renders/%s/%s", r.asset.ID, r.req.JobID)

	key := prefix + ".mp4"
	obj, err := r.deps.Storage.Upload(ctx, r.post.Path, key, client.ContentType(r.post.Path))
	if err != nil {
		return nil, newError(stage, model.ErrorCategoryInternal, err)
	}
	r.progress.report(stage, 0.5, "Verifying upload")

	stored, err := r.deps.Storage.Stat(ctx, key)
	if err == nil && stored.Size != r.post.Size {
		err = fmt.Errorf("%w: %s holds %d bytes, rendered %d", ErrUploadMismatch, key, stored.Size, r.post.Size)
	}
	if err != nil {
		metrics.RenderVerificationFailures.WithLabelValues("upload").Inc()
		if derr := r.deps.Storage.Delete(context.WithoutCancel(ctx), key); derr != nil {
			r.logger.Warn().Err(derr).Str("key", key).Msg("failed to delete bad upload")
		}
		if errors.Is(err, client.ErrObjectNotFound) {
			err = fmt.Errorf("%w: %v", ErrUploadMismatch, err)
		}
		return nil, newError(stage, model.ErrorCategoryVerification, err)
	}

	var thumbKey string
	if r.post.Thumbnail != "" {
		tk := prefix + ".jpg"
		if _, err := r.deps.Storage.Upload(ctx, r.post.Thumbnail, tk, client.ContentType(r.post.Thumbnail)); err != nil {
			r.logger.Warn().Err(err).Msg("thumbnail upload failed, keeping previous thumbnail")
		} else {
			thumbKey = tk
		}
	}

	result := &model.JobResult{
		AssetID:        r.asset.ID,
		RenderedRef:    key,
		RenderedURL:    obj.URL,
		ThumbnailRef:   thumbKey,
		OutputDuration: r.post.Duration,
		OutputSize:     r.post.Size,
		QualityBefore:  r.plan.QualityBefore,
		QualityAfter:   r.plan.QualityAfter,
		Improvement:    r.plan.Improvement(),
		SecondsRemoved: round3(r.plan.SourceDuration - r.plan.KeptDuration()),
		EditsApplied:   r.plan.EditsApplied(),
		MusicMixed:     r.post.MusicMixed,
	}
	if result.EditsApplied == nil {
		result.EditsApplied = []string{}
	}
	if r.post.MusicMixed {
		result.EditsApplied = append(result.EditsApplied, "music")
	}

	// the prior source must be restorable before anything overwrites it
	preserved := false
	if r.req.Options.Promote {
		preserved = r.preservePrior(ctx)
	}

	version := &model.EditVersion{
		AssetID:      r.asset.ID,
		RenderedRef:  key,
		ThumbnailRef: thumbKey,
		EditsApplied: result.EditsApplied,
		Stats: model.VersionStats{
			OutputDuration: result.OutputDuration,
			OutputSize:     result.OutputSize,
			QualityBefore:  result.QualityBefore,
			QualityAfter:   result.QualityAfter,
			CutsApplied:    len(r.plan.Cuts),
		},
	}
	if err := r.deps.History.SaveVersion(ctx, version); err != nil {
		r.logger.Warn().Err(err).Msg("failed to save edit version")
	} else {
		result.VersionID = version.ID
	}

	// a concurrent run on the same asset can still push the prior out
	if preserved {
		preserved = r.stillRestorable(ctx)
	}

	switch {
	case r.req.Options.Promote && !preserved:
		r.logger.Warn().Msg("prior source not preserved, skipping promotion")
	case r.req.Options.Promote:
		err := r.deps.Assets.Promote(ctx, r.asset.ID, assets.Promotion{
			SourceRef: key,
			Thumbnail: thumbKey,
		})
		if err != nil {
			r.logger.Warn().Err(err).Msg("failed to promote render")
		} else {
			result.Promoted = true
		}
	}
	if !result.Promoted {
		if err := r.deps.Assets.SetStatus(ctx, r.asset.ID, model.AssetStatusReady); err != nil {
			r.logger.Warn().Err(err).Msg("failed to reset asset status")
		}
	}

	if err := r.deps.History.AppendHistory(ctx, r.asset.ID, historyEntries(r.plan.Cuts)); err != nil {
		r.logger.Warn().Err(err).Msg("failed to record edit history")
	}
	return result, nil
}

// preservePrior makes sure the current source sits at the front of the
// version ring, ahead of the render about to be saved.
func (r *run) preservePrior(ctx context.Context) bool {
	ref := r.asset.SourceRef
	saved, err := r.deps.History.RaiseRenderedRef(ctx, r.asset.ID, ref)
	if err != nil {
		r.logger.Warn().Err(err).Msg("failed to read versions")
		return false
	}
	if saved {
		return true
	}
	err = r.deps.History.SaveVersion(ctx, &model.EditVersion{
		AssetID:      r.asset.ID,
		RenderedRef:  ref,
		ThumbnailRef: r.asset.Thumbnail,
		EditsApplied: []string{"original"},
		Stats:        model.VersionStats{OutputDuration: r.asset.DurationSeconds},
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("failed to preserve prior source")
		return false
	}
	return true
}

func (r *run) stillRestorable(ctx context.Context) bool {
	ok, err := r.deps.History.HasRenderedRef(ctx, r.asset.ID, r.asset.SourceRef)
	if err != nil {
		r.logger.Warn().Err(err).Msg("failed to read versions")
		return false
	}
	return ok
}

func historyEntries(cuts []model.Interval) []model.EditHistoryEntry {
	now := time.Now().UTC()
	return lo.Map(cuts, func(c model.Interval, _ int) model.EditHistoryEntry {
		return model.EditHistoryEntry{
			CutTimestamp: c.Start,
			DurationCut:  round3(c.End - c.Start),
			AppliedAt:    now,
		}
	})
}

// fetch returns a local path for ref. Absolute paths and file URLs are used in
// place; anything else is treated as a storage key and downloaded.
func (r *run) fetch(ctx context.Context, ref, name string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("%w: empty reference", ErrSourceMissing)
	}
	if local := strings.TrimPrefix(ref, "file://"); filepath.IsAbs(local) {
		if _, err := os.Stat(local); err != nil {
			return "", fmt.Errorf("%w: %v", ErrSourceMissing, err)
		}
		return local, nil
	}

	dst := filepath.Join(r.workDir, name+filepath.Ext(ref))
	if err := r.deps.Storage.Download(ctx, ref, dst); err != nil {
		if errors.Is(err, client.ErrObjectNotFound) {
			return "", fmt.Errorf("%w: %v", ErrSourceMissing, err)
		}
		return "", err
	}
	return dst, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
