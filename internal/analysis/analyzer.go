package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/makeasinger/autoedit/internal/model"
)

// Names of optional analysis steps, used in AnalysisResult.Degraded.
const (
	StepKeyMoments = "key_moments"
	StepSentiment  = "sentiment"
	StepBeats      = "beats"
	StepZoom       = "zoom_moments"
)

// SignalFunc lazily produces a signal, usually by asking the encoder.
type SignalFunc func(ctx context.Context) (Signal, error)

// Config tunes the analyzer.
type Config struct {
	SilenceThresholdDb float64
	MinSilenceSeconds  float64
	SpeechPauseSeconds float64
	SceneThreshold     float64
	Concurrency        int
	Retry              RetryPolicy
}

// DefaultConfig returns the analyzer defaults.
func DefaultConfig() Config {
	return Config{
		SilenceThresholdDb: DefaultSilenceThresholdDb,
		MinSilenceSeconds:  DefaultMinSilenceSeconds,
		SpeechPauseSeconds: DefaultSpeechPauseSeconds,
		SceneThreshold:     DefaultSceneThreshold,
		Concurrency:        4,
		Retry:              DefaultRetryPolicy(),
	}
}

// Input is everything known about one asset before analysis.
type Input struct {
	Transcript string
	Duration   float64
	Audio      Signal
	FrameDiff  Signal
	// BeatAudio, when set, supplies a finer loudness envelope for beat detection.
	BeatAudio SignalFunc
	// Overrides from the edit options; zero keeps the configured default.
	SilenceThresholdDb float64
	MinSilenceSeconds  float64
}

// Analyzer runs the signal detectors for one asset.
type Analyzer struct {
	cfg    Config
	text   TextIntelligence
	logger zerolog.Logger
}

// NewAnalyzer creates an analyzer. A nil text model means sentiment is unavailable.
func NewAnalyzer(cfg Config, text TextIntelligence, logger zerolog.Logger) *Analyzer {
	if text == nil {
		text = NoopTextIntelligence{}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Analyzer{
		cfg:    cfg,
		text:   text,
		logger: logger.With().Str("component", "analysis").Logger(),
	}
}

// Analyze computes the full AnalysisResult. Cheap detectors run inline; the
// optional steps run on a pool bounded by Config.Concurrency. Optional steps
// never fail the call: they are recorded in Degraded and left empty. The only
// error returned is cancellation.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (*model.AnalysisResult, error) {
	if in.Duration <= 0 {
		return nil, fmt.Errorf("asset duration must be positive, got %.3f", in.Duration)
	}

	threshold := a.cfg.SilenceThresholdDb
	if in.SilenceThresholdDb != 0 {
		threshold = in.SilenceThresholdDb
	}
	minSilence := a.cfg.MinSilenceSeconds
	if in.MinSilenceSeconds > 0 {
		minSilence = in.MinSilenceSeconds
	}

	res := &model.AnalysisResult{
		DurationSeconds: in.Duration,
		SilencePeriods:  DetectSilence(in.Audio, threshold, minSilence),
		SpeechSegments:  SpeechSegments(in.Audio, threshold, a.cfg.SpeechPauseSeconds),
		SceneTimestamps: DetectSceneChanges(in.FrameDiff, a.cfg.SceneThreshold),
		BeatTimestamps:  []float64{},
		ZoomMoments:     []float64{},
		Repetitions:     AnalyzeRepetition(in.Transcript),
		MeanAudioLevel:  in.Audio.Mean(),
		WordCount:       len(strings.Fields(in.Transcript)),
		TranscriptChars: len(strings.TrimSpace(in.Transcript)),
	}

	var (
		mu       sync.Mutex
		degraded []string
	)
	markDegraded := func(step string, err error) {
		a.logger.Warn().Err(err).Str("step", step).Msg("optional analysis unavailable")
		mu.Lock()
		degraded = append(degraded, step)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)

	g.Go(func() error {
		res.KeyMoments = DetectKeyMoments(in.Transcript, in.Duration, in.Audio)
		return nil
	})
	g.Go(func() error {
		s, err := AnalyzeSentiment(ctx, a.text, in.Transcript, a.cfg.Retry)
		if err != nil {
			markDegraded(StepSentiment, err)
			return nil
		}
		res.Sentiment = s
		return nil
	})
	g.Go(func() error {
		audio := in.Audio
		if in.BeatAudio != nil {
			fine, err := retry(ctx, a.cfg.Retry, func() (Signal, error) { return in.BeatAudio(ctx) })
			if err != nil {
				markDegraded(StepBeats, err)
				return nil
			}
			audio = fine
		}
		res.BeatTimestamps = DetectBeats(audio)
		return nil
	})
	g.Go(func() error {
		res.ZoomMoments = ZoomMoments(res.SceneTimestamps, in.Duration)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Degraded = sortedSteps(degraded)
	return res, nil
}

// sortedSteps orders degraded step names so results stay deterministic.
func sortedSteps(steps []string) []string {
	order := []string{StepKeyMoments, StepSentiment, StepBeats, StepZoom}
	return lo.Filter(order, func(s string, _ int) bool {
		return lo.Contains(steps, s)
	})
}
