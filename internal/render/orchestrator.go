package render

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog"

	"github.com/makeasinger/autoedit/internal/ffmpeg"
	"github.com/makeasinger/autoedit/internal/filtergraph"
	"github.com/makeasinger/autoedit/internal/metrics"
	"github.com/makeasinger/autoedit/internal/model"
)

// ErrRenderVerificationFailed means the encoder finished but the output is
// missing, empty or unreadable.
var ErrRenderVerificationFailed = errors.New("render verification failed")

// Encoder is the subset of the ffmpeg executor the orchestrator drives.
type Encoder interface {
	Run(ctx context.Context, opts ffmpeg.RunOptions) error
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	GenerateThumbnail(ctx context.Context, input, output string, at float64) error
}

// ProgressFunc receives encode progress from 0 to 100.
type ProgressFunc func(percent float64)

// Request describes one encode.
type Request struct {
	Input    string
	Output   string
	Graph    *filtergraph.Graph
	Quality  model.QualityPreset
	Progress ProgressFunc
}

// Result is a verified output.
type Result struct {
	Path            string
	DurationSeconds float64
	Size            int64
	Width           int
	Height          int
	HasAudio        bool
}

// Orchestrator renders compiled plans with the external encoder.
type Orchestrator struct {
	encoder  Encoder
	settings Settings
	logger   zerolog.Logger
}

// New creates an orchestrator.
func New(encoder Encoder, settings Settings, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		encoder:  encoder,
		settings: settings.withDefaults(),
		logger:   logger.With().Str("component", "render").Logger(),
	}
}

// Render encodes the graph once. A failed encode is not retried; any partial
// output is removed before the error is returned.
func (o *Orchestrator) Render(ctx context.Context, req Request) (*Result, error) {
	if req.Input == "" || req.Output == "" {
		return nil, errors.New("input and output paths are required")
	}
	if req.Graph == nil {
		return nil, errors.New("filter graph is required")
	}

	settings := o.settings.ForQuality(req.Quality)
	args := []string{"-i", req.Input}
	args = append(args, req.Graph.Args()...)
	args = append(args, settings.videoArgs()...)
	if req.Graph.Audio != nil {
		args = append(args, settings.audioArgs()...)
	}
	args = append(args, "-movflags", "+faststart", req.Output)

	logger := o.logger.With().Str("output", req.Output).Logger()
	logger.Info().
		Str("quality", string(req.Quality)).
		Float64("output_duration", req.Graph.OutputDuration).
		Msg("starting render")

	err := o.encoder.Run(ctx, ffmpeg.RunOptions{
		Args:            args,
		ProgressHandler: progressMapper(req.Graph.OutputDuration, req.Progress),
		LogHandler: func(line string) {
			logger.Trace().Str("ffmpeg", line).Msg("render output")
		},
	})
	if err != nil {
		removePartial(req.Output, logger)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("render failed: %w", err)
	}

	res, err := o.Verify(ctx, req.Output)
	if err != nil {
		removePartial(req.Output, logger)
		return nil, err
	}

	logger.Info().
		Float64("duration", res.DurationSeconds).
		Int64("size", res.Size).
		Msg("render completed")
	return res, nil
}

// Verify checks that path exists, is non-empty and probes as a video.
func (o *Orchestrator) Verify(ctx context.Context, path string) (*Result, error) {
	st, err := os.Stat(path)
	if err != nil {
		metrics.RenderVerificationFailures.WithLabelValues("stat").Inc()
		return nil, fmt.Errorf("%w: %v", ErrRenderVerificationFailed, err)
	}
	if st.Size() == 0 {
		metrics.RenderVerificationFailures.WithLabelValues("stat").Inc()
		return nil, fmt.Errorf("%w: %s is empty", ErrRenderVerificationFailed, path)
	}

	info, err := o.encoder.ProbeVideo(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.RenderVerificationFailures.WithLabelValues("probe").Inc()
		return nil, fmt.Errorf("%w: probe: %v", ErrRenderVerificationFailed, err)
	}
	if info.DurationSeconds <= 0 {
		metrics.RenderVerificationFailures.WithLabelValues("probe").Inc()
		return nil, fmt.Errorf("%w: %s has no duration", ErrRenderVerificationFailed, path)
	}

	return &Result{
		Path:            path,
		DurationSeconds: info.DurationSeconds,
		Size:            st.Size(),
		Width:           info.Width,
		Height:          info.Height,
		HasAudio:        info.HasAudio,
	}, nil
}

func progressMapper(total float64, fn ProgressFunc) func(*ffmpeg.Progress) {
	if fn == nil {
		return nil
	}
	return func(p *ffmpeg.Progress) {
		switch {
		case p.Done:
			fn(100)
		case total > 0:
			fn(math.Min(100, math.Max(0, p.OutTime/total*100)))
		}
	}
}

func removePartial(path string, logger zerolog.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("failed to remove partial output")
	}
}
