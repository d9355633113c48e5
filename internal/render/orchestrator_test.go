package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeasinger/autoedit/internal/ffmpeg"
	"github.com/makeasinger/autoedit/internal/filtergraph"
	"github.com/makeasinger/autoedit/internal/model"
)

// fakeEncoder writes its output argument instead of encoding.
type fakeEncoder struct {
	mu        sync.Mutex
	calls     [][]string
	runErr    func(args []string) error
	content   string
	probe     *ffmpeg.VideoInfo
	probeErr  error
	thumbErr  error
	progress  []ffmpeg.Progress
	thumbnail []float64
}

func (f *fakeEncoder) Run(ctx context.Context, opts ffmpeg.RunOptions) error {
	f.mu.Lock()
	f.calls = append(f.calls, opts.Args)
	f.mu.Unlock()

	output := opts.Args[len(opts.Args)-1]
	if err := os.WriteFile(output, []byte(f.content), 0o644); err != nil {
		return err
	}
	for i := range f.progress {
		if opts.ProgressHandler != nil {
			opts.ProgressHandler(&f.progress[i])
		}
	}
	if f.runErr != nil {
		return f.runErr(opts.Args)
	}
	return ctx.Err()
}

func (f *fakeEncoder) ProbeVideo(_ context.Context, _ string) (*ffmpeg.VideoInfo, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	if f.probe != nil {
		return f.probe, nil
	}
	return &ffmpeg.VideoInfo{DurationSeconds: 57.8, Width: 1920, Height: 1080, HasAudio: true}, nil
}

func (f *fakeEncoder) GenerateThumbnail(_ context.Context, _, output string, at float64) error {
	f.thumbnail = append(f.thumbnail, at)
	if f.thumbErr != nil {
		return f.thumbErr
	}
	return os.WriteFile(output, []byte("jpeg"), 0o644)
}

func testGraph(t *testing.T, hasAudio bool) *filtergraph.Graph {
	t.Helper()
	g, err := filtergraph.Build(&model.EditPlan{
		SourceDuration: 60,
		KeptIntervals: []model.KeptInterval{
			{Start: 0, End: 10},
			{Start: 11.2, End: 30, OutputStart: 10},
			{Start: 31, End: 60, OutputStart: 28.8},
		},
		Cuts:        []model.Interval{{Start: 10, End: 11.2}, {Start: 30, End: 31}},
		SpeedFactor: 1,
		Width:       1920,
		Height:      1080,
	}, filtergraph.Options{HasAudio: hasAudio})
	require.NoError(t, err)
	return g
}

func newTestOrchestrator(enc Encoder) *Orchestrator {
	return New(enc, Settings{}, zerolog.Nop())
}

func TestRenderSuccess(t *testing.T) {
	enc := &fakeEncoder{
		content: "video-bytes",
		progress: []ffmpeg.Progress{
			{OutTime: 28.9},
			{OutTime: 80},
			{Done: true},
		},
	}
	dir := t.TempDir()
	output := filepath.Join(dir, "out.mp4")

	var seen []float64
	res, err := newTestOrchestrator(enc).Render(context.Background(), Request{
		Input:    filepath.Join(dir, "in.mp4"),
		Output:   output,
		Graph:    testGraph(t, true),
		Quality:  model.QualityStandard,
		Progress: func(p float64) { seen = append(seen, p) },
	})

	require.NoError(t, err)
	assert.Equal(t, output, res.Path)
	assert.Equal(t, int64(len("video-bytes")), res.Size)
	assert.Equal(t, 57.8, res.DurationSeconds)
	require.Len(t, seen, 3)
	assert.InDelta(t, 50, seen[0], 0.01)
	assert.Equal(t, []float64{100, 100}, seen[1:])

	args := strings.Join(enc.calls[0], " ")
	assert.Contains(t, args, "-crf 23 -preset medium")
	assert.Contains(t, args, "-map [aout]")
	assert.Contains(t, args, "-b:a 192k")
}

func TestRenderBestQuality(t *testing.T) {
	enc := &fakeEncoder{content: "x"}
	dir := t.TempDir()

	_, err := newTestOrchestrator(enc).Render(context.Background(), Request{
		Input:   "in.mp4",
		Output:  filepath.Join(dir, "out.mp4"),
		Graph:   testGraph(t, false),
		Quality: model.QualityBest,
	})

	require.NoError(t, err)
	args := strings.Join(enc.calls[0], " ")
	assert.Contains(t, args, "-crf 18 -preset slow")
	assert.NotContains(t, args, "-c:a", "no audio stream, no audio codec")
}

func TestRenderFailureRemovesPartialOutput(t *testing.T) {
	enc := &fakeEncoder{
		content: "partial",
		runErr:  func([]string) error { return errors.New("exit status 1") },
	}
	output := filepath.Join(t.TempDir(), "out.mp4")

	_, err := newTestOrchestrator(enc).Render(context.Background(), Request{
		Input: "in.mp4", Output: output, Graph: testGraph(t, true),
	})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRenderVerificationFailed)
	assert.NoFileExists(t, output)
	assert.Len(t, enc.calls, 1, "encode is not retried")
}

func TestRenderCanceledRemovesPartialOutput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	enc := &fakeEncoder{
		content: "partial",
		runErr: func([]string) error {
			cancel()
			return errors.New("signal: killed")
		},
	}
	output := filepath.Join(t.TempDir(), "out.mp4")

	_, err := newTestOrchestrator(enc).Render(ctx, Request{Input: "in.mp4", Output: output, Graph: testGraph(t, true)})

	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, output)
}

func TestRenderVerificationFailures(t *testing.T) {
	tests := []struct {
		name string
		enc  *fakeEncoder
	}{
		{name: "empty output", enc: &fakeEncoder{content: ""}},
		{name: "unprobeable output", enc: &fakeEncoder{content: "junk", probeErr: errors.New("invalid data")}},
		{name: "zero duration", enc: &fakeEncoder{content: "junk", probe: &ffmpeg.VideoInfo{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := filepath.Join(t.TempDir(), "out.mp4")
			_, err := newTestOrchestrator(tt.enc).Render(context.Background(), Request{
				Input: "in.mp4", Output: output, Graph: testGraph(t, true),
			})
			assert.ErrorIs(t, err, ErrRenderVerificationFailed)
			assert.NoFileExists(t, output)
		})
	}
}

func TestVerifyMissingOutput(t *testing.T) {
	_, err := newTestOrchestrator(&fakeEncoder{}).Verify(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"))
	assert.ErrorIs(t, err, ErrRenderVerificationFailed)
}

func TestSettingsForQuality(t *testing.T) {
	std := Settings{CRF: 21}.ForQuality(model.QualityStandard)
	assert.Equal(t, 21, std.CRF)
	assert.Equal(t, "medium", std.Preset)
	assert.Equal(t, "libx264", std.VideoCodec)

	best := Settings{CRF: 21}.ForQuality(model.QualityBest)
	assert.Equal(t, Settings{VideoCodec: "libx264", AudioCodec: "aac", CRF: 18, Preset: "slow", AudioBitrate: "320k"}, best)
}
