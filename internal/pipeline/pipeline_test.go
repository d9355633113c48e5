package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeasinger/autoedit/internal/analysis"
	"github.com/makeasinger/autoedit/internal/assets"
	"github.com/makeasinger/autoedit/internal/client"
	"github.com/makeasinger/autoedit/internal/ffmpeg"
	"github.com/makeasinger/autoedit/internal/history"
	"github.com/makeasinger/autoedit/internal/model"
	"github.com/makeasinger/autoedit/internal/planner"
	"github.com/makeasinger/autoedit/internal/render"
)

// fakeMedia stands in for ffmpeg: it writes placeholder outputs and answers
// probes from fixed values.
type fakeMedia struct {
	mu       sync.Mutex
	source   string
	runErr   error
	runs     int
	outputs  []string
	envelope int
}

func (f *fakeMedia) Run(ctx context.Context, opts ffmpeg.RunOptions) error {
	output := opts.Args[len(opts.Args)-1]
	f.mu.Lock()
	f.runs++
	f.outputs = append(f.outputs, output)
	f.mu.Unlock()

	if err := os.WriteFile(output, []byte("rendered video bytes"), 0o644); err != nil {
		return err
	}
	if opts.ProgressHandler != nil {
		opts.ProgressHandler(&ffmpeg.Progress{OutTime: 20})
		opts.ProgressHandler(&ffmpeg.Progress{Done: true})
	}
	if f.runErr != nil {
		return f.runErr
	}
	return ctx.Err()
}

func (f *fakeMedia) ProbeVideo(_ context.Context, path string) (*ffmpeg.VideoInfo, error) {
	if path == f.source {
		return &ffmpeg.VideoInfo{FilePath: path, DurationSeconds: 60, Width: 1920, Height: 1080, FPS: 30, HasAudio: true}, nil
	}
	return &ffmpeg.VideoInfo{FilePath: path, DurationSeconds: 57.8, Width: 1920, Height: 1080, FPS: 30, HasAudio: true}, nil
}

func (f *fakeMedia) GenerateThumbnail(_ context.Context, _, output string, _ float64) error {
	return os.WriteFile(output, []byte("jpeg"), 0o644)
}

func (f *fakeMedia) LoudnessEnvelope(_ context.Context, _ string, _ float64) ([]float64, error) {
	f.mu.Lock()
	f.envelope++
	f.mu.Unlock()
	return speechWithPauses(), nil
}

func (f *fakeMedia) SceneScores(_ context.Context, _ string) ([]float64, error) {
	return make([]float64, 1800), nil
}

// speechWithPauses is 60s of 0.1s samples, silent at [10,11.2) and [30,31).
func speechWithPauses() []float64 {
	levels := make([]float64, 600)
	for i := range levels {
		switch {
		case i >= 100 && i < 112, i >= 300 && i < 310:
			levels[i] = 0
		default:
			levels[i] = 0.5
		}
	}
	return levels
}

// lyingStorage reports a different size than was uploaded.
type lyingStorage struct {
	client.StorageClient
	deleted []string
}

func (s *lyingStorage) Stat(ctx context.Context, key string) (*client.Object, error) {
	obj, err := s.StorageClient.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	obj.Size = 0
	return obj, nil
}

func (s *lyingStorage) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return s.StorageClient.Delete(ctx, key)
}

type harness struct {
	pipeline *Pipeline
	media    *fakeMedia
	assets   *assets.Store
	history  *history.Store
	storage  *client.LocalStorage
	workDir  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	source := filepath.Join(dir, "source.mp4")
	require.NoError(t, os.WriteFile(source, []byte("raw upload"), 0o644))

	store, err := assets.Open(filepath.Join(dir, "assets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Put(ctx, &model.Asset{
		ID:                "a1",
		SourceRef:         source,
		DurationSeconds:   60,
		AudioLevelSamples: speechWithPauses(),
		Width:             1920,
		Height:            1080,
		Thumbnail:         "thumbs/a1.jpg",
	}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	hist := history.NewStore(rdb)

	storage, err := client.NewLocalStorage(filepath.Join(dir, "blobs"), "")
	require.NoError(t, err)

	media := &fakeMedia{source: source}
	workDir := filepath.Join(dir, "work")
	p := New(Config{WorkDir: workDir}, Deps{
		Assets:   store,
		History:  hist,
		Storage:  storage,
		Signals:  media,
		Renderer: render.New(media, render.DefaultSettings(), zerolog.Nop()),
		Analyzer: analysis.NewAnalyzer(analysis.DefaultConfig(), nil, zerolog.Nop()),
		Planner:  planner.New(zerolog.Nop()),
	}, zerolog.Nop())

	return &harness{pipeline: p, media: media, assets: store, history: hist, storage: storage, workDir: workDir}
}

func options() model.EditOptions {
	opts := model.DefaultEditOptions()
	opts.EnableCaptions = false
	return opts
}

func TestRunCompletes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var (
		mu     sync.Mutex
		events []model.ProgressEvent
	)
	notifier := NotifierFunc(func(e model.ProgressEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	res, err := h.pipeline.Run(ctx, RunRequest{JobID: "job-1", AssetID: "a1", Options: options(), Notifier: notifier})
	require.NoError(t, err)

	assert.Equal(t, "renders/a1/job-1.mp4", res.RenderedRef)
	assert.Equal(t, "renders/a1/job-1.jpg", res.ThumbnailRef)
	assert.InDelta(t, 2.2, res.SecondsRemoved, 1e-9)
	assert.Equal(t, 57.8, res.OutputDuration)
	assert.Equal(t, int64(len("rendered video bytes")), res.OutputSize)
	assert.Contains(t, res.EditsApplied, "cuts:2")
	assert.NotEmpty(t, res.VersionID)
	assert.False(t, res.Promoted)
	assert.False(t, res.MusicMixed)

	ok, err := h.storage.Exists(ctx, res.RenderedRef)
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := h.history.History(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 10.0, entries[0].CutTimestamp)
	assert.InDelta(t, 1.2, entries[0].DurationCut, 1e-9)

	versions, err := h.history.Versions(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, res.RenderedRef, versions[0].RenderedRef)

	asset, err := h.assets.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.AssetStatusReady, asset.Status)
	assert.NotEqual(t, res.RenderedRef, asset.SourceRef, "source untouched without promote")

	// the work dir is removed after every run
	_, err = os.Stat(filepath.Join(h.workDir, "job-1"))
	assert.True(t, os.IsNotExist(err))

	// levels came from the asset, so the encoder was never asked for them
	assert.Zero(t, h.media.envelope)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, model.JobStateCompleted, last.Stage)
	assert.Equal(t, 100, last.Percent)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Percent, events[i-1].Percent, "progress went backwards at %d", i)
	}
}

func TestRunSecondPassSkipsRecutRegions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, RunRequest{JobID: "job-1", AssetID: "a1", Options: options()})
	require.NoError(t, err)

	res, err := h.pipeline.Run(ctx, RunRequest{JobID: "job-2", AssetID: "a1", Options: options()})
	require.NoError(t, err)
	assert.Zero(t, res.SecondsRemoved)
	assert.NotContains(t, res.EditsApplied, "cuts:2")
}

func TestRunPromotePreservesPriorSource(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	before, err := h.assets.Get(ctx, "a1")
	require.NoError(t, err)

	opts := options()
	opts.Promote = true
	res, err := h.pipeline.Run(ctx, RunRequest{JobID: "job-1", AssetID: "a1", Options: opts})
	require.NoError(t, err)
	assert.True(t, res.Promoted)

	after, err := h.assets.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, res.RenderedRef, after.SourceRef)
	assert.Equal(t, res.ThumbnailRef, after.Thumbnail)
	assert.Equal(t, model.AssetStatusEdited, after.Status)
	assert.Equal(t, before.DurationSeconds, after.DurationSeconds, "promotion only moves the reference")
	assert.Equal(t, before.AudioLevelSamples, after.AudioLevelSamples)

	versions, err := h.history.Versions(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, res.RenderedRef, versions[0].RenderedRef)
	assert.Equal(t, before.SourceRef, versions[1].RenderedRef)
	assert.Equal(t, []string{"original"}, versions[1].EditsApplied)

	ref, err := h.history.Restore(ctx, h.assets, "a1", versions[1].ID)
	require.NoError(t, err)
	assert.Equal(t, before.SourceRef, ref)

	restored, err := h.assets.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, before.SourceRef, restored.SourceRef)
	assert.Equal(t, before.DurationSeconds, restored.DurationSeconds)
	assert.Equal(t, before.AudioLevelSamples, restored.AudioLevelSamples)
	assert.Equal(t, before.Width, restored.Width)
	assert.Equal(t, before.Height, restored.Height)
}

func TestRunPromoteKeepsPriorInFullRing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	before, err := h.assets.Get(ctx, "a1")
	require.NoError(t, err)
	require.NoError(t, h.history.SaveVersion(ctx, &model.EditVersion{ID: "orig", AssetID: "a1", RenderedRef: before.SourceRef}))
	for i := 0; i < history.MaxVersions-1; i++ {
		require.NoError(t, h.history.SaveVersion(ctx, &model.EditVersion{
			ID:          fmt.Sprintf("old-%d", i),
			AssetID:     "a1",
			RenderedRef: fmt.Sprintf("renders/a1/old-%d.mp4", i),
		}))
	}

	opts := options()
	opts.Promote = true
	res, err := h.pipeline.Run(ctx, RunRequest{JobID: "job-1", AssetID: "a1", Options: opts})
	require.NoError(t, err)
	assert.True(t, res.Promoted)

	versions, err := h.history.Versions(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, versions, history.MaxVersions)
	assert.Equal(t, res.RenderedRef, versions[0].RenderedRef)
	assert.Equal(t, "orig", versions[1].ID)

	ref, err := h.history.Restore(ctx, h.assets, "a1", "orig")
	require.NoError(t, err)
	assert.Equal(t, before.SourceRef, ref)
}

func TestRunPromotedSourceIsDownloaded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	opts := options()
	opts.Promote = true
	_, err := h.pipeline.Run(ctx, RunRequest{JobID: "job-1", AssetID: "a1", Options: opts})
	require.NoError(t, err)

	// the promoted render probes shorter than the record, so the stored
	// levels are ignored and it is measured from storage
	_, err = h.pipeline.Run(ctx, RunRequest{JobID: "job-2", AssetID: "a1", Options: options()})
	require.NoError(t, err)
	assert.Equal(t, 1, h.media.envelope)
}

func TestRunAfterRestoreUsesStoredSignals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	opts := options()
	opts.Promote = true
	_, err := h.pipeline.Run(ctx, RunRequest{JobID: "job-1", AssetID: "a1", Options: opts})
	require.NoError(t, err)

	versions, err := h.history.Versions(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	_, err = h.history.Restore(ctx, h.assets, "a1", versions[1].ID)
	require.NoError(t, err)

	_, err = h.pipeline.Run(ctx, RunRequest{JobID: "job-2", AssetID: "a1", Options: options()})
	require.NoError(t, err)
	assert.Zero(t, h.media.envelope, "registered source keeps its recorded levels")
}

func TestRunMissingAssetIsInputError(t *testing.T) {
	h := newHarness(t)

	_, err := h.pipeline.Run(context.Background(), RunRequest{JobID: "job-1", AssetID: "nope", Options: options()})
	require.Error(t, err)

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, model.ErrorCategoryInput, pe.Category)
	assert.Equal(t, model.JobStateAnalyzing, pe.Stage)
	assert.ErrorIs(t, err, assets.ErrNotFound)
	assert.Zero(t, h.media.runs)
}

func TestRunMissingSourceIsInputError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.assets.SetSourceRef(ctx, "a1", "uploads/gone.mp4"))

	_, err := h.pipeline.Run(ctx, RunRequest{JobID: "job-1", AssetID: "a1", Options: options()})
	assert.Equal(t, model.ErrorCategoryInput, CategoryOf(err))
	assert.ErrorIs(t, err, ErrSourceMissing)

	asset, err := h.assets.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.AssetStatusFailed, asset.Status)
}

func TestRunRenderFailureCleansUp(t *testing.T) {
	h := newHarness(t)
	h.media.runErr = errors.New("encoder crashed")
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, RunRequest{JobID: "job-1", AssetID: "a1", Options: options()})
	require.Error(t, err)
	assert.Equal(t, model.ErrorCategoryRender, CategoryOf(err))

	require.Len(t, h.media.outputs, 1)
	_, statErr := os.Stat(h.media.outputs[0])
	assert.True(t, os.IsNotExist(statErr))

	versions, err := h.history.Versions(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, versions)

	entries, err := h.history.History(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, entries, "failed runs record no cuts")
}

func TestRunCanceledBeforeStart(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.pipeline.Run(ctx, RunRequest{JobID: "job-1", AssetID: "a1", Options: options()})
	assert.Equal(t, model.ErrorCategoryCanceled, CategoryOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.media.runs)
}

func TestRunUploadMismatchIsVerificationError(t *testing.T) {
	h := newHarness(t)
	lying := &lyingStorage{StorageClient: h.storage}
	h.pipeline.deps.Storage = lying

	_, err := h.pipeline.Run(context.Background(), RunRequest{JobID: "job-1", AssetID: "a1", Options: options()})
	require.Error(t, err)
	assert.Equal(t, model.ErrorCategoryVerification, CategoryOf(err))
	assert.ErrorIs(t, err, ErrUploadMismatch)
	assert.Equal(t, []string{"renders/a1/job-1.mp4"}, lying.deleted)
}
