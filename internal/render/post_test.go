package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeasinger/autoedit/internal/model"
)

func renderedFile(t *testing.T, dir string) *Result {
	t.Helper()
	path := filepath.Join(dir, "rendered.mp4")
	require.NoError(t, os.WriteFile(path, []byte("rendered"), 0o644))
	return &Result{Path: path, Size: 8, DurationSeconds: 30, HasAudio: true}
}

func TestPostProcessMixesMusicAndThumbnail(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "track.mp3")
	require.NoError(t, os.WriteFile(track, []byte("mp3"), 0o644))
	enc := &fakeEncoder{content: "mixed-output"}
	at := 42.0

	res, err := newTestOrchestrator(enc).PostProcess(context.Background(), PostRequest{
		Rendered:        renderedFile(t, dir),
		MusicTrack:      track,
		MusicVolume:     0.15,
		Speech:          []model.Interval{{Start: 0, End: 9}},
		MixOutput:       filepath.Join(dir, "mixed.mp4"),
		ThumbnailAt:     &at,
		ThumbnailOutput: filepath.Join(dir, "thumb.jpg"),
	})

	require.NoError(t, err)
	assert.True(t, res.MusicMixed)
	assert.Equal(t, filepath.Join(dir, "mixed.mp4"), res.Path)
	assert.Equal(t, int64(len("mixed-output")), res.Size)
	assert.Equal(t, filepath.Join(dir, "thumb.jpg"), res.Thumbnail)
	// the probe reports 57.8s, so the thumbnail time stays in range
	assert.Equal(t, []float64{42}, enc.thumbnail)

	filter := enc.calls[0][5]
	assert.Contains(t, filter, "afade=t=out:st=28:d=2")
	assert.Contains(t, filter, "volume=0.15")
	assert.Contains(t, filter, "volume='if(between(t,0,9),0.35,1)':eval=frame")
	assert.True(t, strings.HasSuffix(filter, "amix=inputs=2:duration=first:dropout_transition=0:normalize=0[aout]"))
}

func TestPostProcessMixFailureFallsBack(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "track.mp3")
	require.NoError(t, os.WriteFile(track, []byte("mp3"), 0o644))
	enc := &fakeEncoder{
		content: "partial",
		runErr:  func([]string) error { return errors.New("amix failed") },
	}
	rendered := renderedFile(t, dir)
	mixOut := filepath.Join(dir, "mixed.mp4")

	res, err := newTestOrchestrator(enc).PostProcess(context.Background(), PostRequest{
		Rendered:   rendered,
		MusicTrack: track,
		MixOutput:  mixOut,
	})

	require.NoError(t, err)
	assert.False(t, res.MusicMixed)
	assert.Equal(t, rendered.Path, res.Path)
	assert.NoFileExists(t, mixOut)
}

func TestPostProcessMissingTrackFallsBack(t *testing.T) {
	dir := t.TempDir()
	enc := &fakeEncoder{}

	res, err := newTestOrchestrator(enc).PostProcess(context.Background(), PostRequest{
		Rendered:   renderedFile(t, dir),
		MusicTrack: filepath.Join(dir, "missing.mp3"),
		MixOutput:  filepath.Join(dir, "mixed.mp4"),
	})

	require.NoError(t, err)
	assert.False(t, res.MusicMixed)
	assert.Empty(t, enc.calls)
}

func TestPostProcessThumbnailFailureIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	enc := &fakeEncoder{thumbErr: errors.New("seek past end")}
	at := 100.0

	res, err := newTestOrchestrator(enc).PostProcess(context.Background(), PostRequest{
		Rendered:        renderedFile(t, dir),
		ThumbnailAt:     &at,
		ThumbnailOutput: filepath.Join(dir, "thumb.jpg"),
	})

	require.NoError(t, err)
	assert.Empty(t, res.Thumbnail)
	assert.Equal(t, []float64{30}, enc.thumbnail, "clamped to the output duration")
}

func TestMusicFilterWithoutSpeechTrack(t *testing.T) {
	f := musicFilter(10, 0.5, nil, false)
	assert.Equal(t,
		"[1:a]aloop=loop=-1:size=2147483647,atrim=0:10,asetpts=N/SR/TB,afade=t=in:st=0:d=2,afade=t=out:st=8:d=2,volume=0.5[aout]",
		f)
}
