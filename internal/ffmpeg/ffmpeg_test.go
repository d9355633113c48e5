package ffmpeg

import (
	"context"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
}

func TestStreamOutputParsesProgressBlocks(t *testing.T) {
	out := strings.Join([]string{
		"Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'in.mp4':",
		"frame=120",
		"fps=59.94",
		"bitrate= 812.3kbits/s",
		"out_time_us=4000000",
		"out_time=00:00:04.000000",
		"speed=1.98x",
		"progress=continue",
		"frame=300",
		"out_time_us=10500000",
		"progress=end",
	}, "\n")

	var got []Progress
	var lines int
	streamOutput(strings.NewReader(out),
		func(p *Progress) { got = append(got, *p) },
		func(string) { lines++ },
	)

	require.Len(t, got, 2)
	assert.Equal(t, Progress{Frame: 120, FPS: 59.94, Bitrate: "812.3kbits/s", OutTime: 4, Speed: "1.98x"}, got[0])
	assert.Equal(t, 300, got[1].Frame)
	assert.Equal(t, 10.5, got[1].OutTime)
	assert.True(t, got[1].Done)
	assert.Equal(t, 11, lines)
}

func TestStreamOutputIgnoresNegativeOutTime(t *testing.T) {
	var got *Progress
	streamOutput(strings.NewReader("out_time_us=-9223372036854775807\nprogress=continue\n"),
		func(p *Progress) { got = p }, nil)

	require.NotNil(t, got)
	assert.Equal(t, 0.0, got.OutTime)
}

func TestTailSkipsProgressLines(t *testing.T) {
	tl := newTail(2)
	tl.add("frame=1")
	tl.add("[libx264 @ 0x1] broken")
	tl.add("out_time_us=5")
	tl.add("Conversion failed!")
	tl.add("Error while filtering")

	assert.Equal(t, "Conversion failed!\nError while filtering", tl.String())
}

func TestParseProbe(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001"},
			{"codec_type": "audio", "codec_name": "aac"}
		],
		"format": {"duration": "62.500000", "bit_rate": "4000000", "size": "31250000"}
	}`)

	info, err := parseProbe(data)
	require.NoError(t, err)
	assert.Equal(t, 62.5, info.DurationSeconds)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.InDelta(t, 29.97, info.FPS, 0.01)
	assert.Equal(t, int64(31250000), info.Size)
	assert.Equal(t, int64(4000000), info.Bitrate)
	assert.True(t, info.HasAudio)
	assert.Equal(t, "h264", info.VideoCodec)
	assert.Equal(t, "aac", info.AudioCodec)
}

func TestParseProbeRequiresVideo(t *testing.T) {
	_, err := parseProbe([]byte(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"3"}}`))
	assert.Error(t, err)

	_, err = parseProbe([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseFrameRate(t *testing.T) {
	assert.Equal(t, 25.0, parseFrameRate("25/1"))
	assert.Equal(t, 24.0, parseFrameRate("24"))
	assert.Equal(t, 0.0, parseFrameRate("30/0"))
	assert.Equal(t, 0.0, parseFrameRate(""))
}

func TestParseMetadataValues(t *testing.T) {
	lines := []string{
		"[Parsed_ametadata_3 @ 0x5581] frame:0    pts:0       pts_time:0",
		"[Parsed_ametadata_3 @ 0x5581] lavfi.astats.Overall.RMS_level=-20.000000",
		"[Parsed_ametadata_3 @ 0x5581] frame:1    pts:4800    pts_time:0.1",
		"[Parsed_ametadata_3 @ 0x5581] lavfi.astats.Overall.RMS_level=-inf",
		"[Parsed_metadata_1 @ 0x5582] lavfi.scene_score=0.4",
	}

	levels := parseMetadataValues(lines, rmsLevelKey)
	require.Len(t, levels, 2)
	assert.Equal(t, -20.0, levels[0])
	assert.True(t, math.IsInf(levels[1], -1))

	assert.InDelta(t, 0.1, dbToLinear(levels[0]), 1e-9)
	assert.Equal(t, 0.0, dbToLinear(levels[1]))
	assert.Equal(t, 1.0, dbToLinear(6))

	assert.Equal(t, []float64{0.4}, parseMetadataValues(lines, sceneScoreKey))
	assert.Empty(t, parseMetadataValues(nil, sceneScoreKey))
}

func TestNewMissingBinary(t *testing.T) {
	_, err := New(zerolog.Nop(), Config{FFmpegPath: filepath.Join(t.TempDir(), "ffmpeg")})
	assert.Error(t, err)
}

func TestExecutorAgainstGeneratedClip(t *testing.T) {
	skipIfNoFFmpeg(t)
	if testing.Short() {
		t.Skip("encodes a clip")
	}

	exec, err := New(zerolog.New(os.Stderr), Config{Threads: 2})
	require.NoError(t, err)

	ctx := context.Background()
	dir := t.TempDir()
	clip := filepath.Join(dir, "clip.mp4")

	var progressed bool
	err = exec.Run(ctx, RunOptions{
		Args: []string{
			"-f", "lavfi", "-i", "testsrc=duration=2:size=320x240:rate=25",
			"-f", "lavfi", "-i", "sine=frequency=440:duration=2",
			"-c:v", DefaultVideoCodec, "-c:a", DefaultAudioCodec, "-shortest", clip,
		},
		ProgressHandler: func(*Progress) { progressed = true },
	})
	require.NoError(t, err)
	assert.True(t, progressed)

	info, err := exec.ProbeVideo(ctx, clip)
	require.NoError(t, err)
	assert.Equal(t, 320, info.Width)
	assert.Equal(t, 240, info.Height)
	assert.True(t, info.HasAudio)
	assert.InDelta(t, 2.0, info.DurationSeconds, 0.2)

	levels, err := exec.LoudnessEnvelope(ctx, clip, 0.1)
	require.NoError(t, err)
	assert.NotEmpty(t, levels)

	thumb := filepath.Join(dir, "thumb.jpg")
	require.NoError(t, exec.GenerateThumbnail(ctx, clip, thumb, 1))
	st, err := os.Stat(thumb)
	require.NoError(t, err)
	assert.Positive(t, st.Size())
}
