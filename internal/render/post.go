package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/makeasinger/autoedit/internal/ffmpeg"
	"github.com/makeasinger/autoedit/internal/model"
)

const (
	musicFadeSeconds = 2.0
	// music level under speech, relative to the requested volume
	musicDuckLevel = 0.35
)

// PostRequest describes the optional second pass on a verified render.
type PostRequest struct {
	Rendered *Result
	// MusicTrack is a local audio file; empty skips the mix.
	MusicTrack  string
	MusicVolume float64
	// Speech windows in output time duck the music.
	Speech      []model.Interval
	MixOutput   string
	ThumbnailAt *float64
	// ThumbnailOutput is where the JPEG goes; empty skips extraction.
	ThumbnailOutput string
	Quality         model.QualityPreset
}

// PostResult points at the best artifacts available after post-processing.
type PostResult struct {
	Path       string
	Size       int64
	Duration   float64
	MusicMixed bool
	Thumbnail  string
}

// PostProcess mixes background music and grabs a thumbnail. Neither step can
// fail the job: a failed mix falls back to the rendered file and a failed
// thumbnail leaves Thumbnail empty.
func (o *Orchestrator) PostProcess(ctx context.Context, req PostRequest) (*PostResult, error) {
	if req.Rendered == nil {
		return nil, errors.New("rendered output is required")
	}
	out := &PostResult{
		Path:     req.Rendered.Path,
		Size:     req.Rendered.Size,
		Duration: req.Rendered.DurationSeconds,
	}

	if req.MusicTrack != "" && req.MixOutput != "" {
		mixed, err := o.MixMusic(ctx, req)
		switch {
		case err == nil:
			out.Path, out.Size, out.Duration, out.MusicMixed = mixed.Path, mixed.Size, mixed.DurationSeconds, true
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			o.logger.Warn().Err(err).Str("track", req.MusicTrack).Msg("music mix failed, keeping unmixed render")
		}
	}

	if req.ThumbnailOutput != "" {
		at := 0.0
		if req.ThumbnailAt != nil {
			at = min(*req.ThumbnailAt, out.Duration)
		}
		if err := o.thumbnail(ctx, out.Path, req.ThumbnailOutput, at); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.logger.Warn().Err(err).Msg("thumbnail extraction failed, keeping previous thumbnail")
		} else {
			out.Thumbnail = req.ThumbnailOutput
		}
	}

	return out, nil
}

// MixMusic lays the track under the render with fades and speech ducking. The
// video stream is copied.
func (o *Orchestrator) MixMusic(ctx context.Context, req PostRequest) (*Result, error) {
	if _, err := os.Stat(req.MusicTrack); err != nil {
		return nil, fmt.Errorf("music track: %w", err)
	}
	duration := req.Rendered.DurationSeconds
	settings := o.settings.ForQuality(req.Quality)

	args := []string{
		"-i", req.Rendered.Path,
		"-i", req.MusicTrack,
		"-filter_complex", musicFilter(duration, req.MusicVolume, req.Speech, req.Rendered.HasAudio),
		"-map", "0:v", "-map", "[aout]",
		"-c:v", "copy",
	}
	args = append(args, settings.audioArgs()...)
	args = append(args, "-t", num(duration), "-movflags", "+faststart", req.MixOutput)

	if err := o.encoder.Run(ctx, ffmpeg.RunOptions{Args: args}); err != nil {
		removePartial(req.MixOutput, o.logger)
		return nil, fmt.Errorf("music mix: %w", err)
	}

	res, err := o.Verify(ctx, req.MixOutput)
	if err != nil {
		removePartial(req.MixOutput, o.logger)
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) thumbnail(ctx context.Context, input, output string, at float64) error {
	if err := o.encoder.GenerateThumbnail(ctx, input, output, at); err != nil {
		return err
	}
	st, err := os.Stat(output)
	if err != nil {
		return err
	}
	if st.Size() == 0 {
		return errors.New("thumbnail is empty")
	}
	return nil
}

func musicFilter(duration, volume float64, speech []model.Interval, hasSpeechTrack bool) string {
	fadeOut := max(0, duration-musicFadeSeconds)
	chain := []string{
		"aloop=loop=-1:size=2147483647",
		fmt.Sprintf("atrim=0:%s", num(duration)),
		"asetpts=N/SR/TB",
		fmt.Sprintf("afade=t=in:st=0:d=%s", num(musicFadeSeconds)),
		fmt.Sprintf("afade=t=out:st=%s:d=%s", num(fadeOut), num(musicFadeSeconds)),
		fmt.Sprintf("volume=%s", num(volume)),
	}
	if len(speech) > 0 {
		terms := make([]string, len(speech))
		for i, w := range speech {
			terms[i] = fmt.Sprintf("between(t,%s,%s)", num(w.Start), num(w.End))
		}
		chain = append(chain, fmt.Sprintf("volume='if(%s,%s,1)':eval=frame", strings.Join(terms, "+"), num(musicDuckLevel)))
	}

	music := "[1:a]" + strings.Join(chain, ",")
	if !hasSpeechTrack {
		return music + "[aout]"
	}
	return music + "[music];[0:a][music]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[aout]"
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
