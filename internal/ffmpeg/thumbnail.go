package ffmpeg

import (
	"context"
	"errors"
	"strconv"
)

// GenerateThumbnail writes a single JPEG frame taken at the given second.
func (e *Executor) GenerateThumbnail(ctx context.Context, input, output string, at float64) error {
	if input == "" {
		return errors.New("input path is required")
	}
	if output == "" {
		return errors.New("output path is required")
	}

	e.logger.Debug().
		Str("input", input).
		Str("output", output).
		Float64("at", at).
		Msg("generating thumbnail")

	args := []string{
		"-ss", strconv.FormatFloat(max(0, at), 'f', 3, 64),
		"-i", input,
		"-frames:v", "1",
		"-q:v", "2", // high quality JPEG
		output,
	}

	return e.Run(ctx, RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("thumbnail generation")
		},
	})
}
