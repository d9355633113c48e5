package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

const (
	rmsLevelKey   = "lavfi.astats.Overall.RMS_level"
	sceneScoreKey = "lavfi.scene_score"
	// analysisRate is the sample rate audio is resampled to before windowing.
	analysisRate = 48000
)

// LoudnessEnvelope returns the linear RMS level of the audio track for
// consecutive windows of windowSeconds.
func (e *Executor) LoudnessEnvelope(ctx context.Context, input string, windowSeconds float64) ([]float64, error) {
	if input == "" {
		return nil, errors.New("input path is required")
	}
	if windowSeconds <= 0 {
		return nil, errors.New("window must be positive")
	}
	samples := int(math.Round(analysisRate * windowSeconds))

	filter := fmt.Sprintf("aresample=%d,asetnsamples=n=%d:p=0,astats=metadata=1:reset=1,ametadata=print:key=%s",
		analysisRate, samples, rmsLevelKey)

	lines, err := e.collect(ctx, []string{"-i", input, "-vn", "-af", filter, "-f", "null", "-"})
	if err != nil {
		return nil, fmt.Errorf("loudness analysis failed: %w", err)
	}

	levels := parseMetadataValues(lines, rmsLevelKey)
	for i, db := range levels {
		levels[i] = dbToLinear(db)
	}
	e.logger.Debug().Str("input", input).Int("windows", len(levels)).Msg("loudness envelope extracted")
	return levels, nil
}

// SceneScores returns the per-frame scene change score in [0, 1].
func (e *Executor) SceneScores(ctx context.Context, input string) ([]float64, error) {
	if input == "" {
		return nil, errors.New("input path is required")
	}

	filter := fmt.Sprintf("select='gte(scene,0)',metadata=print:key=%s", sceneScoreKey)
	lines, err := e.collect(ctx, []string{"-i", input, "-an", "-vf", filter, "-f", "null", "-"})
	if err != nil {
		return nil, fmt.Errorf("scene analysis failed: %w", err)
	}

	scores := parseMetadataValues(lines, sceneScoreKey)
	e.logger.Debug().Str("input", input).Int("frames", len(scores)).Msg("scene scores extracted")
	return scores, nil
}

func (e *Executor) collect(ctx context.Context, args []string) ([]string, error) {
	var (
		mu    sync.Mutex
		lines []string
	)
	err := e.Run(ctx, RunOptions{
		Args: args,
		LogHandler: func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		},
	})
	mu.Lock()
	defer mu.Unlock()
	return lines, err
}

// parseMetadataValues extracts key=value readings printed by the metadata
// filters, in order. Non-numeric readings such as -inf map to -Inf.
func parseMetadataValues(lines []string, key string) []float64 {
	marker := key + "="
	values := []float64{}
	for _, line := range lines {
		idx := strings.Index(line, marker)
		if idx < 0 {
			continue
		}
		raw := strings.TrimSpace(line[idx+len(marker):])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			v = math.Inf(-1)
		}
		values = append(values, v)
	}
	return values
}

func dbToLinear(db float64) float64 {
	if math.IsInf(db, -1) || math.IsNaN(db) {
		return 0
	}
	return math.Min(1, math.Pow(10, db/20))
}
