package analysis

import (
	"github.com/makeasinger/autoedit/internal/model"
)

// Defaults used when a caller does not override them.
const (
	DefaultSilenceThresholdDb = -50.0
	DefaultMinSilenceSeconds  = 0.5
	DefaultSpeechPauseSeconds = 0.3
)

// DetectSilence returns the runs of samples quieter than thresholdDb that last at
// least minDuration seconds. A run still open at the end of the signal closes at
// the signal's duration.
func DetectSilence(audio Signal, thresholdDb, minDuration float64) []model.SilencePeriod {
	periods := []model.SilencePeriod{}
	if !audio.Valid() {
		return periods
	}

	runStart := -1
	flush := func(endIdx int) {
		start, end := audio.Time(runStart), audio.Time(endIdx)
		if d := roundMillis(end - start); d >= minDuration {
			periods = append(periods, model.SilencePeriod{Start: start, End: end, Duration: d})
		}
	}

	for i, v := range audio.Values {
		if Decibels(v) < thresholdDb {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			flush(i)
			runStart = -1
		}
	}
	if runStart >= 0 {
		flush(len(audio.Values))
	}
	return periods
}

// SpeechSegments returns the complement of pauses longer than minPause within the
// signal. These drive ducking automation and music mixing.
func SpeechSegments(audio Signal, thresholdDb, minPause float64) []model.Interval {
	segments := []model.Interval{}
	if !audio.Valid() {
		return segments
	}

	cursor := 0.0
	for _, p := range DetectSilence(audio, thresholdDb, minPause) {
		if p.Start > cursor {
			segments = append(segments, model.Interval{Start: cursor, End: p.Start})
		}
		cursor = p.End
	}
	if end := audio.Duration(); end > cursor {
		segments = append(segments, model.Interval{Start: cursor, End: end})
	}
	return segments
}
