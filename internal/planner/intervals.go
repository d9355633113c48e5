package planner

import (
	"math"
	"sort"

	"github.com/makeasinger/autoedit/internal/model"
)

const (
	// DedupWindowSeconds is how close a silence start may sit to a prior cut before it is skipped.
	DedupWindowSeconds = 2.0
	// MinKeptSeconds is the shortest kept segment worth rendering.
	MinKeptSeconds = 0.1
	// BeatSnapSeconds is the furthest a boundary moves to land on a beat.
	BeatSnapSeconds = 0.5
)

// DedupSilences drops silences whose start is within DedupWindowSeconds of any
// previously applied cut.
func DedupSilences(silences []model.SilencePeriod, history []model.EditHistoryEntry) []model.Interval {
	out := make([]model.Interval, 0, len(silences))
	for _, s := range silences {
		if cutNearby(s.Start, history) {
			continue
		}
		out = append(out, s.Interval())
	}
	return out
}

func cutNearby(t float64, history []model.EditHistoryEntry) bool {
	for _, h := range history {
		if math.Abs(h.CutTimestamp-t) <= DedupWindowSeconds {
			return true
		}
	}
	return false
}

// MergeCuts clamps cuts to [0, duration], sorts them and merges overlapping or
// touching ranges. Empty ranges are dropped.
func MergeCuts(cuts []model.Interval, duration float64) []model.Interval {
	clamped := make([]model.Interval, 0, len(cuts))
	for _, c := range cuts {
		start, end := math.Max(0, c.Start), math.Min(duration, c.End)
		if end > start {
			clamped = append(clamped, model.Interval{Start: start, End: end})
		}
	}
	sort.Slice(clamped, func(i, j int) bool {
		if clamped[i].Start != clamped[j].Start {
			return clamped[i].Start < clamped[j].Start
		}
		return clamped[i].End < clamped[j].End
	})

	merged := make([]model.Interval, 0, len(clamped))
	for _, c := range clamped {
		if n := len(merged); n > 0 && c.Start <= merged[n-1].End {
			merged[n-1].End = math.Max(merged[n-1].End, c.End)
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

// Complement returns the parts of [0, duration] not covered by the sorted,
// merged cuts. Segments shorter than MinKeptSeconds are dropped, which folds
// them into the surrounding cuts.
func Complement(cuts []model.Interval, duration float64) []model.Interval {
	kept := []model.Interval{}
	cursor := 0.0
	add := func(start, end float64) {
		if end-start >= MinKeptSeconds {
			kept = append(kept, model.Interval{Start: start, End: end})
		}
	}
	for _, c := range cuts {
		add(cursor, c.Start)
		cursor = math.Max(cursor, c.End)
	}
	add(cursor, duration)
	return kept
}

// SnapToBeats moves interior kept boundaries onto the nearest beat within
// BeatSnapSeconds. Boundaries at 0 and duration stay put, order is preserved and
// no segment drops below MinKeptSeconds.
func SnapToBeats(kept []model.Interval, beats []float64, duration float64) ([]model.Interval, []bool) {
	out := append([]model.Interval(nil), kept...)
	synced := make([]bool, len(out))
	if len(beats) == 0 {
		return out, synced
	}
	sorted := append([]float64(nil), beats...)
	sort.Float64s(sorted)

	for i := range out {
		floor := 0.0
		if i > 0 {
			floor = out[i-1].End
		}
		if out[i].Start > 0 {
			if b, ok := nearestBeat(sorted, out[i].Start); ok && b >= floor && b <= out[i].End-MinKeptSeconds {
				out[i].Start, synced[i] = b, true
			}
		}

		ceiling := duration
		if i+1 < len(out) {
			ceiling = out[i+1].Start
		}
		if out[i].End < duration {
			if b, ok := nearestBeat(sorted, out[i].End); ok && b <= ceiling && b >= out[i].Start+MinKeptSeconds {
				out[i].End, synced[i] = b, true
			}
		}
	}
	return out, synced
}

func nearestBeat(sorted []float64, t float64) (float64, bool) {
	idx := sort.SearchFloat64s(sorted, t)
	best, found := 0.0, false
	for _, j := range []int{idx - 1, idx} {
		if j < 0 || j >= len(sorted) {
			continue
		}
		d := math.Abs(sorted[j] - t)
		if d <= BeatSnapSeconds && (!found || d < math.Abs(best-t)) {
			best, found = sorted[j], true
		}
	}
	return best, found
}

// Rebase assigns contiguous output start times to kept intervals.
func Rebase(kept []model.Interval, synced []bool) []model.KeptInterval {
	out := make([]model.KeptInterval, len(kept))
	cursor := 0.0
	for i, k := range kept {
		out[i] = model.KeptInterval{
			Start:       k.Start,
			End:         k.End,
			OutputStart: round3(cursor),
		}
		if i < len(synced) {
			out[i].SyncedToBeat = synced[i]
		}
		cursor += k.Duration()
	}
	return out
}

// ToOutputTime maps a source timestamp to the output timeline. It reports false
// when t falls inside a cut.
func ToOutputTime(kept []model.KeptInterval, t float64) (float64, bool) {
	for _, k := range kept {
		if t >= k.Start && t < k.End {
			return round3(k.OutputStart + (t - k.Start)), true
		}
	}
	return 0, false
}

// MapWindows maps source-time windows to output time, splitting a window that
// spans a cut and dropping parts that fall entirely in cuts.
func MapWindows(kept []model.KeptInterval, windows []model.Interval) []model.Interval {
	out := []model.Interval{}
	for _, w := range windows {
		for _, k := range kept {
			start, end := math.Max(w.Start, k.Start), math.Min(w.End, k.End)
			if end-start < MinKeptSeconds {
				continue
			}
			out = append(out, model.Interval{
				Start: round3(k.OutputStart + (start - k.Start)),
				End:   round3(k.OutputStart + (end - k.Start)),
			})
		}
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
