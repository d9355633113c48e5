package analysis

const (
	beatWindowSeconds = 1.0
	beatSensitivity   = 1.3
	minBeatGapSeconds = 0.25
)

// DetectBeats finds energy onsets: samples whose energy exceeds the local mean by
// beatSensitivity and that are a local maximum. It never fails; an unusable
// signal yields an empty list.
func DetectBeats(audio Signal) []float64 {
	beats := []float64{}
	if !audio.Valid() || len(audio.Values) < 3 {
		return beats
	}

	n := len(audio.Values)
	energy := make([]float64, n)
	prefix := make([]float64, n+1)
	for i, v := range audio.Values {
		energy[i] = v * v
		prefix[i+1] = prefix[i] + energy[i]
	}

	half := int(beatWindowSeconds / audio.Step / 2)
	if half < 1 {
		half = 1
	}

	last := -minBeatGapSeconds
	for i := 1; i < n-1; i++ {
		e := energy[i]
		if e <= 0 || e < energy[i-1] || e < energy[i+1] {
			continue
		}
		lo, hi := max(0, i-half), min(n, i+half+1)
		mean := (prefix[hi] - prefix[lo]) / float64(hi-lo)
		if e <= beatSensitivity*mean {
			continue
		}
		t := audio.Time(i)
		if t-last < minBeatGapSeconds {
			continue
		}
		beats = append(beats, t)
		last = t
	}
	return beats
}
