package planner

// QualityInputs are the measurable properties the quality heuristic looks at.
type QualityInputs struct {
	DurationSeconds float64
	MeanAudioLevel  float64
	WordsPerSecond  float64
	TranscriptChars int
	Width           int
	Height          int
}

// QualityScore rates a video from 0 to 100 on duration fit, audio level, speech
// pacing, transcript presence and resolution.
func QualityScore(in QualityInputs) int {
	score := 50

	switch d := in.DurationSeconds; {
	case d >= 30 && d <= 60:
		score += 15
	case d >= 15 && d <= 120:
		score += 10
	case d < 15:
		score -= 10
	}

	switch m := in.MeanAudioLevel; {
	case m >= 0.3 && m <= 0.9:
		score += 10
	case m < 0.1:
		score -= 15
	}

	if in.WordsPerSecond >= 2 && in.WordsPerSecond <= 4 {
		score += 10
	}

	if in.TranscriptChars > 50 {
		score += 5
	}

	// Orientation-independent so 1080x1920 counts as full HD.
	long, short := max(in.Width, in.Height), min(in.Width, in.Height)
	switch {
	case long >= 1920 && short >= 1080:
		score += 10
	case long >= 1280 && short >= 720:
		score += 5
	}

	return min(100, max(0, score))
}
