package model

// Interval is a half-open time range in seconds.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start.
func (i Interval) Duration() float64 {
	return i.End - i.Start
}

// Contains reports whether t falls inside [Start, End).
func (i Interval) Contains(t float64) bool {
	return t >= i.Start && t < i.End
}

// SilencePeriod is a run of audio below the silence threshold.
type SilencePeriod struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// Interval returns the period as a plain interval.
func (s SilencePeriod) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// Repetition is a phrase or filler word that recurs in the transcript.
type Repetition struct {
	Phrase string         `json:"phrase"`
	Count  int            `json:"count"`
	Kind   RepetitionKind `json:"kind"`
}

// Sentiment is the optional text-model reading of the transcript.
type Sentiment struct {
	Label    string   `json:"label"`
	Emotions []string `json:"emotions,omitempty"`
	Energy   float64  `json:"energy"`
}

// Moment is a point of interest in source time.
type Moment struct {
	Time float64 `json:"time"`
	Text string  `json:"text"`
}

// Hook is the opening span used to grab attention.
type Hook struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// KeyMoments groups transcript-derived points of interest.
type KeyMoments struct {
	Hook              *Hook    `json:"hook,omitempty"`
	Reactions         []Moment `json:"reactions"`
	Highlights        []Moment `json:"highlights"`
	BestThumbnailTime *float64 `json:"bestThumbnailTime,omitempty"`
}

// AnalysisResult is everything the analyzer learned about one asset.
type AnalysisResult struct {
	DurationSeconds float64         `json:"durationSeconds"`
	SilencePeriods  []SilencePeriod `json:"silencePeriods"`
	SpeechSegments  []Interval      `json:"speechSegments"`
	SceneTimestamps []float64       `json:"sceneTimestamps"`
	BeatTimestamps  []float64       `json:"beatTimestamps"`
	ZoomMoments     []float64       `json:"zoomMoments"`
	Repetitions     []Repetition    `json:"repetitions"`
	Sentiment       *Sentiment      `json:"sentiment,omitempty"`
	KeyMoments      KeyMoments      `json:"keyMoments"`
	MeanAudioLevel  float64         `json:"meanAudioLevel"`
	WordCount       int             `json:"wordCount"`
	TranscriptChars int             `json:"transcriptChars"`
	Degraded        []string        `json:"degraded,omitempty"`
}

// RepetitionCount sums occurrences across all repetition entries.
func (a *AnalysisResult) RepetitionCount() int {
	total := 0
	for _, r := range a.Repetitions {
		total += r.Count
	}
	return total
}
