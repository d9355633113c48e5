package pipeline

import (
	"math"
	"sync"

	"github.com/makeasinger/autoedit/internal/model"
)

// Notifier receives progress events. Delivery is best-effort; a slow or absent
// consumer never affects the run.
type Notifier interface {
	Notify(event model.ProgressEvent)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(event model.ProgressEvent)

func (f NotifierFunc) Notify(event model.ProgressEvent) { f(event) }

// NoopNotifier drops every event.
type NoopNotifier struct{}

func (NoopNotifier) Notify(model.ProgressEvent) {}

// span is the share of overall job progress a stage occupies.
type span struct{ from, to int }

var stageSpans = map[model.JobState]span{
	model.JobStateQueued:         {0, 0},
	model.JobStateAnalyzing:      {5, 45},
	model.JobStatePlanning:       {45, 65},
	model.JobStateRendering:      {65, 90},
	model.JobStatePostProcessing: {90, 95},
	model.JobStateUploading:      {95, 99},
	model.JobStateCompleted:      {100, 100},
}

// Overall maps a fraction of one stage onto the 0-100 job scale.
func Overall(stage model.JobState, fraction float64) int {
	s, ok := stageSpans[stage]
	if !ok {
		return 0
	}
	fraction = math.Min(1, math.Max(0, fraction))
	return s.from + int(math.Round(fraction*float64(s.to-s.from)))
}

// reporter emits events for one job and keeps percent non-decreasing.
type reporter struct {
	mu       sync.Mutex
	notifier Notifier
	jobID    string
	assetID  string
	last     int
}

func (r *reporter) report(stage model.JobState, fraction float64, message string) {
	percent := Overall(stage, fraction)

	r.mu.Lock()
	if percent < r.last {
		percent = r.last
	}
	r.last = percent
	r.mu.Unlock()

	r.notifier.Notify(model.ProgressEvent{
		JobID:   r.jobID,
		AssetID: r.assetID,
		Stage:   stage,
		Percent: percent,
		Message: message,
	})
}
