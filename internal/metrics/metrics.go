package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished edit jobs by outcome and error category.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoedit_jobs_total",
		Help: "Total edit jobs by final state",
	}, []string{"state", "category"})

	// StageDuration tracks wall time spent in each pipeline stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autoedit_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: prometheus.ExponentialBuckets(0.05, 2.0, 14), // 50ms to ~7min
	}, []string{"stage"})

	// AnalysisDegraded counts optional analysis steps that fell back to empty results.
	AnalysisDegraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoedit_analysis_degraded_total",
		Help: "Optional analysis steps that failed and were skipped",
	}, []string{"step"})

	// RenderVerificationFailures counts outputs rejected after encoding or upload.
	RenderVerificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoedit_render_verification_failures_total",
		Help: "Rendered outputs that failed verification",
	}, []string{"phase"})

	// SecondsRemoved tracks how much source time each plan cut.
	SecondsRemoved = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autoedit_seconds_removed",
		Help:    "Seconds of source removed per edit plan",
		Buckets: prometheus.LinearBuckets(0, 5, 12),
	})

	// BatchAssets counts batch members by outcome.
	BatchAssets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoedit_batch_assets_total",
		Help: "Assets processed through batch runs",
	}, []string{"outcome"})
)
