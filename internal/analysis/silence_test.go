package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeasinger/autoedit/internal/model"
)

// levels builds a 0.1s-step signal at 0.5 with silent gaps over the given ranges.
func levels(duration float64, silent ...[2]float64) Signal {
	n := int(duration * 10)
	values := make([]float64, n)
	for i := range values {
		values[i] = 0.5
		t := float64(i) / 10
		for _, r := range silent {
			if t >= r[0]-1e-9 && t < r[1]-1e-9 {
				values[i] = 0
			}
		}
	}
	return Signal{Step: 0.1, Values: values}
}

func TestDetectSilence(t *testing.T) {
	audio := levels(60, [2]float64{10, 11.2}, [2]float64{30, 31})

	got := DetectSilence(audio, -50, 0.5)

	require.Len(t, got, 2)
	assert.Equal(t, model.SilencePeriod{Start: 10, End: 11.2, Duration: 1.2}, got[0])
	assert.Equal(t, model.SilencePeriod{Start: 30, End: 31, Duration: 1}, got[1])
}

func TestDetectSilenceDropsShortRuns(t *testing.T) {
	audio := levels(20, [2]float64{5, 5.3}, [2]float64{12, 13})

	got := DetectSilence(audio, -50, 0.5)

	require.Len(t, got, 1)
	assert.Equal(t, 12.0, got[0].Start)
}

func TestDetectSilenceTrailingRunClosesAtEnd(t *testing.T) {
	audio := levels(10, [2]float64{8, 10})

	got := DetectSilence(audio, -50, 0.5)

	require.Len(t, got, 1)
	assert.Equal(t, 8.0, got[0].Start)
	assert.Equal(t, 10.0, got[0].End)
}

func TestDetectSilenceUsesDecibelThreshold(t *testing.T) {
	// 0.01 is -40 dBFS, 0.001 is -60 dBFS.
	audio := Signal{Step: 0.5, Values: []float64{0.01, 0.01, 0.001, 0.001}}

	got := DetectSilence(audio, -50, 0.5)

	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Start)
	assert.Equal(t, 2.0, got[0].End)
}

func TestDetectSilenceEmptySignal(t *testing.T) {
	got := DetectSilence(Signal{}, -50, 0.5)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDetectSilenceDeterministic(t *testing.T) {
	audio := levels(30, [2]float64{3, 4}, [2]float64{20, 22.5})
	assert.Equal(t, DetectSilence(audio, -50, 0.5), DetectSilence(audio, -50, 0.5))
}

func TestSpeechSegments(t *testing.T) {
	audio := levels(20, [2]float64{5, 6}, [2]float64{15, 20})

	got := SpeechSegments(audio, -50, 0.3)

	assert.Equal(t, []model.Interval{{Start: 0, End: 5}, {Start: 6, End: 15}}, got)
}

func TestDetectSceneChanges(t *testing.T) {
	diff := Signal{Step: 0.5, Values: []float64{0.1, 0.5, 0.2, 0.31, 0.3, 0.9}}

	got := DetectSceneChanges(diff, 0.3)

	assert.Equal(t, []float64{0.5, 1.5, 2.5}, got)
}

func TestZoomMomentsSpacing(t *testing.T) {
	scenes := []float64{1, 2, 5, 5.5, 9, 12.5, 16, 19, 27}

	got := ZoomMoments(scenes, 28)

	assert.Equal(t, []float64{1, 5, 9, 12.5, 16}, got)
}

func TestZoomMomentsSkipsTail(t *testing.T) {
	got := ZoomMoments([]float64{9.5}, 10)
	assert.Empty(t, got)
}
