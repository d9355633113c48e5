package analysis

const (
	DefaultSceneThreshold = 0.3

	maxZoomMoments    = 5
	zoomMinGapSeconds = 3.0
)

// DetectSceneChanges returns, in ascending order, the start time of every frame
// whose difference score exceeds threshold.
func DetectSceneChanges(frameDiff Signal, threshold float64) []float64 {
	timestamps := []float64{}
	if !frameDiff.Valid() {
		return timestamps
	}
	for i, v := range frameDiff.Values {
		if v > threshold {
			timestamps = append(timestamps, frameDiff.Time(i))
		}
	}
	return timestamps
}

// ZoomMoments picks punch-in targets from scene changes. There is no face or
// object detector; a scene cut stands in for "something new is on screen".
// Moments are at least zoomMinGapSeconds apart and leave room for a short zoom
// before the end of the asset.
func ZoomMoments(scenes []float64, duration float64) []float64 {
	moments := []float64{}
	last := -zoomMinGapSeconds
	for _, t := range scenes {
		if len(moments) == maxZoomMoments {
			break
		}
		if t-last < zoomMinGapSeconds || t+ZoomWindowSeconds > duration {
			continue
		}
		moments = append(moments, t)
		last = t
	}
	return moments
}

// ZoomWindowSeconds is how long each punch-in holds.
const ZoomWindowSeconds = 2.0
