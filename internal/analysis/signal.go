package analysis

import (
	"math"
)

// Signal is a uniformly sampled metric. Sample i covers [i*Step, (i+1)*Step).
type Signal struct {
	Step   float64
	Values []float64
}

// NewSignal spreads values evenly over duration seconds.
func NewSignal(values []float64, duration float64) Signal {
	if len(values) == 0 || duration <= 0 {
		return Signal{}
	}
	return Signal{Step: duration / float64(len(values)), Values: values}
}

// Valid reports whether the signal has samples and a positive step.
func (s Signal) Valid() bool {
	return s.Step > 0 && len(s.Values) > 0
}

// Time returns the start time of sample i.
func (s Signal) Time(i int) float64 {
	return roundMillis(float64(i) * s.Step)
}

// Duration returns the time covered by all samples.
func (s Signal) Duration() float64 {
	return s.Time(len(s.Values))
}

// Mean returns the arithmetic mean of the samples, or 0 for an empty signal.
func (s Signal) Mean() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.Values {
		sum += v
	}
	return sum / float64(len(s.Values))
}

// MeanWithin averages samples whose start time falls in any of the given ranges.
func (s Signal) MeanWithin(ranges [][2]float64) float64 {
	sum, n := 0.0, 0
	for i, v := range s.Values {
		t := float64(i) * s.Step
		for _, r := range ranges {
			if t >= r[0] && t < r[1] {
				sum += v
				n++
				break
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Decibels converts a linear level in (0, 1] to dBFS. Non-positive levels map to -Inf.
func Decibels(level float64) float64 {
	if level <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(level)
}

// Linear converts dBFS to a linear level.
func Linear(db float64) float64 {
	if math.IsInf(db, -1) {
		return 0
	}
	return math.Pow(10, db/20)
}

func roundMillis(v float64) float64 {
	return math.Round(v*1000) / 1000
}
