// Package warmup measures capture-rate stability before a pipeline starts
// processing frames for real.
package warmup

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	// fpsStabilityThreshold: stable when the stddev of instantaneous FPS
	// is below this fraction of the mean FPS.
	fpsStabilityThreshold = 0.15
	// jitterStabilityThreshold: stable when mean inter-frame jitter is
	// below this fraction of the expected interval.
	jitterStabilityThreshold = 0.20
)

// Stats summarizes a warm-up run.
type Stats struct {
	FramesReceived int
	Duration       time.Duration
	FPSMean        float64
	FPSStdDev      float64
	FPSMin         float64
	FPSMax         float64
	JitterMean     float64 // seconds, mean |interval - expected|
	IsStable       bool
}

// Calculate derives FPS statistics from capture timestamps collected over
// totalDuration. Fewer than two frames yields an unstable zero result.
func Calculate(frameTimes []time.Time, totalDuration time.Duration) *Stats {
	s := &Stats{FramesReceived: len(frameTimes), Duration: totalDuration}
	if len(frameTimes) < 2 || totalDuration <= 0 {
		return s
	}

	s.FPSMean = float64(len(frameTimes)) / totalDuration.Seconds()

	instantaneous := make([]float64, 0, len(frameTimes)-1)
	intervals := make([]float64, 0, len(frameTimes)-1)
	for i := 1; i < len(frameTimes); i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		if interval <= 0 {
			continue
		}
		intervals = append(intervals, interval)
		instantaneous = append(instantaneous, 1.0/interval)
	}
	if len(instantaneous) == 0 {
		return s
	}

	s.FPSStdDev = stat.StdDev(instantaneous, nil)
	s.FPSMin = instantaneous[0]
	s.FPSMax = instantaneous[0]
	for _, fps := range instantaneous {
		if fps < s.FPSMin {
			s.FPSMin = fps
		}
		if fps > s.FPSMax {
			s.FPSMax = fps
		}
	}

	expected := 1.0 / s.FPSMean
	jitter := make([]float64, len(intervals))
	for i, interval := range intervals {
		d := interval - expected
		if d < 0 {
			d = -d
		}
		jitter[i] = d
	}
	s.JitterMean = stat.Mean(jitter, nil)

	s.IsStable = s.FPSStdDev < fpsStabilityThreshold*s.FPSMean &&
		s.JitterMean < jitterStabilityThreshold*expected

	return s
}
