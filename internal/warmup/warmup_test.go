package warmup_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/visiona/camflow/internal/warmup"
)

func timesAt(intervals ...time.Duration) []time.Time {
	t := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	out := []time.Time{t}
	for _, iv := range intervals {
		t = t.Add(iv)
		out = append(out, t)
	}
	return out
}

// TestCalculateStableStream validates a perfectly paced stream.
func TestCalculateStableStream(t *testing.T) {
	// 30 frames at a steady 100ms.
	intervals := make([]time.Duration, 29)
	for i := range intervals {
		intervals[i] = 100 * time.Millisecond
	}
	times := timesAt(intervals...)

	s := warmup.Calculate(times, 3*time.Second)
	require.Equal(t, 30, s.FramesReceived)
	require.InDelta(t, 10.0, s.FPSMean, 0.1)
	require.InDelta(t, 0.0, s.FPSStdDev, 1e-9)
	require.True(t, s.IsStable)
}

// TestCalculateJitteryStream validates that heavy jitter reads as
// unstable.
func TestCalculateJitteryStream(t *testing.T) {
	var intervals []time.Duration
	for i := 0; i < 15; i++ {
		intervals = append(intervals, 20*time.Millisecond, 400*time.Millisecond)
	}
	times := timesAt(intervals...)

	s := warmup.Calculate(times, 6300*time.Millisecond)
	require.False(t, s.IsStable)
	require.Greater(t, s.FPSMax, s.FPSMin)
}

// TestCalculateDegenerateInput validates the zero-value result for
// streams too short to measure.
func TestCalculateDegenerateInput(t *testing.T) {
	s := warmup.Calculate(nil, time.Second)
	require.Zero(t, s.FramesReceived)
	require.False(t, s.IsStable)

	s = warmup.Calculate(timesAt(), time.Second)
	require.Equal(t, 1, s.FramesReceived)
	require.False(t, s.IsStable)
}
