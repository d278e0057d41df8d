package stats

import (
	"math"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum FPS standard deviation as a
	// fraction of mean FPS. 30 FPS mean → stable if stddev < 4.5 FPS.
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of
	// the expected inter-frame interval. 30 FPS → stable if jitter < 6.6ms.
	jitterStabilityThreshold = 0.20
)

// FPSStats summarises frame arrival times over a window.
type FPSStats struct {
	// FramesReceived is the number of timestamps in the window
	FramesReceived int
	// Duration is the window length
	Duration time.Duration
	// FPSMean is frames / duration
	FPSMean float64
	// FPSStdDev is the standard deviation of instantaneous FPS around FPSMean
	FPSStdDev float64
	// FPSMin is the minimum instantaneous FPS
	FPSMin float64
	// FPSMax is the maximum instantaneous FPS
	FPSMax float64
	// JitterMean is the mean |interval - expected interval| in seconds
	JitterMean float64
	// JitterStdDev is the standard deviation of jitter in seconds
	JitterStdDev float64
	// JitterMax is the worst jitter in seconds
	JitterMax float64
	// IsStable is true if FPSStdDev < 15% of mean AND JitterMean < 20% of interval
	IsStable bool
}

// CalculateFPSStats computes FPS and jitter statistics from frame timestamps.
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) *FPSStats {
	n := len(frameTimes)
	out := &FPSStats{FramesReceived: n, Duration: totalDuration}

	if n == 0 || totalDuration <= 0 {
		return out
	}

	out.FPSMean = float64(n) / totalDuration.Seconds()

	intervals := make([]float64, 0, n-1)
	instantaneous := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		intervals = append(intervals, interval)
		if interval > 0 {
			instantaneous = append(instantaneous, 1.0/interval)
		}
	}

	if len(instantaneous) == 0 {
		return out
	}

	out.FPSMin, out.FPSMax = instantaneous[0], instantaneous[0]
	var sumSquares float64
	for _, fps := range instantaneous {
		out.FPSMin = math.Min(out.FPSMin, fps)
		out.FPSMax = math.Max(out.FPSMax, fps)
		diff := fps - out.FPSMean
		sumSquares += diff * diff
	}
	out.FPSStdDev = math.Sqrt(sumSquares / float64(len(instantaneous)))

	expected := 1.0 / out.FPSMean
	var jitterSum float64
	jitters := make([]float64, len(intervals))
	for i, interval := range intervals {
		jitters[i] = math.Abs(interval - expected)
		jitterSum += jitters[i]
		out.JitterMax = math.Max(out.JitterMax, jitters[i])
	}
	out.JitterMean = jitterSum / float64(len(jitters))

	var jitterSquares float64
	for _, j := range jitters {
		diff := j - out.JitterMean
		jitterSquares += diff * diff
	}
	out.JitterStdDev = math.Sqrt(jitterSquares / float64(len(jitters)))

	fpsStable := out.FPSStdDev < out.FPSMean*fpsStabilityThreshold
	jitterStable := out.JitterMean < expected*jitterStabilityThreshold
	out.IsStable = fpsStable && jitterStable

	return out
}

// Rate returns count/elapsed per second, 0 for a non-positive elapsed.
func Rate(count int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(count) / elapsed.Seconds()
}
