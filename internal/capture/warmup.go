package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/e7canasta/qrcam/internal/stats"
)

// Warmup consumes frames for duration and measures FPS stability. Frames
// read during warm-up are discarded. It fails when the stream closes, fewer
// than two frames arrive or the FPS is unstable.
func Warmup(ctx context.Context, frames <-chan Frame, duration time.Duration) (*stats.FPSStats, error) {
	slog.Info("capture: starting warm-up",
		"duration", duration,
		"reason", "measure real FPS and stabilize the camera",
	)

	start := time.Now()
	times := make([]time.Time, 0, 100)

	warmupCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

collect:
	for {
		select {
		case <-warmupCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			break collect

		case frame, ok := <-frames:
			if !ok {
				return nil, fmt.Errorf("capture: stream closed during warm-up")
			}
			times = append(times, frame.Timestamp)
			slog.Debug("capture: warm-up frame received",
				"seq", frame.Seq,
				"frames_collected", len(times),
			)
		}
	}

	elapsed := time.Since(start)
	if len(times) < 2 {
		return nil, fmt.Errorf("capture: not enough frames during warm-up (got %d, need at least 2)", len(times))
	}

	s := stats.CalculateFPSStats(times, elapsed)
	slog.Info("capture: warm-up complete",
		"frames", s.FramesReceived,
		"duration", s.Duration,
		"fps_mean", fmt.Sprintf("%.2f", s.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", s.FPSStdDev),
		"fps_range", fmt.Sprintf("%.1f-%.1f", s.FPSMin, s.FPSMax),
		"jitter_mean", fmt.Sprintf("%.3fs", s.JitterMean),
		"stable", s.IsStable,
	)

	if !s.IsStable {
		return s, fmt.Errorf("capture: FPS unstable (mean=%.2f Hz, stddev=%.2f, jitter=%.3fs)",
			s.FPSMean, s.FPSStdDev, s.JitterMean)
	}
	return s, nil
}
