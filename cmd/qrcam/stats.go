package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/e7canasta/qrcam/internal/activity"
	"github.com/e7canasta/qrcam/internal/capture"
	"github.com/e7canasta/qrcam/internal/qr"
	"github.com/e7canasta/qrcam/internal/resultbus"
)

// reportStats periodically logs camera, hand-off and event bus counters.
func reportStats(ctx context.Context, interval time.Duration, src capture.Source, act *activity.Activity, events *resultbus.Bus[qr.Event]) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	startTime := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cam := src.Stats()
			st := act.Stats()
			slog.Info("qrcam stats",
				"uptime", time.Since(startTime).Round(time.Second),
				"state", st.State,
				"resolution", cam.Resolution,
				"fps_real", cam.FPSReal,
				"camera_drop_rate", cam.DropRate,
				"reconnects", cam.Reconnects,
				"processed", st.Processed,
				"mailbox_dropped", st.Mailbox.Dropped,
				"swaps", st.Handoff.Swaps,
				"swaps_skipped", st.Handoff.Skipped,
				"convert_ms", st.ConvertMS,
				"detector_ms", st.DetectorMS,
				"camera_error", st.CameraError,
				"event_drop_rate", resultbus.DropRate(events.Stats()),
			)
		}
	}
}
