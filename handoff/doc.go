// Package handoff implements the double-buffered frame hand-off between a
// processing goroutine and a render goroutine.
//
// # Philosophy
//
// "Never block the camera. A stale frame beats a stalled pipeline."
//
// Camera processing rate and display refresh rate are decoupled and unequal.
// Blocking either side on the other stalls the camera pipeline or makes the
// display stutter, so DoubleBuffer trades occasional staleness for strict
// non-blocking behavior on the processing side.
//
// # Design
//
//   - Two owned buffer slots and one atomic "which slot is front" index
//   - Write fills the work slot, then TryLock + flip index (never copies pixels)
//   - Contended swap is skipped, not retried: the next Write overwrites work
//   - Read holds the swap lock while viewing front, so a swap can never
//     hand the buffer being read back to the writer
//
// # Basic Usage
//
// Processing side:
//
//	bitmaps := handoff.NewFunc(func() *image.RGBA {
//	    return image.NewRGBA(image.Rect(0, 0, 640, 480))
//	})
//
//	for frame := range frames {
//	    bitmaps.Write(func(work *image.RGBA) error {
//	        return colorize(frame, work) // exclusive access to work
//	    })
//	}
//
// Render side:
//
//	bitmaps.Read(func(front *image.RGBA) {
//	    display.Present(front)
//	})
//
// Derived results (detections, poses) use ResultList, a briefly-locked slice
// that both sides lock for the duration of a copy or a draw.
//
// # Monitoring
//
//	stats := bitmaps.Stats()
//	if stats.Skipped > stats.Swaps {
//	    slog.Warn("handoff: renderer holds front too long", "skipped", stats.Skipped)
//	}
package handoff
