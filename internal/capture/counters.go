package capture

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Counters holds the atomic statistics shared by every Source
// implementation and performs the non-blocking frame hand-off.
type Counters struct {
	frames      atomic.Uint64
	dropped     atomic.Uint64
	bytes       atomic.Uint64
	reconnects  atomic.Uint32
	lastFrameAt atomic.Int64 // unix nanos
	errs        [numCategories]atomic.Uint64
}

// Emit stamps data as the next frame and sends it on out without blocking.
// It returns false when the channel was full and the frame was dropped.
// data must not be reused by the caller after Emit.
func (c *Counters) Emit(out chan<- Frame, data []byte, width, height int, source string) (Frame, bool) {
	seq := c.frames.Add(1)
	c.bytes.Add(uint64(len(data)))
	now := time.Now()
	c.lastFrameAt.Store(now.UnixNano())

	frame := Frame{
		Seq:       seq,
		Timestamp: now,
		Width:     width,
		Height:    height,
		Data:      data,
		Source:    source,
		TraceID:   uuid.New().String(),
	}

	select {
	case out <- frame:
		return frame, true
	default:
		c.dropped.Add(1)
		slog.Debug("capture: dropping frame, channel full",
			"seq", frame.Seq,
			"source", source,
			"trace_id", frame.TraceID,
		)
		return frame, false
	}
}

// RecordError counts an error in its category.
func (c *Counters) RecordError(cat ErrorCategory) {
	if cat < 0 || cat >= numCategories {
		cat = ErrCategoryUnknown
	}
	c.errs[cat].Add(1)
}

// Reconnects returns the counter incremented by RunWithReconnect.
func (c *Counters) Reconnects() *atomic.Uint32 { return &c.reconnects }

// Snapshot builds a Stats value. started is the zero time when the source
// never ran.
func (c *Counters) Snapshot(started time.Time, fpsTarget float64, source string, res Resolution, connected bool) Stats {
	frames := c.frames.Load()
	dropped := c.dropped.Load()

	var fpsReal float64
	if !started.IsZero() {
		if up := time.Since(started).Seconds(); up > 0 {
			fpsReal = float64(frames) / up
		}
	}

	// Emit counts every frame, delivered or dropped.
	var dropRate float64
	if frames > 0 {
		dropRate = float64(dropped) / float64(frames) * 100.0
	}

	var latencyMS int64
	if last := c.lastFrameAt.Load(); last != 0 {
		latencyMS = time.Since(time.Unix(0, last)).Milliseconds()
	}

	return Stats{
		FrameCount:       frames,
		FramesDropped:    dropped,
		DropRate:         dropRate,
		FPSTarget:        fpsTarget,
		FPSReal:          fpsReal,
		LatencyMS:        latencyMS,
		Source:           source,
		Resolution:       res.String(),
		Reconnects:       c.reconnects.Load(),
		BytesRead:        c.bytes.Load(),
		IsConnected:      connected,
		ErrorsNetwork:    c.errs[ErrCategoryNetwork].Load(),
		ErrorsCodec:      c.errs[ErrCategoryCodec].Load(),
		ErrorsPermission: c.errs[ErrCategoryPermission].Load(),
		ErrorsDevice:     c.errs[ErrCategoryDevice].Load(),
		ErrorsUnknown:    c.errs[ErrCategoryUnknown].Load(),
	}
}
