// Package capture acquires gray frames from cameras.
//
// Every Source follows the same contract:
//   - Start returns immediately with a channel that stays open until Stop.
//   - Frames are sent non-blocking; when the consumer is behind the frame is
//     dropped and counted. A stale frame beats a stalled camera.
//   - Stop is idempotent and Stats is safe from any goroutine.
//
// The OpenCV webcam lives in capture/webcam and the GStreamer pipeline in
// capture/gstream so this package builds without native libraries.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// Frame is one captured image in GRAY8 (one byte per pixel, row-major,
// stride = Width).
type Frame struct {
	// Seq is the monotonic sequence number, starting at 1
	Seq uint64
	// Timestamp is when the frame left the camera backend
	Timestamp time.Time
	Width     int
	Height    int
	Data      []byte
	// Source identifies the camera (e.g. "webcam:0", "synthetic")
	Source string
	// TraceID follows the frame through processing and published events
	TraceID string
}

// Gray returns an image view over Data without copying.
func (f Frame) Gray() *image.Gray {
	return &image.Gray{
		Pix:    f.Data,
		Stride: f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Stats is a snapshot of source counters.
type Stats struct {
	FrameCount    uint64
	FramesDropped uint64
	// DropRate is the percentage of frames dropped (0-100)
	DropRate    float64
	FPSTarget   float64
	FPSReal     float64
	LatencyMS   int64 // time since the last frame
	Source      string
	Resolution  string
	Reconnects  uint32
	BytesRead   uint64
	IsConnected bool

	ErrorsNetwork    uint64
	ErrorsCodec      uint64
	ErrorsPermission uint64
	ErrorsDevice     uint64
	ErrorsUnknown    uint64
}

// Source is a camera.
type Source interface {
	Start(ctx context.Context) (<-chan Frame, error)
	Stop() error
	Stats() Stats
}

var (
	ErrAlreadyStarted = errors.New("capture: source already started")
	ErrNotStarted     = errors.New("capture: source not started")
	ErrStopTimeout    = errors.New("capture: stop timeout, capture goroutine still running")
	ErrInvalidConfig  = errors.New("capture: invalid configuration")
)

// Resolution is a frame size.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) Pixels() int { return r.Width * r.Height }

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

// Target pixel counts used by the demos.
const (
	TargetGradient = 640 * 480
	TargetQR       = 1024 * 768
)

// CommonResolutions are tried against webcams that cannot list their modes.
var CommonResolutions = []Resolution{
	{320, 240},
	{640, 480},
	{800, 600},
	{1024, 768},
	{1280, 720},
	{1280, 960},
	{1920, 1080},
}

// SelectResolution picks the candidate whose pixel count is closest to
// targetPixels. Ties keep the earlier candidate. ok is false when there are
// no candidates.
func SelectResolution(candidates []Resolution, targetPixels int) (best Resolution, ok bool) {
	bestDiff := -1
	for _, c := range candidates {
		diff := c.Pixels() - targetPixels
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = c, diff
		}
	}
	return best, bestDiff >= 0
}
