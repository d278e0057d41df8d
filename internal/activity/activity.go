// Package activity runs one camera visualization: frames flow from a capture
// source through a processor into a double-buffered display bitmap that the
// render loop presents with overlays.
//
//	source ─► mailbox ─► processing goroutine ─► DoubleBuffer ─► render loop
//	                       (Process, Render)       (try-lock)     (Present, Draw)
//
// The render loop runs on the caller's goroutine (HighGUI wants the main
// thread). Processing never waits for rendering: a swap that loses the
// try-lock is skipped and the display keeps the previous bitmap.
package activity

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/e7canasta/qrcam/handoff"
	"github.com/e7canasta/qrcam/internal/capture"
	"github.com/e7canasta/qrcam/internal/lifecycle"
	"github.com/e7canasta/qrcam/internal/mailbox"
	"github.com/e7canasta/qrcam/internal/raster"
	"github.com/e7canasta/qrcam/internal/render"
	"github.com/e7canasta/qrcam/internal/stats"
)

// BitmapMode selects how the processing goroutine hands bitmaps to the
// renderer.
type BitmapMode int

const (
	// BitmapUnsafe renders into the single displayed bitmap. The renderer
	// waits for the conversion to finish instead of seeing a torn frame.
	BitmapUnsafe BitmapMode = iota
	// BitmapDoubleBuffer renders into a work bitmap and swaps it in.
	BitmapDoubleBuffer
)

func (m BitmapMode) String() string {
	switch m {
	case BitmapUnsafe:
		return "unsafe"
	case BitmapDoubleBuffer:
		return "double_buffer"
	default:
		return fmt.Sprintf("bitmap_mode(%d)", int(m))
	}
}

// ParseBitmapMode maps a configuration value to a BitmapMode.
func ParseBitmapMode(s string) (BitmapMode, error) {
	switch s {
	case "unsafe":
		return BitmapUnsafe, nil
	case "double_buffer", "":
		return BitmapDoubleBuffer, nil
	default:
		return 0, fmt.Errorf("activity: unknown bitmap mode %q", s)
	}
}

// Processor is the per-demo work on each frame.
//
// Reshape, Process and Render run on the processing goroutine. Draw runs on
// the render goroutine, so anything it shares with Process needs a lock.
type Processor interface {
	// Reshape is called before the first frame and on every resolution
	// change.
	Reshape(width, height int)
	Process(frame capture.Frame) error
	// Render paints the display bitmap for the last processed frame.
	Render(gray *image.Gray, dst *image.RGBA)
	Draw(c render.Canvas)
}

// Config configures an Activity.
type Config struct {
	Name       string
	Mode       BitmapMode
	DisplayFPS float64
	// Warmup, when positive, measures the camera frame rate for this long
	// on the first start. Frames read during warm-up are not processed.
	// It runs in the background: Start does not wait for it.
	Warmup time.Duration
}

// Stats is a snapshot of activity counters.
type Stats struct {
	State          string
	Processed      uint64
	ProcessErrors  uint64
	ConvertMS      float64
	DetectorMS     float64 // 0 for processors without a detector
	WarmingUp      bool
	// CameraError is set when the source stopped delivering frames while
	// the activity was running (reconnection gave up, end of stream).
	CameraError    string
	Mailbox        mailbox.Stats
	Handoff        handoff.Stats
	Width, Height  int
	RenderedFrames uint64
}

// Activity owns the capture source, the processing goroutine and the display
// bitmaps of one demo.
type Activity struct {
	cfg       Config
	source    capture.Source
	processor Processor
	display   render.Display
	machine   *lifecycle.Machine

	frames *mailbox.Mailbox[capture.Frame]
	bitmap *handoff.DoubleBuffer[*image.RGBA]
	view   *image.RGBA // render goroutine copy of the front bitmap

	// periodConvert averages the frame to bitmap conversion time (ms).
	periodConvert *stats.MovingAverage

	mu        sync.Mutex // guards everything below
	parent    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	warmedUp  bool
	warming   bool
	cameraErr string
	width     int
	height    int
	processed uint64
	failed    uint64
	rendered  uint64
}

// detectorTimer is implemented by processors that time a detector.
type detectorTimer interface {
	DetectorMS() float64
}

// New wires an activity. Nothing runs until Start.
func New(cfg Config, source capture.Source, p Processor, display render.Display) *Activity {
	if cfg.Name == "" {
		cfg.Name = "activity"
	}
	if cfg.DisplayFPS <= 0 {
		cfg.DisplayFPS = 30
	}

	a := &Activity{
		cfg:           cfg,
		source:        source,
		processor:     p,
		display:       display,
		machine:       lifecycle.New(cfg.Name),
		frames:        mailbox.New[capture.Frame](),
		bitmap:        handoff.NewFunc(func() *image.RGBA { return image.NewRGBA(image.Rect(0, 0, 1, 1)) }),
		view:          image.NewRGBA(image.Rect(0, 0, 1, 1)),
		periodConvert: stats.NewMovingAverage(stats.DefaultDecay),
	}

	a.machine.On(lifecycle.Start, func(_, _ lifecycle.State) error { return a.startCamera() })
	a.machine.On(lifecycle.Resume, func(_, _ lifecycle.State) error { return a.startCamera() })
	a.machine.On(lifecycle.Pause, func(_, _ lifecycle.State) error { return a.stopCamera() })
	a.machine.On(lifecycle.Destroy, func(from, _ lifecycle.State) error {
		if from == lifecycle.Running {
			if err := a.stopCamera(); err != nil {
				slog.Warn("activity: stop on destroy failed", "activity", a.cfg.Name, "error", err)
			}
		}
		a.frames.Close()
		return nil
	})

	return a
}

// State returns the lifecycle state.
func (a *Activity) State() lifecycle.State { return a.machine.State() }

// Start opens the camera and begins processing. ctx bounds the capture and
// processing goroutines for the whole life of the activity.
func (a *Activity) Start(ctx context.Context) error {
	a.mu.Lock()
	a.parent = ctx
	a.mu.Unlock()
	return a.machine.Fire(lifecycle.Start)
}

// Pause stops the camera and processing. The last bitmap stays on display.
func (a *Activity) Pause() error { return a.machine.Fire(lifecycle.Pause) }

// Resume restarts the camera after Pause.
func (a *Activity) Resume() error { return a.machine.Fire(lifecycle.Resume) }

// Destroy stops everything. The activity cannot be restarted.
func (a *Activity) Destroy() error { return a.machine.Fire(lifecycle.Destroy) }

func (a *Activity) startCamera() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	parent := a.parent
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	frames, err := a.source.Start(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("activity: start camera: %w", err)
	}
	a.cancel = cancel
	a.cameraErr = ""
	a.warming = a.cfg.Warmup > 0 && !a.warmedUp

	// A frame left in the mailbox by Pause is from before the gap.
	a.frames.Reopen()

	a.wg.Add(2)
	go a.pump(ctx, frames, a.warming)
	go a.processLoop(ctx)

	slog.Info("activity: camera started",
		"activity", a.cfg.Name,
		"bitmap_mode", a.cfg.Mode.String(),
		"warmup", a.warming,
	)
	return nil
}

// warmup logs the measured frame rate. An unstable stream is only a warning.
// A warm-up cut short by Pause is repeated on the next Resume.
func (a *Activity) warmup(ctx context.Context, frames <-chan capture.Frame) {
	st, err := capture.Warmup(ctx, frames, a.cfg.Warmup)

	a.mu.Lock()
	a.warming = false
	if ctx.Err() == nil {
		a.warmedUp = true
	}
	a.mu.Unlock()

	switch {
	case ctx.Err() != nil:
		return
	case st == nil:
		slog.Error("activity: camera warm-up failed", "activity", a.cfg.Name, "error", err)
	case err != nil:
		slog.Warn("activity: camera stream unstable",
			"activity", a.cfg.Name,
			"fps_mean", st.FPSMean,
			"fps_stddev", st.FPSStdDev,
			"jitter_mean", st.JitterMean,
		)
	default:
		slog.Info("activity: camera warmed up",
			"activity", a.cfg.Name,
			"fps_mean", st.FPSMean,
			"frames", st.FramesReceived,
		)
	}
}

func (a *Activity) stopCamera() error {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := a.source.Stop()
	a.wg.Wait()

	a.mu.Lock()
	processed, failed := a.processed, a.failed
	a.mu.Unlock()
	slog.Info("activity: camera stopped",
		"activity", a.cfg.Name,
		"processed", processed,
		"failed", failed,
		"convert_ms", a.periodConvert.Average(),
	)
	if err != nil {
		return fmt.Errorf("activity: stop camera: %w", err)
	}
	return nil
}

// pump moves frames from the source into the latest-only mailbox, after the
// warm-up when one is due.
func (a *Activity) pump(ctx context.Context, frames <-chan capture.Frame, warm bool) {
	defer a.wg.Done()
	if warm {
		a.warmup(ctx, frames)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				if ctx.Err() == nil {
					a.cameraFailed(errors.New("camera stream ended"))
				}
				return
			}
			a.frames.Publish(f)
		}
	}
}

// cameraFailed records a source that closed its stream on its own. The
// activity stays Running; Pause and Resume restart the source.
func (a *Activity) cameraFailed(err error) {
	a.mu.Lock()
	a.cameraErr = err.Error()
	a.mu.Unlock()

	st := a.source.Stats()
	slog.Error("activity: camera stopped delivering frames",
		"activity", a.cfg.Name,
		"error", err,
		"source", st.Source,
		"reconnects", st.Reconnects,
	)
}

func (a *Activity) processLoop(ctx context.Context) {
	defer a.wg.Done()
	for {
		f, ok := a.frames.Take(ctx)
		if !ok {
			return
		}
		a.processFrame(f)
	}
}

// processFrame runs one processing cycle. Failures drop the frame.
func (a *Activity) processFrame(f capture.Frame) {
	a.mu.Lock()
	resized := f.Width != a.width || f.Height != a.height
	if resized {
		a.width, a.height = f.Width, f.Height
	}
	a.mu.Unlock()

	if resized {
		a.onResolutionChange(f.Width, f.Height)
	}

	if err := a.processor.Process(f); err != nil {
		a.mu.Lock()
		a.failed++
		a.mu.Unlock()
		slog.Warn("activity: frame dropped",
			"activity", a.cfg.Name,
			"seq", f.Seq,
			"trace_id", f.TraceID,
			"error", err,
		)
		return
	}

	gray := f.Gray()
	a.periodConvert.Measure(func() { a.renderBitmap(gray) })

	a.mu.Lock()
	a.processed++
	a.mu.Unlock()
}

func (a *Activity) onResolutionChange(w, h int) {
	slog.Info("activity: camera resolution", "activity", a.cfg.Name, "width", w, "height", h)
	a.processor.Reshape(w, h)
	a.bitmap.Reconfigure(func(b *image.RGBA) { raster.ReshapeRGBA(b, w, h) })
}

// renderBitmap converts the processed frame into the display bitmap.
// An unknown mode is a programming error and panics.
func (a *Activity) renderBitmap(gray *image.Gray) {
	switch a.cfg.Mode {
	case BitmapUnsafe:
		a.bitmap.Read(func(front *image.RGBA) {
			a.processor.Render(gray, front)
		})
	case BitmapDoubleBuffer:
		_, _ = a.bitmap.Write(func(work *image.RGBA) error {
			a.processor.Render(gray, work)
			return nil
		})
	default:
		panic("mode not supported")
	}
}

// RenderOnce presents the current front bitmap with overlays and returns the
// key pressed.
func (a *Activity) RenderOnce() (int, error) {
	a.bitmap.Read(func(front *image.RGBA) {
		if !raster.SameSize(a.view.Rect, front.Rect.Dx(), front.Rect.Dy()) {
			raster.ReshapeRGBA(a.view, front.Rect.Dx(), front.Rect.Dy())
		}
		copy(a.view.Pix, front.Pix)
	})

	key, err := a.display.Present(a.view, a.drawFrame)
	if err != nil {
		return key, err
	}

	a.mu.Lock()
	a.rendered++
	a.mu.Unlock()
	return key, nil
}

func (a *Activity) drawFrame(c render.Canvas) {
	w, h := a.view.Rect.Dx(), a.view.Rect.Dy()
	c.DrawText(fmt.Sprintf("%d x %d Convert: %4.1f (ms)", w, h, a.periodConvert.Average()),
		image.Pt(0, 120), render.InfoText, render.TextScale)
	a.processor.Draw(c)
}

// Run renders at the display rate until ctx is done or a quit key (ESC, q)
// is pressed. A closed display ends the loop without error.
func (a *Activity) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / a.cfg.DisplayFPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		key, err := a.RenderOnce()
		if errors.Is(err, render.ErrClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("activity: render: %w", err)
		}
		if render.IsQuit(key) {
			slog.Info("activity: quit requested", "activity", a.cfg.Name, "key", key)
			return nil
		}
	}
}

// Stats returns a snapshot of the activity counters.
func (a *Activity) Stats() Stats {
	// The machine lock is taken before a.mu during transitions.
	state := a.machine.State()

	var detectorMS float64
	if dt, ok := a.processor.(detectorTimer); ok {
		detectorMS = dt.DetectorMS()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return Stats{
		State:          state.String(),
		Processed:      a.processed,
		ProcessErrors:  a.failed,
		ConvertMS:      a.periodConvert.Average(),
		DetectorMS:     detectorMS,
		WarmingUp:      a.warming,
		CameraError:    a.cameraErr,
		Mailbox:        a.frames.Stats(),
		Handoff:        a.bitmap.Stats(),
		Width:          a.width,
		Height:         a.height,
		RenderedFrames: a.rendered,
	}
}
