// Package webcam captures frames from a local camera through OpenCV.
package webcam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/e7canasta/qrcam/internal/capture"
)

// Device is an open camera. It is used directly by single-loop demos that
// read into their own Mat, and by Webcam underneath.
type Device struct {
	cap   *gocv.VideoCapture
	index int
	res   capture.Resolution
}

// Open opens camera index and asks for the candidate resolution closest to
// targetPixels. The camera may settle on another size; Resolution reports
// what it actually delivers.
func Open(index int, candidates []capture.Resolution, targetPixels int) (*Device, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("webcam: open device %d: %w", index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("webcam: device %d not available", index)
	}

	if len(candidates) == 0 {
		candidates = capture.CommonResolutions
	}
	want, _ := capture.SelectResolution(candidates, targetPixels)
	vc.Set(gocv.VideoCaptureFrameWidth, float64(want.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(want.Height))

	// Continuous autofocus and auto exposure when the backend supports them.
	vc.Set(gocv.VideoCaptureAutoFocus, 1)
	vc.Set(gocv.VideoCaptureAutoExposure, 3)

	got := capture.Resolution{
		Width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
	}
	slog.Info("webcam: device opened",
		"device", index,
		"requested", want.String(),
		"actual", got.String(),
	)

	return &Device{cap: vc, index: index, res: got}, nil
}

// Read grabs the next BGR frame into dst. It returns false when the camera
// stopped delivering.
func (d *Device) Read(dst *gocv.Mat) bool {
	return d.cap.Read(dst) && !dst.Empty()
}

// Resolution is the size the camera delivers.
func (d *Device) Resolution() capture.Resolution { return d.res }

// Close releases the camera.
func (d *Device) Close() error { return d.cap.Close() }

// Config configures a Webcam source.
type Config struct {
	Device       int
	TargetPixels int
	FPS          float64
	Candidates   []capture.Resolution
	Reconnect    capture.ReconnectConfig
}

// Webcam is a capture.Source over a local camera. Read failures close the
// device and reopen it with exponential backoff.
type Webcam struct {
	cfg  Config
	name string

	runner capture.Runner

	mu   sync.RWMutex
	res  capture.Resolution
	open bool

	counters capture.Counters
}

var _ capture.Source = (*Webcam)(nil)

// New validates cfg and creates the source. The device is opened on Start.
func New(cfg Config) (*Webcam, error) {
	if cfg.Device < 0 {
		return nil, fmt.Errorf("%w: webcam device %d", capture.ErrInvalidConfig, cfg.Device)
	}
	if cfg.TargetPixels <= 0 {
		cfg.TargetPixels = capture.TargetGradient
	}
	if cfg.Reconnect.MaxRetries == 0 {
		cfg.Reconnect = capture.DefaultReconnectConfig()
	}
	return &Webcam{cfg: cfg, name: fmt.Sprintf("webcam:%d", cfg.Device)}, nil
}

// Start implements capture.Source.
func (w *Webcam) Start(ctx context.Context) (<-chan capture.Frame, error) {
	frames, err := w.runner.Start(ctx, 10, w.run)
	if err != nil {
		return nil, err
	}
	slog.Info("webcam: starting", "source", w.name, "target_pixels", w.cfg.TargetPixels)
	return frames, nil
}

func (w *Webcam) run(ctx context.Context, out chan<- capture.Frame) {
	err := capture.RunWithReconnect(ctx, w.name, func(ctx context.Context) error {
		return w.session(ctx, out)
	}, w.cfg.Reconnect, w.counters.Reconnects())

	if err != nil && ctx.Err() == nil {
		st := w.Stats()
		slog.Error("webcam: stopped after reconnection failure",
			"error", err,
			"source", w.name,
			"uptime", time.Since(w.runner.Started()),
			"frames_processed", st.FrameCount,
			"reconnects", st.Reconnects,
		)
	}
}

// session opens the device and reads until ctx ends (nil) or a read fails.
func (w *Webcam) session(ctx context.Context, out chan<- capture.Frame) error {
	dev, err := Open(w.cfg.Device, w.cfg.Candidates, w.cfg.TargetPixels)
	if err != nil {
		w.counters.RecordError(capture.Classify(err.Error(), ""))
		return err
	}
	defer dev.Close()

	w.mu.Lock()
	w.res, w.open = dev.Resolution(), true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.open = false
		w.mu.Unlock()
	}()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gray := gocv.NewMat()
	defer gray.Close()

	var throttle <-chan time.Time
	if w.cfg.FPS > 0 {
		t := time.NewTicker(time.Duration(float64(time.Second) / w.cfg.FPS))
		defer t.Stop()
		throttle = t.C
	}

	for {
		if throttle != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-throttle:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		if !dev.Read(&bgr) {
			w.counters.RecordError(capture.ErrCategoryDevice)
			return fmt.Errorf("webcam: %s: read failed", w.name)
		}
		gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
		w.counters.Emit(out, gray.ToBytes(), gray.Cols(), gray.Rows(), w.name)
	}
}

// Stop implements capture.Source.
func (w *Webcam) Stop() error {
	switch err := w.runner.Stop(capture.StopTimeout); {
	case errors.Is(err, capture.ErrNotStarted):
		return nil
	case err != nil:
		slog.Warn("webcam: stop timeout exceeded, capture goroutine still running", "source", w.name)
		return fmt.Errorf("webcam: %w", err)
	}

	st := w.Stats()
	slog.Info("webcam: stopped",
		"frames_captured", st.FrameCount,
		"frames_dropped", st.FramesDropped,
		"reconnects", st.Reconnects,
	)
	return nil
}

// Stats implements capture.Source.
func (w *Webcam) Stats() capture.Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.counters.Snapshot(w.runner.Started(), w.cfg.FPS, w.name, w.res, w.open)
}
