// Package gstream captures frames through a GStreamer pipeline ending in an
// appsink. Any source GStreamer can open works: V4L2 cameras, RTSP, files,
// videotestsrc.
package gstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/qrcam/internal/capture"
)

// Config configures a Stream.
type Config struct {
	// Source is a camera reference or launch fragment, see
	// capture.SourceDescription.
	Source     string
	Resolution capture.Resolution
	FPS        float64
	Name       string
	Reconnect  capture.ReconnectConfig
}

// Stream is a capture.Source backed by GStreamer. Every connection builds a
// fresh pipeline; bus errors tear it down and reconnect with backoff.
type Stream struct {
	cfg    Config
	launch string

	runner capture.Runner

	mu       sync.RWMutex
	pipeline *gst.Pipeline

	counters capture.Counters
}

var _ capture.Source = (*Stream)(nil)

// New validates cfg, checks that GStreamer is usable and builds the launch
// line. The pipeline is created on Start.
func New(cfg Config) (*Stream, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("%w: gstreamer source is required", capture.ErrInvalidConfig)
	}
	if cfg.Resolution.Width <= 0 || cfg.Resolution.Height <= 0 {
		return nil, fmt.Errorf("%w: resolution %v", capture.ErrInvalidConfig, cfg.Resolution)
	}
	if cfg.FPS < 0 || cfg.FPS > 120 {
		return nil, fmt.Errorf("%w: fps %.2f (must be 0-120)", capture.ErrInvalidConfig, cfg.FPS)
	}
	if cfg.Name == "" {
		cfg.Name = "gst"
	}
	if cfg.Reconnect.MaxRetries == 0 {
		cfg.Reconnect = capture.DefaultReconnectConfig()
	}
	if err := checkAvailable(); err != nil {
		return nil, fmt.Errorf("gstream: GStreamer not available: %w", err)
	}

	s := &Stream{
		cfg:    cfg,
		launch: capture.GstLaunch(capture.SourceDescription(cfg.Source), cfg.Resolution, cfg.FPS),
	}
	slog.Info("gstream: stream created",
		"source", cfg.Source,
		"resolution", cfg.Resolution.String(),
		"target_fps", cfg.FPS,
		"launch", s.launch,
	)
	return s, nil
}

// Start implements capture.Source.
func (s *Stream) Start(ctx context.Context) (<-chan capture.Frame, error) {
	frames, err := s.runner.Start(ctx, 10, s.run)
	if err != nil {
		return nil, err
	}
	slog.Info("gstream: stream started",
		"source", s.cfg.Name,
		"note", "frames arrive once the pipeline reaches PLAYING",
	)
	return frames, nil
}

func (s *Stream) run(ctx context.Context, out chan<- capture.Frame) {
	err := capture.RunWithReconnect(ctx, s.cfg.Name, func(ctx context.Context) error {
		return s.session(ctx, out)
	}, s.cfg.Reconnect, s.counters.Reconnects())

	if err != nil && ctx.Err() == nil {
		st := s.Stats()
		slog.Error("gstream: pipeline stopped after reconnection failure",
			"error", err,
			"source", s.cfg.Source,
			"uptime", time.Since(s.runner.Started()),
			"frames_processed", st.FrameCount,
			"reconnects", st.Reconnects,
		)
	}
}

// session runs one pipeline until ctx ends (nil) or the bus reports an
// error or end of stream.
func (s *Stream) session(ctx context.Context, out chan<- capture.Frame) error {
	pipeline, err := gst.NewPipelineFromString(s.launch)
	if err != nil {
		s.counters.RecordError(capture.Classify(err.Error(), ""))
		return fmt.Errorf("gstream: parse pipeline: %w", err)
	}
	defer func() {
		if err := pipeline.SetState(gst.StateNull); err != nil {
			slog.Error("gstream: failed to stop pipeline", "error", err)
		}
		s.mu.Lock()
		s.pipeline = nil
		s.mu.Unlock()
	}()

	elem, err := pipeline.GetElementByName(capture.SinkName)
	if err != nil {
		return fmt.Errorf("gstream: appsink not found: %w", err)
	}
	sink := app.SinkFromElement(elem)

	w, h := s.cfg.Resolution.Width, s.cfg.Resolution.Height
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return s.onNewSample(sink, out, w, h)
		},
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		s.counters.RecordError(capture.ErrCategoryUnknown)
		return fmt.Errorf("gstream: failed to start pipeline: %w", err)
	}

	s.mu.Lock()
	s.pipeline = pipeline
	s.mu.Unlock()

	return s.monitor(ctx, pipeline)
}

// onNewSample copies the mapped buffer (GStreamer reuses it) and hands the
// frame on without blocking. A bad sample is skipped, never fatal.
func (s *Stream) onNewSample(sink *app.Sink, out chan<- capture.Frame, w, h int) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("gstream: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gstream: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data, err := capture.PackRows(mapInfo.Bytes(), w, h)
	buffer.Unmap()
	if err != nil {
		slog.Warn("gstream: unexpected buffer layout, skipping frame", "error", err)
		return gst.FlowOK
	}

	s.counters.Emit(out, data, w, h, s.cfg.Name)
	return gst.FlowOK
}

func (s *Stream) monitor(ctx context.Context, pipeline *gst.Pipeline) error {
	bus := pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("gstream: context cancelled, stopping pipeline monitor")
			return nil
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("gstream: end of stream received",
				"source", s.cfg.Source,
				"uptime", time.Since(s.runner.Started()),
			)
			return fmt.Errorf("gstream: end of stream")

		case gst.MessageError:
			gerr := msg.ParseError()
			category := capture.Classify(gerr.Error(), gerr.DebugString())
			s.counters.RecordError(category)

			slog.Error("gstream: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
				"source", s.cfg.Source,
				"uptime", time.Since(s.runner.Started()),
			)
			return fmt.Errorf("gstream: pipeline error [%s]: %s", category, gerr.Error())

		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				old, new := msg.ParseStateChanged()
				slog.Debug("gstream: pipeline state changed", "from", old, "to", new)
			}
		}
	}
}

// Stop implements capture.Source.
func (s *Stream) Stop() error {
	switch err := s.runner.Stop(capture.StopTimeout); {
	case errors.Is(err, capture.ErrNotStarted):
		return nil
	case err != nil:
		slog.Warn("gstream: stop timeout exceeded, pipeline goroutine still running", "source", s.cfg.Name)
		return fmt.Errorf("gstream: %w", err)
	}

	st := s.Stats()
	slog.Info("gstream: stream stopped",
		"frames_captured", st.FrameCount,
		"reconnects", st.Reconnects,
		"uptime", time.Since(s.runner.Started()),
	)
	return nil
}

// Stats implements capture.Source.
func (s *Stream) Stats() capture.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.counters.Snapshot(s.runner.Started(), s.cfg.FPS, s.cfg.Name, s.cfg.Resolution, s.pipeline != nil)
}

func checkAvailable() error {
	gst.Init(nil)

	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("GStreamer not installed: %w", err)
	}
	elem.SetState(gst.StateNull)
	return nil
}
