package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"
)

// SyntheticConfig configures a generated camera.
type SyntheticConfig struct {
	Width  int
	Height int
	FPS    int
	Name   string
	// Sprite, when set, is pasted onto the moving background and bounces
	// around the frame (a rendered QR code makes a camera-free demo).
	Sprite *image.Gray
}

// Synthetic generates frames at a fixed rate without any hardware.
type Synthetic struct {
	cfg SyntheticConfig

	runner   Runner
	counters Counters
}

var _ Source = (*Synthetic)(nil)

// NewSynthetic validates cfg and creates the source.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: synthetic size %dx%d", ErrInvalidConfig, cfg.Width, cfg.Height)
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("%w: synthetic fps %d", ErrInvalidConfig, cfg.FPS)
	}
	if cfg.Name == "" {
		cfg.Name = "synthetic"
	}
	return &Synthetic{cfg: cfg}, nil
}

// Start implements Source.
func (s *Synthetic) Start(ctx context.Context) (<-chan Frame, error) {
	frames, err := s.runner.Start(ctx, 10, s.generate)
	if err != nil {
		return nil, err
	}
	slog.Info("capture: synthetic source starting",
		"resolution", s.resolution().String(),
		"fps", s.cfg.FPS,
		"source", s.cfg.Name,
	)
	return frames, nil
}

func (s *Synthetic) generate(ctx context.Context, out chan<- Frame) {
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()

	var tick int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data := make([]byte, s.cfg.Width*s.cfg.Height)
			s.paint(data, tick)
			s.counters.Emit(out, data, s.cfg.Width, s.cfg.Height, s.cfg.Name)
			tick++
		}
	}
}

// paint draws a diagonal ramp scrolling with t and the sprite bouncing on it.
func (s *Synthetic) paint(data []byte, t int) {
	w, h := s.cfg.Width, s.cfg.Height
	for y := 0; y < h; y++ {
		row := data[y*w : (y+1)*w]
		for x := range row {
			row[x] = uint8((x + y + 4*t) & 0xFF)
		}
	}

	sp := s.cfg.Sprite
	if sp == nil {
		return
	}
	sw, sh := sp.Rect.Dx(), sp.Rect.Dy()
	ox := bounce(3*t, w-sw)
	oy := bounce(2*t, h-sh)
	for y := 0; y < sh && oy+y < h; y++ {
		if oy+y < 0 {
			continue
		}
		src := sp.Pix[y*sp.Stride : y*sp.Stride+sw]
		for x, v := range src {
			if px := ox + x; px >= 0 && px < w {
				data[(oy+y)*w+px] = v
			}
		}
	}
}

// bounce maps a monotonic position onto [0, span] reflecting at both ends.
func bounce(pos, span int) int {
	if span <= 0 {
		return 0
	}
	period := 2 * span
	p := pos % period
	if p > span {
		return period - p
	}
	return p
}

func (s *Synthetic) resolution() Resolution {
	return Resolution{Width: s.cfg.Width, Height: s.cfg.Height}
}

// Stop implements Source.
func (s *Synthetic) Stop() error {
	switch err := s.runner.Stop(StopTimeout); {
	case errors.Is(err, ErrNotStarted):
		return nil
	case err != nil:
		return fmt.Errorf("capture: synthetic: %w", err)
	}

	started := s.runner.Started()
	st := s.counters.Snapshot(started, float64(s.cfg.FPS), s.cfg.Name, s.resolution(), false)
	slog.Info("capture: synthetic source stopped",
		"frames_emitted", st.FrameCount,
		"frames_dropped", st.FramesDropped,
		"duration", time.Since(started),
	)
	return nil
}

// Stats implements Source.
func (s *Synthetic) Stats() Stats {
	return s.counters.Snapshot(s.runner.Started(), float64(s.cfg.FPS), s.cfg.Name, s.resolution(), s.runner.Running())
}
