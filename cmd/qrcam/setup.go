package main

import (
	"fmt"
	"image"

	"github.com/e7canasta/qrcam/internal/activity"
	"github.com/e7canasta/qrcam/internal/capture"
	"github.com/e7canasta/qrcam/internal/capture/gstream"
	"github.com/e7canasta/qrcam/internal/capture/webcam"
	"github.com/e7canasta/qrcam/internal/config"
	"github.com/e7canasta/qrcam/internal/qr"
	"github.com/e7canasta/qrcam/internal/qr/qrcv"
	"github.com/e7canasta/qrcam/internal/resultbus"
)

// targetPixels is the configured capture size, or the activity default:
// gradient works on 640x480, QR detection wants 1024x768.
func targetPixels(name string, cfg *config.Config) int {
	if cfg.Camera.TargetResolution > 0 {
		return cfg.Camera.TargetResolution
	}
	if name == "gradient" {
		return capture.TargetGradient
	}
	return capture.TargetQR
}

func newProcessor(name string, cfg *config.Config, events *resultbus.Bus[qr.Event]) (activity.Processor, func(), error) {
	switch name {
	case "gradient":
		return activity.NewGradientProcessor(), func() {}, nil
	case "qrcode":
		det := qrcv.NewDetector()
		return activity.NewQrProcessor(det, events), func() { det.Close() }, nil
	case "pose":
		det := qrcv.NewDetector()
		p := activity.NewPoseProcessor(det, cfg.QR.MarkerWidth, cfg.QR.FieldOfViewDeg)
		return p, func() { det.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown activity %q (must be gradient, qrcode or pose)", name)
	}
}

func newSource(cfg *config.Config, target int) (capture.Source, error) {
	reconnect := capture.DefaultReconnectConfig()
	reconnect.MaxRetries = cfg.Camera.MaxReconnectAttempts
	res, _ := capture.SelectResolution(capture.CommonResolutions, target)

	switch cfg.Camera.Source {
	case config.SourceWebcam:
		cam, err := webcam.New(webcam.Config{
			Device:       cfg.Camera.Device,
			TargetPixels: target,
			FPS:          cfg.Camera.FPS,
			Reconnect:    reconnect,
		})
		if err != nil {
			return nil, err
		}
		return cam, nil

	case config.SourceGStreamer:
		stream, err := gstream.New(gstream.Config{
			Source:     cfg.Camera.Pipeline,
			Resolution: res,
			FPS:        cfg.Camera.FPS,
			Reconnect:  reconnect,
		})
		if err != nil {
			return nil, err
		}
		return stream, nil

	case config.SourceSynthetic:
		sprite, err := codeSprite(cfg.QR.PixelsPerModule, res)
		if err != nil {
			return nil, err
		}
		syn, err := capture.NewSynthetic(capture.SyntheticConfig{
			Width:  res.Width,
			Height: res.Height,
			FPS:    max(1, int(cfg.Camera.FPS)),
			Sprite: sprite,
		})
		if err != nil {
			return nil, err
		}
		return syn, nil

	default:
		return nil, fmt.Errorf("unknown camera source %q", cfg.Camera.Source)
	}
}

// codeSprite renders the default message as a QR code that fits the frame,
// so the synthetic camera has something to detect.
func codeSprite(ppm int, res capture.Resolution) (*image.Gray, error) {
	code, err := qr.Encode(qr.DefaultMessage, qr.LevelMedium)
	if err != nil {
		return nil, err
	}
	// Leave room for the sprite to move around.
	fit := min(res.Width, res.Height) / 2 / code.Size()
	return code.Render(max(1, min(ppm, fit)))
}
