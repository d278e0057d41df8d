package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

const (
	SourceWebcam    = "webcam"
	SourceGStreamer = "gstreamer"
	SourceSynthetic = "synthetic"

	BitmapModeDoubleBuffer = "double_buffer"
	BitmapModeUnsafe       = "unsafe"
)

// Validate checks the configuration and fills defaults for unset fields.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		cfg.InstanceID = "qrcam"
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if err := validateCamera(&cfg.Camera); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	if err := validateDisplay(&cfg.Display); err != nil {
		return fmt.Errorf("display: %w", err)
	}
	if err := validateQR(&cfg.QR); err != nil {
		return fmt.Errorf("qr: %w", err)
	}

	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = fmt.Sprintf("qrcam/%s", cfg.InstanceID)
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
	}

	return nil
}

func validateCamera(c *CameraConfig) error {
	switch c.Source {
	case "":
		c.Source = SourceWebcam
	case SourceWebcam, SourceSynthetic:
	case SourceGStreamer:
		if c.Pipeline == "" {
			return fmt.Errorf("pipeline is required for source %q", SourceGStreamer)
		}
	default:
		return fmt.Errorf("unknown source %q (must be webcam, gstreamer or synthetic)", c.Source)
	}

	if c.Device < 0 {
		return fmt.Errorf("device must be >= 0, got %d", c.Device)
	}
	if c.TargetResolution < 0 {
		return fmt.Errorf("target_resolution must be >= 0, got %d", c.TargetResolution)
	}
	if c.FPS < 0 {
		return fmt.Errorf("fps must be >= 0, got %v", c.FPS)
	}
	if c.FPS == 0 && c.Source == SourceSynthetic {
		c.FPS = 30
	}
	if c.WarmupDurationS < 0 {
		return fmt.Errorf("warmup_duration_s must be >= 0, got %d", c.WarmupDurationS)
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	return nil
}

func validateDisplay(d *DisplayConfig) error {
	if d.Title == "" {
		d.Title = "qrcam"
	}
	if d.FPS < 0 {
		return fmt.Errorf("fps must be >= 0, got %v", d.FPS)
	}
	if d.FPS == 0 {
		d.FPS = 30
	}
	if d.Width < 0 || d.Height < 0 {
		return fmt.Errorf("view size must not be negative, got %dx%d", d.Width, d.Height)
	}
	if (d.Width == 0) != (d.Height == 0) {
		return fmt.Errorf("width and height must be set together, got %dx%d", d.Width, d.Height)
	}
	switch d.BitmapMode {
	case "":
		d.BitmapMode = BitmapModeDoubleBuffer
	case BitmapModeDoubleBuffer, BitmapModeUnsafe:
	default:
		return fmt.Errorf("unknown bitmap_mode %q (must be double_buffer or unsafe)", d.BitmapMode)
	}
	return nil
}

func validateQR(q *QRConfig) error {
	if q.MarkerWidth < 0 || q.FieldOfViewDeg < 0 || q.PixelsPerModule < 0 {
		return fmt.Errorf("marker_width, field_of_view_deg and pixels_per_module must not be negative")
	}
	if q.MarkerWidth == 0 {
		q.MarkerWidth = 10
	}
	if q.FieldOfViewDeg == 0 {
		q.FieldOfViewDeg = 90
	}
	if q.FieldOfViewDeg >= 180 {
		return fmt.Errorf("field_of_view_deg must be below 180, got %v", q.FieldOfViewDeg)
	}
	if q.PixelsPerModule == 0 {
		q.PixelsPerModule = 15
	}
	return nil
}
