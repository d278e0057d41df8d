// Package config loads the qrcam YAML configuration.
package config

import (
	"fmt"
	"image"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete qrcam configuration.
type Config struct {
	InstanceID string        `yaml:"instance_id"`
	Camera     CameraConfig  `yaml:"camera"`
	Display    DisplayConfig `yaml:"display"`
	QR         QRConfig      `yaml:"qr"`
	MQTT       MQTTConfig    `yaml:"mqtt"`
}

// CameraConfig selects and tunes the frame source.
type CameraConfig struct {
	Source               string  `yaml:"source"`                 // webcam, gstreamer, synthetic
	Device               int     `yaml:"device"`                 // webcam index
	Pipeline             string  `yaml:"pipeline"`               // gstreamer source description
	TargetResolution     int     `yaml:"target_resolution"`      // pixels, 0 picks the activity default
	FPS                  float64 `yaml:"fps"`                    // 0 keeps the source rate
	WarmupDurationS      int     `yaml:"warmup_duration_s"`      // 0 skips warm-up
	MaxReconnectAttempts int     `yaml:"max_reconnect_attempts"`
}

// DisplayConfig configures the render loop.
type DisplayConfig struct {
	Title      string  `yaml:"title"`
	FPS        float64 `yaml:"fps"`
	BitmapMode string  `yaml:"bitmap_mode"` // double_buffer, unsafe
	// Width and Height fix the view size; the camera image is scaled to fit
	// and centred. 0 shows the image at its own size.
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
}

// View is the configured view size, zero when unset.
func (d DisplayConfig) View() image.Point { return image.Pt(d.Width, d.Height) }

// QRConfig holds detection, pose and generation parameters.
type QRConfig struct {
	MarkerWidth     float64 `yaml:"marker_width"`
	FieldOfViewDeg  float64 `yaml:"field_of_view_deg"`
	PixelsPerModule int     `yaml:"pixels_per_module"`
}

// MQTTConfig configures the detection emitter. An empty broker disables it.
type MQTTConfig struct {
	Broker string `yaml:"broker"` // host:port
	Topic  string `yaml:"topic"`  // base topic, events go to <topic>/detections
	QoS    byte   `yaml:"qos"`
}

// Enabled reports whether detection events should be published.
func (m MQTTConfig) Enabled() bool { return m.Broker != "" }

// Default returns a configuration with every default filled in.
func Default() *Config {
	cfg := &Config{}
	// Validate never fails on the zero config; it only fills defaults.
	_ = Validate(cfg)
	return cfg
}

// Load reads, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
