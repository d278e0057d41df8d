package config

import (
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.InstanceID != "qrcam" {
		t.Errorf("expected instance_id qrcam, got %q", cfg.InstanceID)
	}
	if cfg.Camera.Source != SourceWebcam || cfg.Camera.TargetResolution != 0 {
		t.Errorf("unexpected camera defaults %+v", cfg.Camera)
	}
	if cfg.Camera.MaxReconnectAttempts != 5 {
		t.Errorf("expected 5 reconnect attempts, got %d", cfg.Camera.MaxReconnectAttempts)
	}
	if cfg.Display.BitmapMode != BitmapModeDoubleBuffer || cfg.Display.FPS != 30 {
		t.Errorf("unexpected display defaults %+v", cfg.Display)
	}
	if cfg.QR.MarkerWidth != 10 || cfg.QR.FieldOfViewDeg != 90 || cfg.QR.PixelsPerModule != 15 {
		t.Errorf("unexpected qr defaults %+v", cfg.QR)
	}
	if cfg.MQTT.Enabled() {
		t.Errorf("mqtt should be disabled without a broker")
	}
	if cfg.MQTT.Topic != "qrcam/qrcam" {
		t.Errorf("expected default topic qrcam/qrcam, got %q", cfg.MQTT.Topic)
	}
}

func TestLoad(t *testing.T) {
	yaml := `
instance_id: lab-cam-2
camera:
  source: gstreamer
  pipeline: "rtsp://10.0.0.5/stream"
  target_resolution: 786432
  fps: 15
display:
  bitmap_mode: unsafe
  width: 1280
  height: 720
mqtt:
  broker: localhost:1883
  qos: 1
`
	path := filepath.Join(t.TempDir(), "qrcam.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Camera.Source != SourceGStreamer || cfg.Camera.Pipeline != "rtsp://10.0.0.5/stream" {
		t.Errorf("unexpected camera %+v", cfg.Camera)
	}
	if cfg.Camera.TargetResolution != 1024*768 || cfg.Camera.FPS != 15 {
		t.Errorf("unexpected camera tuning %+v", cfg.Camera)
	}
	if cfg.Display.BitmapMode != BitmapModeUnsafe {
		t.Errorf("expected unsafe bitmap mode, got %q", cfg.Display.BitmapMode)
	}
	if cfg.Display.View() != image.Pt(1280, 720) {
		t.Errorf("unexpected view %v", cfg.Display.View())
	}
	if !cfg.MQTT.Enabled() || cfg.MQTT.QoS != 1 {
		t.Errorf("unexpected mqtt %+v", cfg.MQTT)
	}
	if cfg.MQTT.Topic != "qrcam/lab-cam-2" {
		t.Errorf("expected topic derived from instance id, got %q", cfg.MQTT.Topic)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad instance", "instance_id: Bad_ID", "instance_id"},
		{"unknown source", "camera: {source: ip}", "unknown source"},
		{"gstreamer without pipeline", "camera: {source: gstreamer}", "pipeline is required"},
		{"negative device", "camera: {device: -1}", "device"},
		{"negative resolution", "camera: {target_resolution: -5}", "target_resolution"},
		{"negative fps", "camera: {fps: -2}", "fps"},
		{"bad bitmap mode", "display: {bitmap_mode: triple}", "bitmap_mode"},
		{"negative view", "display: {width: -1, height: 480}", "must not be negative"},
		{"half a view", "display: {width: 640}", "set together"},
		{"fov too wide", "qr: {field_of_view_deg: 180}", "field_of_view_deg"},
		{"negative width", "qr: {marker_width: -1}", "must not be negative"},
		{"bad qos", "mqtt: {qos: 3}", "qos"},
		{"not yaml", "camera: [", "failed to parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSyntheticGetsFrameRate(t *testing.T) {
	cfg, err := Parse([]byte("camera: {source: synthetic}"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Camera.FPS != 30 {
		t.Errorf("expected synthetic default fps 30, got %v", cfg.Camera.FPS)
	}
}
