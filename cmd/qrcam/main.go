// Command qrcam opens a camera and runs one visualization activity on it:
// the colorized image gradient, QR code detection, or QR pose estimation.
//
// Usage:
//
//	qrcam -activity qrcode
//	qrcam -config config/qrcam.yaml -activity pose
//	qrcam -source synthetic -headless -mqtt localhost:1883
//
// SIGUSR1 pauses and resumes the camera. ESC or q in the window quits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/e7canasta/qrcam/internal/activity"
	"github.com/e7canasta/qrcam/internal/config"
	"github.com/e7canasta/qrcam/internal/control"
	"github.com/e7canasta/qrcam/internal/emitter"
	"github.com/e7canasta/qrcam/internal/lifecycle"
	"github.com/e7canasta/qrcam/internal/permission"
	"github.com/e7canasta/qrcam/internal/qr"
	"github.com/e7canasta/qrcam/internal/render"
	"github.com/e7canasta/qrcam/internal/render/cvwindow"
	"github.com/e7canasta/qrcam/internal/resultbus"
)

const version = "v0.1.0"

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults when empty)")
	activityName := flag.String("activity", "qrcode", "Activity: gradient, qrcode, pose")
	source := flag.String("source", "", "Override camera.source: webcam, gstreamer, synthetic")
	device := flag.Int("device", -1, "Override camera.device (webcam index)")
	pipeline := flag.String("pipeline", "", "Override camera.pipeline (gstreamer source)")
	bitmapMode := flag.String("bitmap-mode", "", "Override display.bitmap_mode: double_buffer, unsafe")
	broker := flag.String("mqtt", "", "Override mqtt.broker (host:port)")
	headless := flag.Bool("headless", false, "Run without a window")
	statsInterval := flag.Duration("stats-interval", 0, "Log statistics at this interval (0 disables)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("qrcam %s\n", version)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *source != "" {
		cfg.Camera.Source = *source
	}
	if *device >= 0 {
		cfg.Camera.Device = *device
	}
	if *pipeline != "" {
		cfg.Camera.Pipeline = *pipeline
	}
	if *bitmapMode != "" {
		cfg.Display.BitmapMode = *bitmapMode
	}
	if *broker != "" {
		cfg.MQTT.Broker = *broker
	}
	if err := config.Validate(cfg); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	mode, err := activity.ParseBitmapMode(cfg.Display.BitmapMode)
	if err != nil {
		slog.Error("invalid bitmap mode", "error", err)
		os.Exit(1)
	}

	slog.Info("starting qrcam",
		"version", version,
		"instance_id", cfg.InstanceID,
		"activity", *activityName,
		"source", cfg.Camera.Source,
		"bitmap_mode", mode.String(),
		"headless", *headless,
	)

	var display render.Display
	var dialog permission.Dialog
	if *headless {
		h := render.NewHeadless()
		h.SetView(cfg.Display.View())
		display = h
		dialog = permission.DialogFunc(func(msg string) { fmt.Fprintln(os.Stderr, msg) })
	} else {
		win := cvwindow.Open(cfg.Display.Title, int(cfg.Display.FPS))
		win.SetView(cfg.Display.View())
		display, dialog = win, win
	}
	defer display.Close()

	// Camera access is checked once; denial shows the message and exits.
	if cfg.Camera.Source == config.SourceWebcam {
		checker := permission.DeviceChecker{Path: permission.DeviceForIndex(cfg.Camera.Device)}
		permission.Require(checker, dialog, os.Exit)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := resultbus.New[qr.Event]()
	defer events.Close()

	proc, closeProc, err := newProcessor(*activityName, cfg, events)
	if err != nil {
		slog.Error("failed to create processor", "error", err)
		os.Exit(1)
	}
	defer closeProc()

	src, err := newSource(cfg, targetPixels(*activityName, cfg))
	if err != nil {
		slog.Error("failed to create camera source", "error", err)
		os.Exit(1)
	}

	act := activity.New(activity.Config{
		Name:       *activityName,
		Mode:       mode,
		DisplayFPS: cfg.Display.FPS,
		Warmup:     time.Duration(cfg.Camera.WarmupDurationS) * time.Second,
	}, src, proc, display)

	if cfg.MQTT.Enabled() {
		em, err := startEmitter(ctx, cfg, events)
		if err != nil {
			slog.Error("failed to start mqtt emitter", "error", err)
			os.Exit(1)
		}
		defer em.Close()

		ctl := startControl(ctx, cancel, cfg, em, act)
		defer ctl.Stop()
	}
	go logDetections(ctx, events)
	if *statsInterval > 0 {
		go reportStats(ctx, *statsInterval, src, act, events)
	}

	if err := act.Start(ctx); err != nil {
		slog.Error("failed to start activity", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	go handleSignals(ctx, cancel, sigChan, act)

	// The window must be driven from the main goroutine.
	runErr := act.Run(ctx)
	cancel()

	if err := act.Destroy(); err != nil {
		slog.Warn("destroy failed", "error", err)
	}

	st := act.Stats()
	slog.Info("qrcam stopped",
		"processed", st.Processed,
		"process_errors", st.ProcessErrors,
		"frames_dropped", st.Mailbox.Dropped,
		"swaps", st.Handoff.Swaps,
		"swaps_skipped", st.Handoff.Skipped,
		"rendered", st.RenderedFrames,
		"event_drop_rate", resultbus.DropRate(events.Stats()),
	)

	if runErr != nil {
		slog.Error("render loop failed", "error", runErr)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// handleSignals cancels on SIGINT/SIGTERM and toggles pause on SIGUSR1.
func handleSignals(ctx context.Context, cancel context.CancelFunc, sigs <-chan os.Signal, act *activity.Activity) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			if sig != syscall.SIGUSR1 {
				slog.Info("received shutdown signal", "signal", sig)
				cancel()
				return
			}

			var err error
			switch act.State() {
			case lifecycle.Running:
				err = act.Pause()
			case lifecycle.Paused:
				err = act.Resume()
			}
			if err != nil {
				slog.Warn("lifecycle toggle failed", "error", err)
				continue
			}
			slog.Info("lifecycle toggled", "state", act.State().String())
		}
	}
}

// startEmitter forwards detection events to MQTT. A broker that is not up
// yet is retried in the background.
func startEmitter(ctx context.Context, cfg *config.Config, events *resultbus.Bus[qr.Event]) (*emitter.MQTTEmitter, error) {
	em := emitter.NewMQTTEmitter(emitter.Config{
		Broker:     cfg.MQTT.Broker,
		InstanceID: cfg.InstanceID,
		Topic:      cfg.MQTT.Topic,
		QoS:        cfg.MQTT.QoS,
	})
	if err := em.Connect(ctx); err != nil {
		slog.Warn("mqtt broker not reachable yet, retrying in background", "error", err)
	}

	ch := make(chan qr.Event, 16)
	if err := events.Subscribe("mqtt", ch); err != nil {
		return nil, err
	}
	go em.Run(ctx, ch)
	return em, nil
}

// startControl lets MQTT pause, resume, query and stop the activity. When the
// broker is not reachable the subscription fails and only signals control
// the activity.
func startControl(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, em *emitter.MQTTEmitter, act *activity.Activity) *control.Handler {
	var h *control.Handler
	h = control.NewHandler(em.Client(), cfg.MQTT.Topic, cfg.MQTT.QoS, control.Callbacks{
		OnGetStatus: func() map[string]any {
			st := act.Stats()
			return map[string]any{
				"state":            st.State,
				"warming_up":       st.WarmingUp,
				"camera_error":     st.CameraError,
				"processed":        st.Processed,
				"process_errors":   st.ProcessErrors,
				"convert_ms":       st.ConvertMS,
				"detector_ms":      st.DetectorMS,
				"width":            st.Width,
				"height":           st.Height,
				"frames_dropped":   st.Mailbox.Dropped,
				"swaps_skipped":    st.Handoff.Skipped,
				"commands_handled": h.Handled(),
				"mqtt":             em.Stats(),
			}
		},
		OnPause:  act.Pause,
		OnResume: act.Resume,
		OnShutdown: func() error {
			cancel()
			return nil
		},
	})
	if err := h.Start(ctx); err != nil {
		slog.Warn("control plane disabled", "error", err)
	}
	return h
}

// logDetections logs newly decoded messages, skipping events the logger was
// too slow to see.
func logDetections(ctx context.Context, events *resultbus.Bus[qr.Event]) {
	latest, err := events.SubscribeLatest("log")
	if err != nil {
		slog.Warn("detection logger disabled", "error", err)
		return
	}

	var last string
	for {
		ev, ok := latest.Take(ctx)
		if !ok {
			return
		}
		msgs := ev.Messages()
		if len(msgs) == 0 || msgs[len(msgs)-1] == last {
			continue
		}
		last = msgs[len(msgs)-1]
		slog.Info("qr decoded",
			"messages", msgs,
			"seq", ev.Seq,
			"trace_id", ev.TraceID,
		)
	}
}
