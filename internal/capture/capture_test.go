package capture

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"
)

func TestSelectResolutionClosestPixelCount(t *testing.T) {
	tests := []struct {
		name   string
		target int
		want   Resolution
	}{
		{"gradient", TargetGradient, Resolution{640, 480}},
		{"qrcode", TargetQR, Resolution{1024, 768}},
		{"between 800x600 and 1024x768", 600000, Resolution{800, 600}},
		{"huge", 10000 * 10000, Resolution{1920, 1080}},
		{"tiny", 1, Resolution{320, 240}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectResolution(CommonResolutions, tt.target)
			if !ok || got != tt.want {
				t.Errorf("expected %v, got %v (ok=%v)", tt.want, got, ok)
			}
		})
	}

	if _, ok := SelectResolution(nil, TargetQR); ok {
		t.Errorf("expected ok=false for no candidates")
	}
}

func TestSelectResolutionTieKeepsFirst(t *testing.T) {
	got, _ := SelectResolution([]Resolution{{10, 10}, {20, 10}}, 150)
	if got != (Resolution{10, 10}) {
		t.Errorf("expected first candidate on tie, got %v", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		msg, debug string
		want       ErrorCategory
	}{
		{"Could not open device '/dev/video0' for reading and writing.", "Permission denied", ErrCategoryPermission},
		{"Cannot identify device '/dev/video3'.", "", ErrCategoryDevice},
		{"Internal data stream error.", "streaming stopped, reason not-negotiated (not negotiated)", ErrCategoryCodec},
		{"Could not open resource for reading.", "Could not connect to server", ErrCategoryNetwork},
		{"Something odd", "", ErrCategoryUnknown},
	}

	for _, tt := range tests {
		if got := Classify(tt.msg, tt.debug); got != tt.want {
			t.Errorf("Classify(%q, %q) = %s, expected %s", tt.msg, tt.debug, got, tt.want)
		}
	}
}

func TestBackoff(t *testing.T) {
	cfg := DefaultReconnectConfig()
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		if got := Backoff(i+1, cfg); got != w {
			t.Errorf("attempt %d: expected %v, got %v", i+1, w, got)
		}
	}
	if got := Backoff(100, cfg); got != cfg.MaxRetryDelay {
		t.Errorf("expected cap for huge attempt, got %v", got)
	}
}

func TestRunWithReconnectGivesUp(t *testing.T) {
	cfg := ReconnectConfig{MaxRetries: 3, RetryDelay: time.Millisecond, MaxRetryDelay: 5 * time.Millisecond}
	var reconnects atomic.Uint32
	calls := 0
	boom := errors.New("connection refused")

	err := RunWithReconnect(context.Background(), "test", func(context.Context) error {
		calls++
		return boom
	}, cfg, &reconnects)

	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped connection error, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 1 attempt + 3 retries, got %d calls", calls)
	}
	if reconnects.Load() != 4 {
		t.Errorf("expected 4 counted failures, got %d", reconnects.Load())
	}
}

func TestRunWithReconnectRecovers(t *testing.T) {
	cfg := ReconnectConfig{MaxRetries: 5, RetryDelay: time.Millisecond, MaxRetryDelay: 5 * time.Millisecond}
	var reconnects atomic.Uint32
	calls := 0

	err := RunWithReconnect(context.Background(), "test", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}
		return nil
	}, cfg, &reconnects)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 || reconnects.Load() != 2 {
		t.Errorf("expected 3 calls / 2 reconnects, got %d / %d", calls, reconnects.Load())
	}
}

func TestRunWithReconnectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := ReconnectConfig{MaxRetries: 5, RetryDelay: time.Hour, MaxRetryDelay: time.Hour}
	var reconnects atomic.Uint32

	done := make(chan error, 1)
	go func() {
		done <- RunWithReconnect(ctx, "test", func(context.Context) error {
			return errors.New("boom")
		}, cfg, &reconnects)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunWithReconnect did not return after cancel")
	}
}

func TestCountersEmitDropsWhenFull(t *testing.T) {
	var c Counters
	out := make(chan Frame, 1)

	f1, ok1 := c.Emit(out, []byte{1}, 1, 1, "test")
	_, ok2 := c.Emit(out, []byte{2}, 1, 1, "test")

	if !ok1 || ok2 {
		t.Fatalf("expected first sent and second dropped, got %v %v", ok1, ok2)
	}
	if f1.Seq != 1 || f1.TraceID == "" {
		t.Errorf("unexpected frame %+v", f1)
	}

	st := c.Snapshot(time.Now(), 30, "test", Resolution{1, 1}, true)
	if st.FrameCount != 2 || st.FramesDropped != 1 || st.DropRate != 50 || st.BytesRead != 2 {
		t.Errorf("unexpected stats %+v", st)
	}

	c.RecordError(ErrCategoryCodec)
	c.RecordError(ErrorCategory(42))
	st = c.Snapshot(time.Time{}, 30, "test", Resolution{1, 1}, false)
	if st.ErrorsCodec != 1 || st.ErrorsUnknown != 1 {
		t.Errorf("unexpected error counters %+v", st)
	}
	if st.FPSReal != 0 {
		t.Errorf("expected no FPS for a never-started source, got %v", st.FPSReal)
	}
}

func TestSyntheticLifecycle(t *testing.T) {
	src, err := NewSynthetic(SyntheticConfig{Width: 32, Height: 24, FPS: 100})
	if err != nil {
		t.Fatalf("NewSynthetic: %v", err)
	}

	ctx := context.Background()
	frames, err := src.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := src.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	var last uint64
	for i := 0; i < 3; i++ {
		select {
		case f := <-frames:
			if f.Width != 32 || f.Height != 24 || len(f.Data) != 32*24 {
				t.Fatalf("unexpected frame shape %dx%d len=%d", f.Width, f.Height, len(f.Data))
			}
			if f.Seq <= last {
				t.Errorf("sequence not increasing: %d after %d", f.Seq, last)
			}
			if f.Source != "synthetic" {
				t.Errorf("unexpected source %q", f.Source)
			}
			last = f.Seq
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for synthetic frame")
		}
	}

	if st := src.Stats(); !st.IsConnected || st.FrameCount < 3 {
		t.Errorf("unexpected running stats %+v", st)
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	for range frames {
		// drain buffered frames until closed
	}
	if err := src.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
	if src.Stats().IsConnected {
		t.Errorf("expected disconnected after Stop")
	}
}

func TestSyntheticRejectsBadConfig(t *testing.T) {
	if _, err := NewSynthetic(SyntheticConfig{Width: 0, Height: 10, FPS: 10}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for zero width, got %v", err)
	}
	if _, err := NewSynthetic(SyntheticConfig{Width: 10, Height: 10}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for zero fps, got %v", err)
	}
}

func TestSyntheticPaintsSprite(t *testing.T) {
	sprite := image.NewGray(image.Rect(0, 0, 2, 2))
	for i := range sprite.Pix {
		sprite.Pix[i] = 7
	}
	src, _ := NewSynthetic(SyntheticConfig{Width: 8, Height: 8, FPS: 1, Sprite: sprite})

	data := make([]byte, 64)
	src.paint(data, 0)
	if data[0] != 7 || data[1] != 7 || data[8] != 7 || data[9] != 7 {
		t.Errorf("expected sprite at origin on tick 0, got %v", data[:10])
	}

	src.paint(data, 1)
	// Tick 1 moves the sprite to (3, 2).
	if data[2*8+3] != 7 {
		t.Errorf("expected sprite at (3,2) on tick 1")
	}
}

func TestBounce(t *testing.T) {
	want := []int{0, 1, 2, 3, 2, 1, 0, 1}
	for pos, w := range want {
		if got := bounce(pos, 3); got != w {
			t.Errorf("bounce(%d, 3) = %d, expected %d", pos, got, w)
		}
	}
	if bounce(5, 0) != 0 {
		t.Errorf("expected 0 for empty span")
	}
}

func TestWarmupCountsFrames(t *testing.T) {
	frames := make(chan Frame, 32)
	base := time.Now()
	for i := 0; i < 20; i++ {
		frames <- Frame{Seq: uint64(i + 1), Timestamp: base.Add(time.Duration(i) * 10 * time.Millisecond)}
	}

	st, _ := Warmup(context.Background(), frames, 200*time.Millisecond)
	if st == nil {
		t.Fatal("expected stats")
	}
	if st.FramesReceived != 20 {
		t.Errorf("expected 20 frames, got %d", st.FramesReceived)
	}
	t.Logf("warm-up: mean=%.1f stable=%v", st.FPSMean, st.IsStable)
}

func TestWarmupFailures(t *testing.T) {
	closed := make(chan Frame)
	close(closed)
	if _, err := Warmup(context.Background(), closed, time.Second); err == nil {
		t.Errorf("expected error for closed stream")
	}

	if _, err := Warmup(context.Background(), make(chan Frame), 20*time.Millisecond); err == nil {
		t.Errorf("expected error when no frames arrive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Warmup(ctx, make(chan Frame), time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFrameGrayView(t *testing.T) {
	f := Frame{Width: 3, Height: 2, Data: []byte{0, 1, 2, 3, 4, 5}}
	img := f.Gray()
	if img.GrayAt(2, 1).Y != 5 {
		t.Errorf("unexpected pixel %d", img.GrayAt(2, 1).Y)
	}
	img.Pix[0] = 9
	if f.Data[0] != 9 {
		t.Errorf("expected Gray to share Data")
	}
}

func TestRunnerRestartsAfterStopTimeout(t *testing.T) {
	var r Runner
	ctx := context.Background()

	// A capture loop stuck in a device read does not see ctx.
	release := make(chan struct{})
	stuck, err := r.Start(ctx, 1, func(ctx context.Context, out chan<- Frame) {
		<-release
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := r.Start(ctx, 1, func(context.Context, chan<- Frame) {}); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	if err := r.Stop(20 * time.Millisecond); !errors.Is(err, ErrStopTimeout) {
		t.Fatalf("expected ErrStopTimeout, got %v", err)
	}
	if r.Running() {
		t.Error("runner still reports running after a timed out Stop")
	}

	frames, err := r.Start(ctx, 1, func(ctx context.Context, out chan<- Frame) {
		out <- Frame{Seq: 7}
		<-ctx.Done()
	})
	if err != nil {
		t.Fatalf("Start after a timed out Stop: %v", err)
	}
	select {
	case f := <-frames:
		if f.Seq != 7 {
			t.Errorf("expected seq 7, got %d", f.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame from the restarted run")
	}

	close(release)
	if err := r.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, ok := <-frames; ok {
		t.Error("expected frames closed after Stop")
	}
	select {
	case _, ok := <-stuck:
		if ok {
			t.Error("unexpected frame from the stuck run")
		}
	case <-time.After(time.Second):
		t.Error("channel of the timed out run not closed once it returned")
	}
	if err := r.Stop(time.Second); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
}

func TestRunnerStopClosesFrames(t *testing.T) {
	var r Runner
	frames, err := r.Start(context.Background(), 2, func(ctx context.Context, out chan<- Frame) {
		out <- Frame{Seq: 1}
		<-ctx.Done()
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !r.Running() || r.Started().IsZero() {
		t.Errorf("expected a running runner with a start time")
	}
	if err := r.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	var n int
	for range frames {
		n++
	}
	if n != 1 {
		t.Errorf("expected the buffered frame before close, got %d", n)
	}
}

func TestRunnerClosesFramesWhenRunGivesUp(t *testing.T) {
	var r Runner
	frames, err := r.Start(context.Background(), 1, func(context.Context, chan<- Frame) {})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case _, ok := <-frames:
		if ok {
			t.Error("unexpected frame")
		}
	case <-time.After(time.Second):
		t.Fatal("frames not closed after the run returned")
	}
	// The source is still considered started until Stop.
	if !r.Running() {
		t.Error("expected Running until Stop")
	}
	if err := r.Stop(time.Second); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
