package render

import (
	"errors"
	"image"
	"testing"

	"github.com/e7canasta/qrcam/internal/geom"
)

func TestFitCentresAndKeepsAspect(t *testing.T) {
	tr := Fit(image.Pt(640, 480), image.Pt(1280, 1280))

	if tr.Scale != 2 {
		t.Fatalf("expected scale 2, got %v", tr.Scale)
	}
	if tr.OffsetX != 0 || tr.OffsetY != 160 {
		t.Errorf("expected offset (0,160), got (%v,%v)", tr.OffsetX, tr.OffsetY)
	}
	if got := tr.Apply(geom.Pt(10, 10)); got != geom.Pt(20, 180) {
		t.Errorf("unexpected mapping %v", got)
	}
}

func TestFitLetterbox(t *testing.T) {
	tests := []struct {
		name      string
		src, view image.Point
		want      Letterbox
	}{
		{"upscale wide", image.Pt(640, 480), image.Pt(1280, 1280),
			Letterbox{Size: image.Pt(1280, 960), Top: 160, Bottom: 160}},
		{"downscale tall", image.Pt(480, 640), image.Pt(800, 400),
			Letterbox{Size: image.Pt(300, 400), Left: 250, Right: 250}},
		{"odd remainder", image.Pt(3, 2), image.Pt(4, 4),
			Letterbox{Size: image.Pt(4, 3), Top: 0, Bottom: 1}},
		{"no view", image.Pt(3, 2), image.Point{},
			Letterbox{Size: image.Pt(3, 2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, lb := FitLetterbox(tt.src, tt.view)
			if lb != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, lb)
			}
			if tr.OffsetX != float64(lb.Left) || tr.OffsetY != float64(lb.Top) {
				t.Errorf("transform offsets (%v,%v) do not match layout", tr.OffsetX, tr.OffsetY)
			}
		})
	}
}

func TestHeadlessFitsOverlayToView(t *testing.T) {
	h := NewHeadless()
	h.SetView(image.Pt(1280, 1280))

	bmp := image.NewRGBA(image.Rect(0, 0, 640, 480))
	_, err := h.Present(bmp, func(c Canvas) {
		if c.Size() != image.Pt(1280, 1280) {
			t.Errorf("expected canvas of view size, got %v", c.Size())
		}
		c.DrawLine(geom.Pt(0, 0), geom.Pt(640, 480), CubeEdge, 1)
	})
	if err != nil {
		t.Fatalf("Present: %v", err)
	}

	_, ops := h.Last()
	if len(ops) != 1 {
		t.Fatalf("expected one op, got %d", len(ops))
	}
	if a, b := ops[0].Polygon[0], ops[0].Polygon[1]; a != geom.Pt(0, 160) || b != geom.Pt(1280, 1120) {
		t.Errorf("line not mapped into the view: %v -> %v", a, b)
	}
}

func TestZeroTransformIsIdentity(t *testing.T) {
	var tr Transform
	if got := tr.Apply(geom.Pt(3, 4)); got != geom.Pt(3, 4) {
		t.Errorf("expected identity, got %v", got)
	}
}

func TestDrawDetection(t *testing.T) {
	rec := NewRecorder(image.Pt(100, 100))
	rec.Transform = Transform{Scale: 2}

	square := geom.Polygon{geom.Pt(1, 1), geom.Pt(2, 1), geom.Pt(2, 2), geom.Pt(1, 2)}
	DrawDetection(rec, square)
	DrawDetection(rec, square[:2])

	ops := rec.Ops()
	if len(ops) != 2 {
		t.Fatalf("expected fill + outline, got %d ops", len(ops))
	}
	if ops[0].Kind != "fill" || ops[0].Color != DetectionFill {
		t.Errorf("unexpected fill op %+v", ops[0])
	}
	if ops[1].Kind != "polygon" || ops[1].Thickness != OutlineThickness || ops[1].Color != DetectionOutline {
		t.Errorf("unexpected outline op %+v", ops[1])
	}
	if ops[0].Polygon[2] != geom.Pt(4, 4) {
		t.Errorf("transform not applied: %v", ops[0].Polygon)
	}
}

func TestHeadlessPresent(t *testing.T) {
	h := NewHeadless()
	bmp := image.NewRGBA(image.Rect(0, 0, 2, 2))
	bmp.Pix[0] = 9

	h.Press('q')
	key, err := h.Present(bmp, func(c Canvas) {
		c.DrawText("hello", image.Pt(0, 10), InfoText, TextScale)
	})
	if err != nil {
		t.Fatalf("Present: %v", err)
	}
	if !IsQuit(key) {
		t.Errorf("expected queued quit key, got %d", key)
	}

	bmp.Pix[0] = 1
	last, ops := h.Last()
	if last.Pix[0] != 9 {
		t.Errorf("expected headless display to hold a copy")
	}
	if len(ops) != 1 || ops[0].Text != "hello" {
		t.Errorf("unexpected ops %+v", ops)
	}

	if key, _ := h.Present(bmp, nil); key != KeyNone {
		t.Errorf("expected KeyNone, got %d", key)
	}
	if h.Frames() != 2 {
		t.Errorf("expected 2 frames, got %d", h.Frames())
	}

	_ = h.Close()
	if _, err := h.Present(bmp, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
