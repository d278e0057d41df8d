package render

import (
	"image"
	"image/color"
	"sync"

	"github.com/e7canasta/qrcam/internal/geom"
)

// Op is one recorded canvas call.
type Op struct {
	Kind      string // "text", "fill", "polygon", "line"
	Text      string
	At        image.Point
	Polygon   geom.Polygon
	Color     color.RGBA
	Thickness int
}

// Recorder is a Canvas that records calls instead of drawing.
type Recorder struct {
	Transform Transform
	size      image.Point
	ops       []Op
}

// NewRecorder returns a recorder for a view of the given size.
func NewRecorder(size image.Point) *Recorder {
	return &Recorder{size: size}
}

func (r *Recorder) Size() image.Point { return r.size }

func (r *Recorder) DrawText(text string, at image.Point, c color.RGBA, _ float64) {
	r.ops = append(r.ops, Op{Kind: "text", Text: text, At: at, Color: c})
}

func (r *Recorder) FillPolygon(p geom.Polygon, c color.RGBA) {
	r.ops = append(r.ops, Op{Kind: "fill", Polygon: r.Transform.Polygon(p), Color: c})
}

func (r *Recorder) DrawPolygon(p geom.Polygon, c color.RGBA, thickness int) {
	r.ops = append(r.ops, Op{Kind: "polygon", Polygon: r.Transform.Polygon(p), Color: c, Thickness: thickness})
}

func (r *Recorder) DrawLine(a, b geom.Point, c color.RGBA, thickness int) {
	r.ops = append(r.ops, Op{
		Kind:      "line",
		Polygon:   geom.Polygon{r.Transform.Apply(a), r.Transform.Apply(b)},
		Color:     c,
		Thickness: thickness,
	})
}

// Ops returns the recorded calls.
func (r *Recorder) Ops() []Op { return r.ops }

// Texts returns the text of every DrawText call in order.
func (r *Recorder) Texts() []string {
	var out []string
	for _, op := range r.ops {
		if op.Kind == "text" {
			out = append(out, op.Text)
		}
	}
	return out
}

// Headless is a Display without a window. It keeps a copy of the last frame
// and the overlay calls made on it, and returns keys queued with Press.
// With a view size set, overlay geometry is recorded in view pixels.
type Headless struct {
	mu     sync.Mutex
	view   image.Point
	last   *image.RGBA
	ops    []Op
	frames int
	keys   []int
	closed bool
}

// NewHeadless creates an empty headless display.
func NewHeadless() *Headless { return &Headless{} }

// SetView fixes the view size frames are fitted into. Zero disables fitting.
func (h *Headless) SetView(view image.Point) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.view = view
}

// Present implements Display.
func (h *Headless) Present(bitmap *image.RGBA, overlay func(Canvas)) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return KeyNone, ErrClosed
	}

	if h.last == nil {
		h.last = &image.RGBA{}
	}
	if bitmap != nil {
		h.last.Pix = append(h.last.Pix[:0], bitmap.Pix...)
		h.last.Stride = bitmap.Stride
		h.last.Rect = bitmap.Rect
	}

	rec := NewRecorder(h.last.Rect.Size())
	if h.view != (image.Point{}) {
		rec = NewRecorder(h.view)
		rec.Transform, _ = FitLetterbox(h.last.Rect.Size(), h.view)
	}
	if overlay != nil {
		overlay(rec)
	}
	h.ops = rec.Ops()
	h.frames++

	if len(h.keys) > 0 {
		k := h.keys[0]
		h.keys = h.keys[1:]
		return k, nil
	}
	return KeyNone, nil
}

// Press queues a key for the next Present.
func (h *Headless) Press(key int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keys = append(h.keys, key)
}

// Last returns a copy of the last presented frame and its overlay calls.
func (h *Headless) Last() (*image.RGBA, []Op) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.last == nil {
		return nil, nil
	}
	cp := *h.last
	cp.Pix = append([]uint8(nil), h.last.Pix...)
	return &cp, append([]Op(nil), h.ops...)
}

// Frames returns how many frames were presented.
func (h *Headless) Frames() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}

// Close implements Display.
func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
