// Package cvwindow implements render.Display with an OpenCV HighGUI window.
//
// HighGUI must be driven from the main goroutine on most platforms, so
// Present and Close belong to whoever owns the render loop.
package cvwindow

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/e7canasta/qrcam/internal/geom"
	"github.com/e7canasta/qrcam/internal/render"
)

// Window is an OpenCV window.
type Window struct {
	win   *gocv.Window
	bgr   gocv.Mat
	delay int // WaitKey milliseconds

	view   image.Point // zero shows frames at their own size
	scaled gocv.Mat
	fitted gocv.Mat
}

var _ render.Display = (*Window)(nil)

// Open creates a window. fps bounds how long Present waits for a key.
func Open(title string, fps int) *Window {
	delay := 1
	if fps > 0 {
		delay = max(1, int(time.Second/time.Duration(fps)/time.Millisecond))
	}
	return &Window{
		win:    gocv.NewWindow(title),
		bgr:    gocv.NewMat(),
		delay:  delay,
		scaled: gocv.NewMat(),
		fitted: gocv.NewMat(),
	}
}

// SetView fixes the window content size. Frames are scaled to fit, centred
// and padded black.
func (w *Window) SetView(view image.Point) {
	w.view = view
}

// Present implements render.Display.
func (w *Window) Present(bitmap *image.RGBA, overlay func(render.Canvas)) (int, error) {
	if !w.win.IsOpen() {
		return render.KeyNone, render.ErrClosed
	}
	if bitmap != nil && !bitmap.Rect.Empty() {
		b := bitmap.Rect
		rgba, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, bitmap.Pix)
		if err != nil {
			return render.KeyNone, fmt.Errorf("cvwindow: wrap bitmap: %w", err)
		}
		gocv.CvtColor(rgba, &w.bgr, gocv.ColorRGBAToBGR)
		rgba.Close()
	}
	return w.PresentMat(&w.bgr, overlay)
}

// PresentMat shows a BGR Mat directly, drawing the overlay into it.
func (w *Window) PresentMat(mat *gocv.Mat, overlay func(render.Canvas)) (int, error) {
	if !w.win.IsOpen() {
		return render.KeyNone, render.ErrClosed
	}
	if mat.Empty() {
		return w.waitKey(), nil
	}
	shown, tr := w.fit(mat)
	if overlay != nil {
		c := NewCanvas(shown)
		c.Transform = tr
		overlay(c)
	}
	w.win.IMShow(*shown)
	return w.waitKey(), nil
}

// fit letterboxes mat into the view. Without a view, or when the sizes
// already match, mat is shown as is.
func (w *Window) fit(mat *gocv.Mat) (*gocv.Mat, render.Transform) {
	src := image.Pt(mat.Cols(), mat.Rows())
	if w.view == (image.Point{}) || src == w.view {
		return mat, render.Transform{}
	}

	tr, lb := render.FitLetterbox(src, w.view)
	gocv.Resize(*mat, &w.scaled, lb.Size, 0, 0, gocv.InterpolationLinear)
	gocv.CopyMakeBorder(w.scaled, &w.fitted, lb.Top, lb.Bottom, lb.Left, lb.Right,
		gocv.BorderConstant, color.RGBA{A: 0xFF})
	return &w.fitted, tr
}

func (w *Window) waitKey() int {
	k := w.win.WaitKey(w.delay)
	if k < 0 {
		return render.KeyNone
	}
	return k
}

// Show implements permission.Dialog: the message on a black background
// until any key is pressed.
func (w *Window) Show(message string) {
	img := gocv.NewMatWithSize(120, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	gocv.PutText(&img, message, image.Pt(16, 64), gocv.FontHersheyPlain, render.TextScale, render.MessageText, 2)
	w.win.IMShow(img)
	w.win.WaitKey(0)
}

// Close implements render.Display.
func (w *Window) Close() error {
	w.bgr.Close()
	w.scaled.Close()
	w.fitted.Close()
	return w.win.Close()
}

// Canvas draws directly into a BGR Mat.
type Canvas struct {
	Transform render.Transform
	mat       *gocv.Mat
}

// NewCanvas wraps mat. Drawing mutates it.
func NewCanvas(mat *gocv.Mat) *Canvas {
	return &Canvas{mat: mat}
}

func (c *Canvas) Size() image.Point {
	return image.Pt(c.mat.Cols(), c.mat.Rows())
}

func (c *Canvas) DrawText(text string, at image.Point, col color.RGBA, scale float64) {
	gocv.PutText(c.mat, text, at, gocv.FontHersheyPlain, scale, col, 2)
}

// FillPolygon blends col into the polygon using its alpha.
func (c *Canvas) FillPolygon(p geom.Polygon, col color.RGBA) {
	pts := gocv.NewPointsVectorFromPoints([][]image.Point{c.Transform.Polygon(p).Image()})
	defer pts.Close()

	if col.A == 0xFF {
		gocv.FillPoly(c.mat, pts, col)
		return
	}
	layer := c.mat.Clone()
	defer layer.Close()

	gocv.FillPoly(&layer, pts, col)
	alpha := float64(col.A) / 0xFF
	gocv.AddWeighted(layer, alpha, *c.mat, 1-alpha, 0, c.mat)
}

func (c *Canvas) DrawPolygon(p geom.Polygon, col color.RGBA, thickness int) {
	pts := gocv.NewPointsVectorFromPoints([][]image.Point{c.Transform.Polygon(p).Image()})
	defer pts.Close()

	gocv.Polylines(c.mat, pts, true, col, thickness)
}

func (c *Canvas) DrawLine(a, b geom.Point, col color.RGBA, thickness int) {
	gocv.Line(c.mat, c.Transform.Apply(a).Image(), c.Transform.Apply(b).Image(), col, thickness)
}
