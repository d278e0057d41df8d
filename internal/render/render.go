// Package render abstracts the window the demos paint into.
//
// A Display shows one bitmap per call and lets the caller paint overlays
// (text, detections, cubes) on top through a Canvas. The OpenCV window lives
// in render/cvwindow; Headless keeps the last frame in memory.
package render

import (
	"errors"
	"image"
	"image/color"

	"github.com/e7canasta/qrcam/internal/geom"
)

// Key codes returned by Present.
const (
	KeyNone = -1
	KeyEsc  = 27
)

// IsQuit reports whether key asks the demo to exit (ESC or q).
func IsQuit(key int) bool {
	return key == KeyEsc || key == 'q' || key == 'Q'
}

var ErrClosed = errors.New("render: display closed")

// Overlay colors and stroke used by every demo.
var (
	InfoText         = color.RGBA{R: 0xFF, G: 0xB0, B: 0x00, A: 0xFF}
	DetectionFill    = color.RGBA{R: 0x00, G: 0xFF, B: 0x00, A: 0xA0}
	DetectionOutline = color.RGBA{R: 0xFF, G: 0x00, B: 0x00, A: 0xFF}
	MessageText      = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	CubeEdge         = color.RGBA{R: 0x00, G: 0xB0, B: 0xFF, A: 0xFF}
)

const (
	OutlineThickness = 4
	TextScale        = 1.5
)

// Canvas receives overlay drawing. Geometry is in image pixels and goes
// through the canvas Transform; text positions are in view pixels.
type Canvas interface {
	Size() image.Point
	DrawText(text string, at image.Point, c color.RGBA, scale float64)
	FillPolygon(p geom.Polygon, c color.RGBA)
	DrawPolygon(p geom.Polygon, c color.RGBA, thickness int)
	DrawLine(a, b geom.Point, c color.RGBA, thickness int)
}

// Display shows frames.
type Display interface {
	// Present shows bitmap, runs overlay on top of it and returns the key
	// pressed while the frame was up (KeyNone if none).
	Present(bitmap *image.RGBA, overlay func(Canvas)) (key int, err error)
	Close() error
}

// Transform maps image pixels to view pixels. The zero value is the
// identity.
type Transform struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// Fit scales an image of size src to fit inside view, centred, keeping the
// aspect ratio.
func Fit(src, view image.Point) Transform {
	if src.X <= 0 || src.Y <= 0 || view.X <= 0 || view.Y <= 0 {
		return Transform{Scale: 1}
	}
	s := min(float64(view.X)/float64(src.X), float64(view.Y)/float64(src.Y))
	return Transform{
		Scale:   s,
		OffsetX: (float64(view.X) - s*float64(src.X)) / 2,
		OffsetY: (float64(view.Y) - s*float64(src.Y)) / 2,
	}
}

// Letterbox is the whole-pixel layout of an image fitted into a view: the
// scaled image size and the borders that pad it to the view.
type Letterbox struct {
	Size                     image.Point
	Top, Bottom, Left, Right int
}

// FitLetterbox is Fit rounded to whole pixels. The Transform uses the
// integer offsets of the layout so overlays land on the scaled pixels.
func FitLetterbox(src, view image.Point) (Transform, Letterbox) {
	t := Fit(src, view)
	if src.X <= 0 || src.Y <= 0 || view.X <= 0 || view.Y <= 0 {
		return t, Letterbox{Size: src}
	}

	size := image.Pt(
		min(int(float64(src.X)*t.Scale+0.5), view.X),
		min(int(float64(src.Y)*t.Scale+0.5), view.Y),
	)
	lb := Letterbox{
		Size: size,
		Left: (view.X - size.X) / 2,
		Top:  (view.Y - size.Y) / 2,
	}
	lb.Right = view.X - size.X - lb.Left
	lb.Bottom = view.Y - size.Y - lb.Top

	t.OffsetX, t.OffsetY = float64(lb.Left), float64(lb.Top)
	return t, lb
}

// Apply maps p to view pixels.
func (t Transform) Apply(p geom.Point) geom.Point {
	s := t.Scale
	if s == 0 {
		s = 1
	}
	return geom.Pt(p.X*s+t.OffsetX, p.Y*s+t.OffsetY)
}

// Polygon maps every vertex of p.
func (t Transform) Polygon(p geom.Polygon) geom.Polygon {
	out := make(geom.Polygon, len(p))
	for i, v := range p {
		out[i] = t.Apply(v)
	}
	return out
}

// DrawDetection fills a marker outline translucent green and strokes it red.
func DrawDetection(c Canvas, bounds geom.Polygon) {
	if len(bounds) < 3 {
		return
	}
	c.FillPolygon(bounds, DetectionFill)
	c.DrawPolygon(bounds, DetectionOutline, OutlineThickness)
}

// DrawCube strokes projected cube edges.
func DrawCube(c Canvas, edges []geom.Segment) {
	for _, e := range edges {
		c.DrawLine(e.A, e.B, CubeEdge, OutlineThickness/2)
	}
}
