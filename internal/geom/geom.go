// Package geom holds the 2D shapes exchanged between detectors, pose
// estimation and rendering.
package geom

import (
	"image"
	"math"
)

// Point is a sub-pixel image coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Image rounds p to the nearest integer pixel.
func (p Point) Image() image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// Polygon is a closed polygon; the last vertex connects back to the first.
type Polygon []Point

// Image returns the polygon rounded to integer pixels.
func (p Polygon) Image() []image.Point {
	out := make([]image.Point, len(p))
	for i, v := range p {
		out[i] = v.Image()
	}
	return out
}

// Clone returns a copy that does not share storage with p.
func (p Polygon) Clone() Polygon {
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// Segment is a line between two image points.
type Segment struct {
	A, B Point
}
