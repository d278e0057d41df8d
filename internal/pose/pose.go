// Package pose estimates the 3D pose of a square planar marker from its four
// image corners and projects simple overlays (a cube) back into the image.
//
// Coordinate frames:
//   - camera: x right, y down, z forward (pinhole model).
//   - marker: origin at the marker centre, x right, y up, z out of the
//     marker towards the camera. Units follow the marker width.
package pose

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/e7canasta/qrcam/internal/geom"
)

var (
	ErrTooFewCorners = errors.New("pose: need four corners")
	ErrDegenerate    = errors.New("pose: degenerate marker geometry")
	ErrBehindCamera  = errors.New("pose: marker behind camera")
)

// Intrinsics is a pinhole camera model without lens distortion.
type Intrinsics struct {
	Width, Height int
	Fx, Fy        float64
	Cx, Cy        float64
}

// CreateIntrinsic builds intrinsics for an image of the given size and
// horizontal field of view in degrees. The principal point is the image
// centre and pixels are square.
func CreateIntrinsic(width, height int, hfovDeg float64) Intrinsics {
	cx := float64(width) / 2
	cy := float64(height) / 2
	f := cx / math.Tan(hfovDeg*math.Pi/360)
	return Intrinsics{Width: width, Height: height, Fx: f, Fy: f, Cx: cx, Cy: cy}
}

// Normalize maps a pixel to normalized image coordinates (z = 1 plane).
func (k Intrinsics) Normalize(p geom.Point) (x, y float64) {
	return (p.X - k.Cx) / k.Fx, (p.Y - k.Cy) / k.Fy
}

// Pixel projects a camera-frame point. ok is false when the point is not in
// front of the camera.
func (k Intrinsics) Pixel(c r3.Vector) (p geom.Point, ok bool) {
	if c.Z <= 0 {
		return geom.Point{}, false
	}
	return geom.Pt(k.Fx*c.X/c.Z+k.Cx, k.Fy*c.Y/c.Z+k.Cy), true
}

// Se3 is a rigid transform p' = R*p + T. R is stored by rows.
type Se3 struct {
	R [3]r3.Vector
	T r3.Vector
}

// Apply transforms p.
func (s Se3) Apply(p r3.Vector) r3.Vector {
	return r3.Vector{X: s.R[0].Dot(p), Y: s.R[1].Dot(p), Z: s.R[2].Dot(p)}.Add(s.T)
}

func fromColumns(c0, c1, c2 r3.Vector) [3]r3.Vector {
	return [3]r3.Vector{
		{X: c0.X, Y: c1.X, Z: c2.X},
		{X: c0.Y, Y: c1.Y, Z: c2.Y},
		{X: c0.Z, Y: c1.Z, Z: c2.Z},
	}
}

// MarkerCorners returns the marker-frame corners for a marker of the given
// width, ordered top-left, top-right, bottom-right, bottom-left.
func MarkerCorners(width float64) [4]r3.Vector {
	r := width / 2
	return [4]r3.Vector{
		{X: -r, Y: r},
		{X: r, Y: r},
		{X: r, Y: -r},
		{X: -r, Y: -r},
	}
}

// Estimate recovers the marker-to-camera transform from the four image
// corners (top-left, top-right, bottom-right, bottom-left) of a square marker
// of the given width.
func Estimate(corners geom.Polygon, markerWidth float64, k Intrinsics) (Se3, error) {
	if len(corners) < 4 {
		return Se3{}, fmt.Errorf("%w: got %d", ErrTooFewCorners, len(corners))
	}
	if markerWidth <= 0 {
		return Se3{}, fmt.Errorf("%w: marker width %v", ErrDegenerate, markerWidth)
	}

	model := MarkerCorners(markerWidth)
	var a [8][9]float64
	for i := 0; i < 4; i++ {
		X, Y := model[i].X, model[i].Y
		x, y := k.Normalize(corners[i])
		a[2*i] = [9]float64{X, Y, 1, 0, 0, 0, -x * X, -x * Y, x}
		a[2*i+1] = [9]float64{0, 0, 0, X, Y, 1, -y * X, -y * Y, y}
	}
	h, ok := solve8(a)
	if !ok {
		return Se3{}, ErrDegenerate
	}

	h1 := r3.Vector{X: h[0], Y: h[3], Z: h[6]}
	h2 := r3.Vector{X: h[1], Y: h[4], Z: h[7]}
	h3 := r3.Vector{X: h[2], Y: h[5], Z: 1}

	n1, n2 := h1.Norm(), h2.Norm()
	if n1 < 1e-12 || n2 < 1e-12 {
		return Se3{}, ErrDegenerate
	}
	lambda := 2 / (n1 + n2)
	r1, r2, t := h1.Mul(lambda), h2.Mul(lambda), h3.Mul(lambda)
	if t.Z < 0 {
		r1, r2, t = r1.Mul(-1), r2.Mul(-1), t.Mul(-1)
	}

	// Gram-Schmidt onto the closest right-handed rotation.
	r1 = r1.Normalize()
	r2 = r2.Sub(r1.Mul(r1.Dot(r2)))
	if r2.Norm() < 1e-12 {
		return Se3{}, ErrDegenerate
	}
	r2 = r2.Normalize()
	r3v := r1.Cross(r2)

	pose := Se3{R: fromColumns(r1, r2, r3v), T: t}
	for _, c := range model {
		if pose.Apply(c).Z <= 0 {
			return Se3{}, ErrBehindCamera
		}
	}
	return pose, nil
}

// solve8 solves the 8x8 system held in the augmented matrix a using Gaussian
// elimination with partial pivoting.
func solve8(a [8][9]float64) ([8]float64, bool) {
	const n = 8
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return [8]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c <= n; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	var x [8]float64
	for r := n - 1; r >= 0; r-- {
		sum := a[r][n]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x, true
}

// Project maps a marker-frame point into the image.
func Project(k Intrinsics, pose Se3, p r3.Vector) (geom.Point, bool) {
	return k.Pixel(pose.Apply(p))
}

// Cube projects the 12 edges of a cube of side width sitting on the marker
// and extending towards the camera. ok is false if any vertex is not in
// front of the camera.
func Cube(k Intrinsics, pose Se3, width float64) (edges []geom.Segment, ok bool) {
	base := MarkerCorners(width)
	var px [8]geom.Point
	for i, c := range base {
		if px[i], ok = Project(k, pose, c); !ok {
			return nil, false
		}
		top := c
		top.Z = width
		if px[i+4], ok = Project(k, pose, top); !ok {
			return nil, false
		}
	}

	edges = make([]geom.Segment, 0, 12)
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		edges = append(edges,
			geom.Segment{A: px[i], B: px[j]},
			geom.Segment{A: px[i+4], B: px[j+4]},
			geom.Segment{A: px[i], B: px[i+4]},
		)
	}
	return edges, true
}

// Marker is one estimated marker ready for drawing.
type Marker struct {
	Message string
	Bounds  geom.Polygon
	Pose    Se3
	Cube    []geom.Segment
}
