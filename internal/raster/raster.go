// Package raster provides reusable frame buffers. Dimensions change only on a
// capture resolution change; reshaping reuses the backing array whenever it
// is large enough so steady-state frames allocate nothing.
package raster

import "image"

// GrayS16 is a signed 16-bit single band image (gradient storage).
type GrayS16 struct {
	Width  int
	Height int
	Pix    []int16 // row-major, len = Width*Height
}

// NewGrayS16 allocates a zeroed w x h image.
func NewGrayS16(w, h int) *GrayS16 {
	g := &GrayS16{}
	g.Reshape(w, h)
	return g
}

// Reshape sets the dimensions, growing Pix only when needed.
func (g *GrayS16) Reshape(w, h int) {
	g.Width, g.Height = w, h
	g.Pix = resize(g.Pix, w*h)
}

// At returns the value at (x, y).
func (g *GrayS16) At(x, y int) int16 { return g.Pix[y*g.Width+x] }

// Set stores v at (x, y).
func (g *GrayS16) Set(x, y int, v int16) { g.Pix[y*g.Width+x] = v }

// MaxAbs returns the largest absolute value.
func (g *GrayS16) MaxAbs() int {
	m := 0
	for _, v := range g.Pix {
		a := int(v)
		if a < 0 {
			a = -a
		}
		if a > m {
			m = a
		}
	}
	return m
}

// ReshapeRGBA resizes img in place to w x h with a tight stride.
func ReshapeRGBA(img *image.RGBA, w, h int) {
	img.Pix = resize(img.Pix, 4*w*h)
	img.Stride = 4 * w
	img.Rect = image.Rect(0, 0, w, h)
}

// SameSize reports whether r is exactly w x h anchored at the origin.
func SameSize(r image.Rectangle, w, h int) bool {
	return r.Min == image.Point{} && r.Dx() == w && r.Dy() == h
}

// GrayToRGBA writes src into dst as opaque gray, reshaping dst if needed.
func GrayToRGBA(src *image.Gray, dst *image.RGBA) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if !SameSize(dst.Rect, w, h) {
		ReshapeRGBA(dst, w, h)
	}
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+4*w]
		for x, v := range row {
			i := 4 * x
			out[i], out[i+1], out[i+2], out[i+3] = v, v, v, 0xFF
		}
	}
}

func resize[T any](s []T, n int) []T {
	if cap(s) >= n {
		return s[:n]
	}
	return make([]T, n)
}
