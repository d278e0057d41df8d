// Package gradient computes image derivatives and paints them for display.
package gradient

import (
	"image"

	"github.com/e7canasta/qrcam/internal/raster"
)

// Three computes the three-point derivative [-1, 0, 1] of src along x and y.
// Samples outside the image are clamped to the nearest edge pixel.
// derivX and derivY are reshaped to the size of src. Sub-images work as is:
// src.Pix starts at src.Rect.Min.
func Three(src *image.Gray, derivX, derivY *raster.GrayS16) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	derivX.Reshape(w, h)
	derivY.Reshape(w, h)
	if w == 0 || h == 0 {
		return
	}

	pix := src.Pix
	stride := src.Stride
	at := func(x, y int) int16 { return int16(pix[y*stride+x]) }

	for y := 0; y < h; y++ {
		up := y - 1
		if up < 0 {
			up = 0
		}
		down := y + 1
		if down >= h {
			down = h - 1
		}
		row := y * w
		for x := 0; x < w; x++ {
			left := x - 1
			if left < 0 {
				left = 0
			}
			right := x + 1
			if right >= w {
				right = w - 1
			}
			derivX.Pix[row+x] = at(right, y) - at(left, y)
			derivY.Pix[row+x] = at(x, down) - at(x, up)
		}
	}
}

// Colorize paints a gradient pair into dst, reshaped to the gradient size.
//
// Positive x is red, negative x is green, positive y is blue and negative y
// is yellow. Intensities scale by 255/maxAbs and saturate. maxAbs < 0 uses
// the largest magnitude found in either image.
func Colorize(derivX, derivY *raster.GrayS16, maxAbs int, dst *image.RGBA) {
	w, h := derivX.Width, derivX.Height
	if !raster.SameSize(dst.Rect, w, h) {
		raster.ReshapeRGBA(dst, w, h)
	}
	if maxAbs < 0 {
		maxAbs = max(derivX.MaxAbs(), derivY.MaxAbs())
	}

	for i := 0; i < w*h; i++ {
		var r, g, b int
		if maxAbs > 0 {
			x, y := int(derivX.Pix[i]), int(derivY.Pix[i])
			if x > 0 {
				r = x * 255 / maxAbs
			} else {
				g = -x * 255 / maxAbs
			}
			if y > 0 {
				b = y * 255 / maxAbs
			} else {
				v := -y * 255 / maxAbs
				r += v
				g += v
			}
		}
		p := dst.Pix[4*i : 4*i+4 : 4*i+4]
		p[0] = saturate(r)
		p[1] = saturate(g)
		p[2] = saturate(b)
		p[3] = 0xFF
	}
}

func saturate(v int) uint8 {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}
