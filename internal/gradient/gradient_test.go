package gradient

import (
	"image"
	"image/color"
	"testing"

	"github.com/e7canasta/qrcam/internal/raster"
)

func TestThreeHorizontalRamp(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 5, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			src.SetGray(x, y, color.Gray{Y: uint8(10 * x)})
		}
	}

	var dx, dy raster.GrayS16
	Three(src, &dx, &dy)

	if dx.Width != 5 || dx.Height != 3 || dy.Width != 5 || dy.Height != 3 {
		t.Fatalf("destinations not reshaped: dx=%dx%d dy=%dx%d", dx.Width, dx.Height, dy.Width, dy.Height)
	}

	// Interior pixels see 20, borders see 10 (clamped neighbour).
	want := []int16{10, 20, 20, 20, 10}
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			if got := dx.At(x, y); got != want[x] {
				t.Errorf("dx(%d,%d) = %d, expected %d", x, y, got, want[x])
			}
			if got := dy.At(x, y); got != 0 {
				t.Errorf("dy(%d,%d) = %d, expected 0", x, y, got)
			}
		}
	}
}

func TestThreeVerticalEdgeIsNegative(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2, 4))
	for x := 0; x < 2; x++ {
		src.SetGray(x, 0, color.Gray{Y: 200})
		src.SetGray(x, 1, color.Gray{Y: 200})
	}

	var dx, dy raster.GrayS16
	Three(src, &dx, &dy)

	if got := dy.At(0, 1); got != -200 {
		t.Errorf("dy(0,1) = %d, expected -200", got)
	}
	if got := dy.At(0, 2); got != -200 {
		t.Errorf("dy(0,2) = %d, expected -200", got)
	}
	if got := dy.At(0, 0); got != 0 {
		t.Errorf("dy(0,0) = %d, expected 0", got)
	}
}

func TestThreeSubImage(t *testing.T) {
	full := image.NewGray(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			full.SetGray(x, y, color.Gray{Y: uint8(x*x + 7*y)})
		}
	}
	sub := full.SubImage(image.Rect(2, 1, 5, 3)).(*image.Gray)

	// Same pixels copied into an image anchored at the origin.
	flat := image.NewGray(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			flat.SetGray(x, y, full.GrayAt(x+2, y+1))
		}
	}

	var sdx, sdy, fdx, fdy raster.GrayS16
	Three(sub, &sdx, &sdy)
	Three(flat, &fdx, &fdy)

	for i := range fdx.Pix {
		if sdx.Pix[i] != fdx.Pix[i] || sdy.Pix[i] != fdy.Pix[i] {
			t.Fatalf("pixel %d: sub-image (%d,%d), expected (%d,%d)",
				i, sdx.Pix[i], sdy.Pix[i], fdx.Pix[i], fdy.Pix[i])
		}
	}
}

func TestThreeReusesStorage(t *testing.T) {
	dx := raster.NewGrayS16(8, 8)
	dy := raster.NewGrayS16(8, 8)
	before := &dx.Pix[0]

	Three(image.NewGray(image.Rect(0, 0, 4, 4)), dx, dy)

	if &dx.Pix[0] != before {
		t.Errorf("expected smaller reshape to reuse backing array")
	}
	if len(dx.Pix) != 16 {
		t.Errorf("expected 16 pixels, got %d", len(dx.Pix))
	}
}

func TestColorizeDirections(t *testing.T) {
	dx := raster.NewGrayS16(4, 1)
	dy := raster.NewGrayS16(4, 1)
	dx.Pix = []int16{100, -100, 0, 0}
	dy.Pix = []int16{0, 0, 100, -100}

	var dst image.RGBA
	Colorize(dx, dy, -1, &dst)

	want := []color.RGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
		{R: 255, G: 255, A: 255},
	}
	for i, w := range want {
		if got := dst.RGBAAt(i, 0); got != w {
			t.Errorf("pixel %d = %v, expected %v", i, got, w)
		}
	}
}

func TestColorizeSaturates(t *testing.T) {
	dx := raster.NewGrayS16(1, 1)
	dy := raster.NewGrayS16(1, 1)
	dx.Pix[0] = 400

	dst := image.NewRGBA(image.Rect(0, 0, 1, 1))
	Colorize(dx, dy, 100, dst)

	if got := dst.RGBAAt(0, 0).R; got != 255 {
		t.Errorf("expected saturated red, got %d", got)
	}
}

func TestColorizeFlatImageIsBlack(t *testing.T) {
	dx := raster.NewGrayS16(3, 3)
	dy := raster.NewGrayS16(3, 3)

	var dst image.RGBA
	Colorize(dx, dy, -1, &dst)

	for i := 0; i < 9; i++ {
		if got := dst.RGBAAt(i%3, i/3); got != (color.RGBA{A: 255}) {
			t.Fatalf("pixel %d = %v, expected opaque black", i, got)
		}
	}
}
