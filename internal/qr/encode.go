package qr

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/gift"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	// DefaultMessage is what the generator encodes when none is given.
	DefaultMessage = "Hello World! こんにちは、 世界！"

	// DefaultPixelsPerModule is the rendering scale of one QR module.
	DefaultPixelsPerModule = 15
)

// Level is the error correction level.
type Level = qrcode.RecoveryLevel

// Error correction levels, from 7% to 30% recoverable.
const (
	LevelLow     Level = qrcode.Low
	LevelMedium  Level = qrcode.Medium
	LevelHigh    Level = qrcode.High
	LevelHighest Level = qrcode.Highest
)

var ErrInvalidScale = errors.New("qr: pixels per module must be positive")

// Code is an encoded QR symbol.
type Code struct {
	Message string
	Version int
	modules [][]bool // true = dark, includes the quiet zone
}

// Encode builds the symbol for message at the given correction level.
func Encode(message string, level Level) (*Code, error) {
	q, err := qrcode.New(message, level)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return &Code{Message: message, Version: q.VersionNumber, modules: q.Bitmap()}, nil
}

// Size is the width of the module grid, quiet zone included.
func (c *Code) Size() int { return len(c.modules) }

// Dark reports whether module (x, y) is dark.
func (c *Code) Dark(x, y int) bool { return c.modules[y][x] }

// Modules renders the grid at one pixel per module (dark = 0, light = 255).
func (c *Code) Modules() *image.Gray {
	n := c.Size()
	img := image.NewGray(image.Rect(0, 0, n, n))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if !c.Dark(x, y) {
				img.SetGray(x, y, color.Gray{Y: 0xFF})
			}
		}
	}
	return img
}

// Render scales the module grid to pixelsPerModule using nearest neighbour
// sampling so module edges stay sharp.
func (c *Code) Render(pixelsPerModule int) (*image.Gray, error) {
	if pixelsPerModule <= 0 {
		return nil, ErrInvalidScale
	}
	src := c.Modules()
	side := c.Size() * pixelsPerModule

	g := gift.New(gift.Resize(side, side, gift.NearestNeighborResampling))
	dst := image.NewGray(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst, nil
}
