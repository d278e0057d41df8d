package activity

import (
	"image"

	"github.com/e7canasta/qrcam/internal/capture"
	"github.com/e7canasta/qrcam/internal/gradient"
	"github.com/e7canasta/qrcam/internal/raster"
	"github.com/e7canasta/qrcam/internal/render"
)

// GradientProcessor computes the image gradient of every frame and shows it
// colorized instead of the camera image.
type GradientProcessor struct {
	derivX *raster.GrayS16
	derivY *raster.GrayS16
}

var _ Processor = (*GradientProcessor)(nil)

// NewGradientProcessor allocates placeholder storage; Reshape sizes it.
func NewGradientProcessor() *GradientProcessor {
	return &GradientProcessor{
		derivX: raster.NewGrayS16(1, 1),
		derivY: raster.NewGrayS16(1, 1),
	}
}

func (g *GradientProcessor) Reshape(width, height int) {
	g.derivX.Reshape(width, height)
	g.derivY.Reshape(width, height)
}

func (g *GradientProcessor) Process(frame capture.Frame) error {
	gradient.Three(frame.Gray(), g.derivX, g.derivY)
	return nil
}

// Render colorizes the gradient, scaled to its largest magnitude.
func (g *GradientProcessor) Render(_ *image.Gray, dst *image.RGBA) {
	gradient.Colorize(g.derivX, g.derivY, -1, dst)
}

func (g *GradientProcessor) Draw(render.Canvas) {}
