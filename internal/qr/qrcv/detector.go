// Package qrcv binds the QR detector and image loading to OpenCV.
//
// Kept apart from package qr so that everything above it builds and tests
// without the native library.
package qrcv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/e7canasta/qrcam/internal/geom"
	"github.com/e7canasta/qrcam/internal/qr"
)

// Detector wraps the OpenCV multi-code QR detector.
type Detector struct {
	det    gocv.QRCodeDetector
	points gocv.Mat
}

var _ qr.Detector = (*Detector)(nil)

// NewDetector allocates the native detector. Call Close when done.
func NewDetector() *Detector {
	return &Detector{
		det:    gocv.NewQRCodeDetector(),
		points: gocv.NewMat(),
	}
}

// Process detects and decodes all codes in img. Codes that are located but
// fail to decode are not reported.
func (d *Detector) Process(img *image.Gray) ([]qr.Detection, error) {
	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, fmt.Errorf("qrcv: gray to mat: %w", err)
	}
	defer mat.Close()

	return d.ProcessMat(mat)
}

// ProcessMat is Process for a frame already held in a Mat (gray or BGR).
func (d *Detector) ProcessMat(mat gocv.Mat) ([]qr.Detection, error) {
	var decoded []string
	var codes []gocv.Mat
	found := d.det.DetectAndDecodeMulti(mat, &decoded, &d.points, &codes)
	for _, c := range codes {
		c.Close()
	}
	if !found || d.points.Empty() {
		return nil, nil
	}

	// One row per code, four corners of two float32 each.
	corners, err := d.points.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("qrcv: read corners: %w", err)
	}

	out := make([]qr.Detection, 0, len(decoded))
	for i, msg := range decoded {
		if msg == "" || len(corners) < (i+1)*8 {
			continue
		}
		quad := corners[i*8 : (i+1)*8]
		bounds := make(geom.Polygon, 4)
		for k := range bounds {
			bounds[k] = geom.Pt(float64(quad[2*k]), float64(quad[2*k+1]))
		}
		out = append(out, qr.Detection{Bounds: bounds, Message: msg})
	}
	return out, nil
}

// Close releases native memory.
func (d *Detector) Close() error {
	d.points.Close()
	return d.det.Close()
}
