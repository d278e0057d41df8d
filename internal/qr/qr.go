// Package qr detects, decodes and generates QR codes.
//
// Detection is delegated to OpenCV (see qrcv). Encoding uses go-qrcode and
// renders the module grid at an integer pixel scale.
package qr

import (
	"image"
	"time"

	"github.com/e7canasta/qrcam/internal/geom"
)

// Detection is one decoded marker.
type Detection struct {
	// Bounds holds the four corners in image pixels, in detector order
	// (top-left, top-right, bottom-right, bottom-left of the marker).
	Bounds  geom.Polygon `json:"bounds"`
	Message string       `json:"message"`
}

// Detector finds and decodes every QR code in a gray image.
//
// A Detector is not safe for concurrent use; each processing goroutine owns
// its own instance.
type Detector interface {
	Process(img *image.Gray) ([]Detection, error)
	Close() error
}

// Event is the result of processing one frame, published on the result bus.
type Event struct {
	Seq        uint64      `json:"seq"`
	Timestamp  time.Time   `json:"timestamp"`
	TraceID    string      `json:"trace_id"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Detections []Detection `json:"detections"`
}

// Messages returns the decoded messages in detection order.
func (e Event) Messages() []string {
	out := make([]string, len(e.Detections))
	for i, d := range e.Detections {
		out[i] = d.Message
	}
	return out
}
