package activity

import (
	"fmt"
	"image"
	"sync"

	"github.com/e7canasta/qrcam/handoff"
	"github.com/e7canasta/qrcam/internal/capture"
	"github.com/e7canasta/qrcam/internal/geom"
	"github.com/e7canasta/qrcam/internal/qr"
	"github.com/e7canasta/qrcam/internal/raster"
	"github.com/e7canasta/qrcam/internal/render"
	"github.com/e7canasta/qrcam/internal/resultbus"
	"github.com/e7canasta/qrcam/internal/stats"
)

// QrProcessor detects QR codes and outlines them over the camera image.
type QrProcessor struct {
	detector qr.Detector
	events   *resultbus.Bus[qr.Event]

	// timeDetection averages detector time in milliseconds.
	timeDetection *stats.MovingAverage

	found   *handoff.ResultList[geom.Polygon]
	mu      sync.Mutex // guards message
	message string     // most recently decoded
}

var _ Processor = (*QrProcessor)(nil)

// NewQrProcessor uses detector for every frame. When events is not nil each
// processed frame is published on it.
func NewQrProcessor(detector qr.Detector, events *resultbus.Bus[qr.Event]) *QrProcessor {
	return &QrProcessor{
		detector:      detector,
		events:        events,
		timeDetection: stats.NewMovingAverage(stats.DefaultDecay),
		found:         handoff.NewResultList[geom.Polygon](4),
	}
}

func (q *QrProcessor) Reshape(int, int) {}

func (q *QrProcessor) Process(frame capture.Frame) error {
	var (
		dets []qr.Detection
		err  error
	)
	q.timeDetection.Measure(func() {
		dets, err = q.detector.Process(frame.Gray())
	})
	if err != nil {
		return fmt.Errorf("qr detect: %w", err)
	}

	bounds := make([]geom.Polygon, len(dets))
	for i, d := range dets {
		bounds[i] = d.Bounds.Clone()
	}
	q.found.Replace(bounds)
	if n := len(dets); n > 0 {
		q.mu.Lock()
		q.message = dets[n-1].Message
		q.mu.Unlock()
	}

	if q.events != nil {
		q.events.Publish(qr.Event{
			Seq:        frame.Seq,
			Timestamp:  frame.Timestamp,
			TraceID:    frame.TraceID,
			Width:      frame.Width,
			Height:     frame.Height,
			Detections: dets,
		})
	}
	return nil
}

func (q *QrProcessor) Render(gray *image.Gray, dst *image.RGBA) {
	raster.GrayToRGBA(gray, dst)
}

// Draw shows detector timing, the found outlines and, while something is in
// view, the latest message.
func (q *QrProcessor) Draw(c render.Canvas) {
	c.DrawText(fmt.Sprintf("detector: %4.1f (ms)", q.DetectorMS()),
		image.Pt(180, 170), render.InfoText, render.TextScale)

	var visible bool
	q.found.View(func(items []geom.Polygon) {
		for _, p := range items {
			render.DrawDetection(c, p)
		}
		visible = len(items) > 0
	})
	if visible {
		drawMessage(c, q.Message())
	}
}

// Message returns the most recently decoded message.
func (q *QrProcessor) Message() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.message
}

// DetectorMS is the average detection time in milliseconds.
func (q *QrProcessor) DetectorMS() float64 { return q.timeDetection.Average() }

// drawMessage writes msg along the bottom of the view.
func drawMessage(c render.Canvas, msg string) {
	if msg == "" {
		return
	}
	size := c.Size()
	c.DrawText(msg, image.Pt(10, max(size.Y-20, 0)), render.MessageText, render.TextScale)
}
