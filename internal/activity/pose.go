package activity

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/e7canasta/qrcam/handoff"
	"github.com/e7canasta/qrcam/internal/capture"
	"github.com/e7canasta/qrcam/internal/pose"
	"github.com/e7canasta/qrcam/internal/qr"
	"github.com/e7canasta/qrcam/internal/raster"
	"github.com/e7canasta/qrcam/internal/render"
	"github.com/e7canasta/qrcam/internal/stats"
)

// PoseProcessor estimates the 3D pose of every QR code and draws a cube
// standing on it.
type PoseProcessor struct {
	detector    qr.Detector
	markerWidth float64
	fovDeg      float64

	intrinsic     pose.Intrinsics
	timeDetection *stats.MovingAverage
	markers       *handoff.ResultList[pose.Marker]
}

var _ Processor = (*PoseProcessor)(nil)

// NewPoseProcessor estimates poses for markers markerWidth wide, seen by a
// camera with the given horizontal field of view.
func NewPoseProcessor(detector qr.Detector, markerWidth, fovDeg float64) *PoseProcessor {
	return &PoseProcessor{
		detector:      detector,
		markerWidth:   markerWidth,
		fovDeg:        fovDeg,
		timeDetection: stats.NewMovingAverage(stats.DefaultDecay),
		markers:       handoff.NewResultList[pose.Marker](4),
	}
}

// Reshape recomputes the intrinsics for the new image size.
func (p *PoseProcessor) Reshape(width, height int) {
	p.intrinsic = pose.CreateIntrinsic(width, height, p.fovDeg)
}

func (p *PoseProcessor) Process(frame capture.Frame) error {
	var (
		dets []qr.Detection
		err  error
	)
	p.timeDetection.Measure(func() {
		dets, err = p.detector.Process(frame.Gray())
	})
	if err != nil {
		return fmt.Errorf("qr detect: %w", err)
	}

	markers := make([]pose.Marker, 0, len(dets))
	for _, d := range dets {
		m, err := EstimateMarker(d, p.markerWidth, p.intrinsic)
		if err != nil {
			slog.Debug("activity: pose skipped", "message", d.Message, "error", err)
			continue
		}
		markers = append(markers, m)
	}
	p.markers.Replace(markers)
	return nil
}

func (p *PoseProcessor) Render(gray *image.Gray, dst *image.RGBA) {
	raster.GrayToRGBA(gray, dst)
}

func (p *PoseProcessor) Draw(c render.Canvas) {
	c.DrawText(fmt.Sprintf("detector: %4.1f (ms)", p.DetectorMS()),
		image.Pt(180, 170), render.InfoText, render.TextScale)

	p.markers.View(func(items []pose.Marker) {
		for _, m := range items {
			render.DrawCube(c, m.Cube)
		}
	})
}

// DetectorMS is the average detection time in milliseconds.
func (p *PoseProcessor) DetectorMS() float64 { return p.timeDetection.Average() }

// EstimateMarker solves the pose of one detection and projects its cube.
func EstimateMarker(d qr.Detection, markerWidth float64, k pose.Intrinsics) (pose.Marker, error) {
	se3, err := pose.Estimate(d.Bounds, markerWidth, k)
	if err != nil {
		return pose.Marker{}, err
	}
	cube, ok := pose.Cube(k, se3, markerWidth)
	if !ok {
		return pose.Marker{}, pose.ErrBehindCamera
	}
	return pose.Marker{
		Message: d.Message,
		Bounds:  d.Bounds.Clone(),
		Pose:    se3,
		Cube:    cube,
	}, nil
}
