// Command qrpose estimates the 3D pose of QR codes seen by the default
// webcam and draws a cube standing on each one. ESC or q quits.
package main

import (
	"flag"
	"log/slog"
	"os"

	"gocv.io/x/gocv"

	"github.com/e7canasta/qrcam/internal/activity"
	"github.com/e7canasta/qrcam/internal/capture"
	"github.com/e7canasta/qrcam/internal/capture/webcam"
	"github.com/e7canasta/qrcam/internal/permission"
	"github.com/e7canasta/qrcam/internal/pose"
	"github.com/e7canasta/qrcam/internal/qr/qrcv"
	"github.com/e7canasta/qrcam/internal/render"
	"github.com/e7canasta/qrcam/internal/render/cvwindow"
)

func main() {
	device := flag.Int("device", 0, "Webcam index")
	fov := flag.Float64("fov", 90, "Horizontal field of view in degrees")
	markerWidth := flag.Float64("marker-width", 10, "Printed marker width, in the unit the cube is drawn in")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	win := cvwindow.Open("QR Code Pose", 30)
	defer win.Close()

	permission.Require(permission.DeviceChecker{Path: permission.DeviceForIndex(*device)}, win, os.Exit)

	dev, err := webcam.Open(*device, []capture.Resolution{{Width: 800, Height: 600}}, 800*600)
	if err != nil {
		slog.Error("failed to open webcam", "error", err)
		os.Exit(1)
	}
	defer dev.Close()

	res := dev.Resolution()
	intrinsic := pose.CreateIntrinsic(res.Width, res.Height, *fov)
	slog.Info("camera intrinsics",
		"width", intrinsic.Width,
		"height", intrinsic.Height,
		"fx", intrinsic.Fx,
		"fy", intrinsic.Fy,
	)

	detector := qrcv.NewDetector()
	defer detector.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	gray := gocv.NewMat()
	defer gray.Close()

	for {
		if !dev.Read(&frame) {
			slog.Error("webcam stopped delivering frames")
			os.Exit(1)
		}
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

		dets, err := detector.ProcessMat(gray)
		if err != nil {
			slog.Warn("detection failed", "error", err)
		}

		var markers []pose.Marker
		for _, d := range dets {
			m, err := activity.EstimateMarker(d, *markerWidth, intrinsic)
			if err != nil {
				continue
			}
			markers = append(markers, m)
		}

		key, err := win.PresentMat(&frame, func(c render.Canvas) {
			for _, m := range markers {
				render.DrawCube(c, m.Cube)
			}
		})
		if err != nil || render.IsQuit(key) {
			return
		}
	}
}
