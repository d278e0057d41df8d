// Command qrwebcam reads the default webcam at 800x600, detects QR codes in
// every frame and outlines them in red. ESC or q quits.
package main

import (
	"flag"
	"log/slog"
	"os"

	"gocv.io/x/gocv"

	"github.com/e7canasta/qrcam/internal/capture"
	"github.com/e7canasta/qrcam/internal/capture/webcam"
	"github.com/e7canasta/qrcam/internal/permission"
	"github.com/e7canasta/qrcam/internal/qr"
	"github.com/e7canasta/qrcam/internal/qr/qrcv"
	"github.com/e7canasta/qrcam/internal/render"
	"github.com/e7canasta/qrcam/internal/render/cvwindow"
)

func main() {
	device := flag.Int("device", 0, "Webcam index")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	win := cvwindow.Open("QR Code Webcam", 30)
	defer win.Close()

	permission.Require(permission.DeviceChecker{Path: permission.DeviceForIndex(*device)}, win, os.Exit)

	dev, err := webcam.Open(*device, []capture.Resolution{{Width: 800, Height: 600}}, 800*600)
	if err != nil {
		slog.Error("failed to open webcam", "error", err)
		os.Exit(1)
	}
	defer dev.Close()

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

		key, err := win.PresentMat(&frame, func(c render.Canvas) { outline(c, dets) })
		if err != nil || render.IsQuit(key) {
			return
		}
	}
}

func outline(c render.Canvas, dets []qr.Detection) {
	for _, d := range dets {
		c.DrawPolygon(d.Bounds, render.DetectionOutline, render.OutlineThickness)
		slog.Debug("qr detected", "message", d.Message)
	}
}
