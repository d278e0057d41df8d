// Command qrcreate encodes a message as a QR code, renders it at a fixed
// number of pixels per module and shows or saves it.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"

	"github.com/e7canasta/qrcam/internal/qr"
	"github.com/e7canasta/qrcam/internal/raster"
	"github.com/e7canasta/qrcam/internal/render"
	"github.com/e7canasta/qrcam/internal/render/cvwindow"
)

func main() {
	message := flag.String("message", qr.DefaultMessage, "Text to encode")
	ppm := flag.Int("scale", qr.DefaultPixelsPerModule, "Pixels per module")
	output := flag.String("output", "", "Save the code as PNG to this path")
	noWindow := flag.Bool("no-window", false, "Do not show the code")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	code, err := qr.Encode(*message, qr.LevelMedium)
	if err != nil {
		slog.Error("failed to encode message", "error", err)
		os.Exit(1)
	}
	img, err := code.Render(*ppm)
	if err != nil {
		slog.Error("failed to render code", "error", err)
		os.Exit(1)
	}
	slog.Info("qr code created",
		"version", code.Version,
		"modules", code.Size(),
		"pixels", img.Bounds().Dx(),
	)

	if *output != "" {
		if err := save(*output, img); err != nil {
			slog.Error("failed to save code", "error", err)
			os.Exit(1)
		}
		slog.Info("qr code saved", "path", *output)
	}

	if *noWindow {
		return
	}

	rgba := &image.RGBA{}
	raster.GrayToRGBA(img, rgba)

	win := cvwindow.Open("Your QR Code", 30)
	defer win.Close()
	for {
		key, err := win.Present(rgba, nil)
		if err != nil || render.IsQuit(key) {
			return
		}
	}
}

func save(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
