// Command qrscan decodes every QR code found in the images below a
// directory and prints a throughput summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/e7canasta/qrcam/internal/qr/qrcv"
	"github.com/e7canasta/qrcam/internal/scan"
)

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: qrscan [-debug] <directory>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	root := flag.Arg(0)

	logLevel := slog.LevelWarn
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	detector := qrcv.NewDetector()
	defer detector.Close()

	s := &scan.Scanner{
		Load:     qrcv.LoadGray,
		Detector: detector,
		// Print so we can see something is happening.
		OnImage: func(r scan.Result) { fmt.Println(filepath.Base(r.Path)) },
	}

	sum, err := s.Scan(ctx, root)
	if err != nil {
		slog.Error("scan failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("\n%s\n", sum)
}
