// Package scan walks a directory tree and decodes every QR code it finds in
// image files.
package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/e7canasta/qrcam/internal/qr"
	"github.com/e7canasta/qrcam/internal/stats"
)

var ErrNoDetector = errors.New("scan: detector is required")

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
	".tif":  true,
	".tiff": true,
}

// IsImage reports whether path has a known image extension.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// Loader reads an image file as 8-bit gray.
type Loader func(path string) (*image.Gray, error)

// Result is the outcome for one image.
type Result struct {
	Path     string
	Messages []string
	Elapsed  time.Duration
}

// Summary totals a scan.
type Summary struct {
	Images   int
	Messages int
	Failed   int
	Elapsed  time.Duration
	Results  []Result
}

// ImagesPerSecond is the scan throughput.
func (s Summary) ImagesPerSecond() float64 {
	return stats.Rate(s.Images, s.Elapsed)
}

func (s Summary) String() string {
	return fmt.Sprintf("Found %d images with %d messages averaging %.2f img/s",
		s.Images, s.Messages, s.ImagesPerSecond())
}

// Scanner decodes QR codes in every image below a root directory.
type Scanner struct {
	Load     Loader
	Detector qr.Detector
	// OnImage, when set, is called after each image is processed.
	OnImage func(Result)
}

// Scan walks root recursively. Files that fail to load or decode are logged
// and counted, never fatal. Cancelling ctx stops the walk and returns the
// partial summary with ctx.Err().
func (s *Scanner) Scan(ctx context.Context, root string) (Summary, error) {
	if s.Detector == nil || s.Load == nil {
		return Summary{}, ErrNoDetector
	}

	var sum Summary
	start := time.Now()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			slog.Warn("scan: skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !IsImage(path) {
			return nil
		}

		res, err := s.scanFile(path)
		if err != nil {
			sum.Failed++
			slog.Warn("scan: image failed", "path", path, "error", err)
			return nil
		}

		sum.Images++
		sum.Messages += len(res.Messages)
		sum.Results = append(sum.Results, res)
		if s.OnImage != nil {
			s.OnImage(res)
		}
		return nil
	})

	sum.Elapsed = time.Since(start)
	if err != nil {
		return sum, fmt.Errorf("scan: %s: %w", root, err)
	}

	slog.Info("scan: complete",
		"root", root,
		"images", sum.Images,
		"messages", sum.Messages,
		"failed", sum.Failed,
		"images_per_second", sum.ImagesPerSecond(),
	)
	return sum, nil
}

func (s *Scanner) scanFile(path string) (Result, error) {
	t0 := time.Now()

	img, err := s.Load(path)
	if err != nil {
		return Result{}, fmt.Errorf("load: %w", err)
	}
	dets, err := s.Detector.Process(img)
	if err != nil {
		return Result{}, fmt.Errorf("detect: %w", err)
	}

	res := Result{Path: path, Elapsed: time.Since(t0)}
	for _, d := range dets {
		res.Messages = append(res.Messages, d.Message)
	}
	return res, nil
}
