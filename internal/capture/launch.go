package capture

import (
	"fmt"
	"strings"
)

// SinkName is the appsink element name in launch lines built by GstLaunch.
const SinkName = "qrcamsink"

// SourceDescription turns a user supplied camera reference into the source
// part of a GStreamer launch line:
//   - "/dev/videoN"         → v4l2src
//   - "rtsp://..."          → rtspsrc over TCP, decoded
//   - other "scheme://..."  → uridecodebin
//   - "test"                → videotestsrc
//   - anything else is taken as a launch fragment as is.
func SourceDescription(ref string) string {
	switch {
	case strings.HasPrefix(ref, "/dev/video"):
		return fmt.Sprintf("v4l2src device=%s", ref)
	case strings.HasPrefix(ref, "rtsp://"):
		return fmt.Sprintf("rtspsrc location=%s protocols=tcp latency=200 ! decodebin", ref)
	case strings.Contains(ref, "://"):
		return fmt.Sprintf("uridecodebin uri=%s", ref)
	case ref == "test":
		return "videotestsrc is-live=true"
	default:
		return ref
	}
}

// GstLaunch completes a source description into a full pipeline ending in
// an appsink that delivers GRAY8 frames of res at fps (0 keeps the source
// rate).
//
//	<source> ! videoconvert ! videoscale [! videorate] ! caps ! appsink
func GstLaunch(source string, res Resolution, fps float64) string {
	var b strings.Builder
	b.WriteString(source)
	b.WriteString(" ! videoconvert ! videoscale")
	if fps > 0 {
		b.WriteString(" ! videorate drop-only=true")
	}
	b.WriteString(" ! ")
	b.WriteString(grayCaps(res, fps))
	fmt.Fprintf(&b, " ! appsink name=%s sync=false max-buffers=1 drop=true", SinkName)
	return b.String()
}

// grayCaps handles fractional rates: 5 → 5/1, 0.5 → 1/2.
func grayCaps(res Resolution, fps float64) string {
	caps := fmt.Sprintf("video/x-raw,format=GRAY8,width=%d,height=%d", res.Width, res.Height)
	if fps <= 0 {
		return caps
	}
	num, den := 1, 1
	if fps < 1.0 {
		den = int(1.0/fps + 0.5)
	} else {
		num = int(fps)
	}
	return fmt.Sprintf("%s,framerate=%d/%d", caps, num, den)
}

// PackRows copies a frame whose rows are padded to stride bytes into a
// tight width*height buffer. GStreamer pads GRAY8 rows to 4 bytes.
func PackRows(data []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("capture: invalid frame size %dx%d", width, height)
	}
	if len(data) == width*height {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	stride := len(data) / height
	if stride < width {
		return nil, fmt.Errorf("capture: buffer of %d bytes too small for %dx%d", len(data), width, height)
	}
	out := make([]byte, width*height)
	for y := 0; y < height; y++ {
		copy(out[y*width:(y+1)*width], data[y*stride:y*stride+width])
	}
	return out, nil
}
