package capture

import "strings"

// ErrorCategory classifies backend errors for telemetry and for deciding
// whether a reconnect can help.
type ErrorCategory int

const (
	// ErrCategoryNetwork: connection, timeout, DNS. Reconnect usually helps.
	ErrCategoryNetwork ErrorCategory = iota
	// ErrCategoryCodec: decode or caps negotiation failures.
	ErrCategoryCodec
	// ErrCategoryPermission: access to the device or stream refused.
	ErrCategoryPermission
	// ErrCategoryDevice: camera missing, busy or unplugged.
	ErrCategoryDevice
	ErrCategoryUnknown

	numCategories
)

func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryPermission:
		return "permission"
	case ErrCategoryDevice:
		return "device"
	default:
		return "unknown"
	}
}

// Retryable reports whether reconnecting may recover from the error.
func (e ErrorCategory) Retryable() bool {
	return e == ErrCategoryNetwork || e == ErrCategoryDevice || e == ErrCategoryUnknown
}

var (
	permissionKeywords = []string{
		"permission denied",
		"not permitted",
		"unauthorized",
		"401",
		"403",
		"forbidden",
		"authentication",
		"credentials",
	}
	deviceKeywords = []string{
		"no such device",
		"no such file",
		"device busy",
		"resource busy",
		"cannot identify device",
		"v4l2",
		"/dev/video",
		"unplugged",
	}
	codecKeywords = []string{
		"codec",
		"decode",
		"encode",
		"format",
		"negotiation",
		"not negotiated",
		"caps",
		"h264",
		"h265",
		"mjpeg",
		"jpeg",
		"no decoder",
		"missing plugin",
	}
	networkKeywords = []string{
		"connection",
		"timeout",
		"timed out",
		"unreachable",
		"network",
		"dns",
		"resolve",
		"socket",
		"tcp",
		"udp",
		"rtsp",
		"could not connect",
		"failed to connect",
	}
)

// Classify categorises an error from its message and optional debug detail.
// Most specific categories are checked first.
func Classify(message, debug string) ErrorCategory {
	combined := strings.ToLower(message + " " + debug)

	switch {
	case containsAny(combined, permissionKeywords):
		return ErrCategoryPermission
	case containsAny(combined, deviceKeywords):
		return ErrCategoryDevice
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	case containsAny(combined, networkKeywords):
		return ErrCategoryNetwork
	default:
		return ErrCategoryUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
