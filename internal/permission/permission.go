// Package permission gates camera access at startup.
//
// The check happens once. A denial is shown to the user in a blocking
// dialog and the process terminates; there is no retry.
package permission

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// DeniedMessage is shown when camera access is refused.
const DeniedMessage = "Denied access to the camera! Exiting."

// ExitDenied is the process exit code after a denial. It is non-zero, unlike
// a user quitting from the window (exit 0), so scripts can tell the two apart.
const ExitDenied = 1

// Checker reports whether the camera may be used.
type Checker interface {
	Granted() bool
}

// DeviceChecker grants access when the process can read and write a device
// node (for example /dev/video0).
type DeviceChecker struct {
	Path string
}

// Granted implements Checker.
func (c DeviceChecker) Granted() bool {
	if err := unix.Access(c.Path, unix.R_OK|unix.W_OK); err != nil {
		slog.Debug("permission: device access denied", "path", c.Path, "error", err)
		return false
	}
	return true
}

// Always is a Checker for sources that need no device (synthetic, network).
type Always struct{}

// Granted implements Checker.
func (Always) Granted() bool { return true }

// Dialog shows a message and returns once the user dismissed it.
type Dialog interface {
	Show(message string)
}

// DialogFunc adapts a function to Dialog.
type DialogFunc func(message string)

// Show implements Dialog.
func (f DialogFunc) Show(message string) { f(message) }

// Require checks once. When access is denied it shows DeniedMessage, waits
// for the dialog to be dismissed and calls exit(ExitDenied). It returns true
// when access is granted; it only returns false if exit returns.
func Require(c Checker, d Dialog, exit func(code int)) bool {
	if c.Granted() {
		return true
	}
	slog.Error("permission: camera access denied")
	d.Show(DeniedMessage)
	exit(ExitDenied)
	return false
}

// DeviceForIndex returns the V4L2 device node for a webcam index.
func DeviceForIndex(index int) string {
	return fmt.Sprintf("/dev/video%d", index)
}
