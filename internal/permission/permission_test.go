package permission

import (
	"os"
	"path/filepath"
	"testing"
)

type fixed bool

func (f fixed) Granted() bool { return bool(f) }

func TestRequireGranted(t *testing.T) {
	shown := false
	exited := false

	ok := Require(fixed(true),
		DialogFunc(func(string) { shown = true }),
		func(int) { exited = true },
	)

	if !ok || shown || exited {
		t.Errorf("granted path: ok=%v shown=%v exited=%v", ok, shown, exited)
	}
}

func TestRequireDeniedShowsDialogThenExits(t *testing.T) {
	var order []string
	code := -1

	ok := Require(fixed(false),
		DialogFunc(func(msg string) {
			if msg != DeniedMessage {
				t.Errorf("unexpected message %q", msg)
			}
			order = append(order, "dialog")
		}),
		func(c int) {
			order = append(order, "exit")
			code = c
		},
	)

	if ok {
		t.Errorf("expected false when denied")
	}
	if len(order) != 2 || order[0] != "dialog" || order[1] != "exit" {
		t.Errorf("expected dialog before exit, got %v", order)
	}
	if code != ExitDenied {
		t.Errorf("expected exit code %d, got %d", ExitDenied, code)
	}
}

func TestDeviceChecker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "video0")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if !(DeviceChecker{Path: path}).Granted() {
		t.Errorf("expected access to %s", path)
	}
	if (DeviceChecker{Path: filepath.Join(dir, "missing")}).Granted() {
		t.Errorf("expected missing device to be denied")
	}
}

func TestDeviceForIndex(t *testing.T) {
	if got := DeviceForIndex(2); got != "/dev/video2" {
		t.Errorf("got %q", got)
	}
}
