// Package camera holds the optional self-preview camera track. Frames are
// shown locally and never transmitted.
package camera

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// DefaultDevice is the first V4L2 capture node.
const DefaultDevice = "/dev/video0"

var (
	ErrAccessDenied = errors.New("camera access denied")
	ErrNotFound     = errors.New("camera not found")
	ErrBusy         = errors.New("camera is busy")
)

// Probe opens the device node once and classifies the failure, if any.
func Probe(device string) error {
	device = normalizeDevice(device)
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return classifyOpenError(device, err)
	}
	return f.Close()
}

func classifyOpenError(device string, err error) error {
	switch {
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return fmt.Errorf("%w: %s: %v", ErrAccessDenied, device, err)
	case errors.Is(err, syscall.ENOENT), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.ENXIO):
		return fmt.Errorf("%w: %s", ErrNotFound, device)
	case errors.Is(err, syscall.EBUSY):
		return fmt.Errorf("%w: %s", ErrBusy, device)
	default:
		return fmt.Errorf("open camera %s: %w", device, err)
	}
}

func normalizeDevice(device string) string {
	device = strings.TrimSpace(device)
	if device == "" {
		return DefaultDevice
	}
	if _, err := strconv.Atoi(device); err == nil {
		return "/dev/video" + device
	}
	return device
}

// deviceIndex maps /dev/videoN (or N) to the capture index gocv expects.
func deviceIndex(device string) (int, error) {
	device = normalizeDevice(device)
	suffix := strings.TrimPrefix(device, "/dev/video")
	idx, err := strconv.Atoi(suffix)
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("camera device %q is not a /dev/videoN node", device)
	}
	return idx, nil
}
