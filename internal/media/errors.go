package media

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrDeviceNotFound   = errors.New("device not found")
	ErrDeviceBusy       = errors.New("device busy")
	ErrInsecureContext  = errors.New("insecure context")
	ErrUnsupported      = errors.New("media capture unsupported")
	ErrNotGranted       = errors.New("media permission not granted")
)

// PermissionError is an acquisition failure with an actionable hint.
type PermissionError struct {
	Device string
	Kind   error
	Hint   string
	Err    error
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Device, e.Kind)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

// Unwrap exposes both the classification sentinel and the cause.
func (e *PermissionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func hintFor(kind error, device string) string {
	switch {
	case errors.Is(kind, ErrPermissionDenied):
		return fmt.Sprintf("grant this user access to the %s (for example add it to the audio/video group)", device)
	case errors.Is(kind, ErrDeviceNotFound):
		return fmt.Sprintf("connect a %s or check audio.input / media.camera_device", device)
	case errors.Is(kind, ErrDeviceBusy):
		return fmt.Sprintf("close other applications using the %s and retry", device)
	case errors.Is(kind, ErrInsecureContext):
		return "use an https api.base_url or a loopback address"
	case errors.Is(kind, ErrUnsupported):
		return "install PulseAudio/PipeWire-pulse or PortAudio"
	default:
		return ""
	}
}
