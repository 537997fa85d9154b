// Package media owns the session's microphone and optional camera tracks and
// turns recordings into upload payloads.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/camera"
)

// Permission is the outcome of Acquire.
type Permission string

const (
	PermissionPending       Permission = "pending"
	PermissionGranted       Permission = "granted"
	PermissionDenied        Permission = "denied"
	PermissionNotApplicable Permission = "not_applicable"
)

// CameraTrack is a held preview camera.
type CameraTrack interface {
	Label() string
	Stop()
}

// Devices opens the physical tracks. A nil CameraTrack with a nil error means
// the camera is disabled.
type Devices interface {
	OpenMicrophone(ctx context.Context) (audio.Microphone, error)
	OpenCamera(ctx context.Context) (CameraTrack, error)
}

// Config wires an Adapter.
type Config struct {
	// Secure mirrors endpoint.Base.Secure; capture is refused otherwise.
	Secure  bool
	Devices Devices
	Logger  *slog.Logger
}

// Adapter is the single owner of every device track in a session.
type Adapter struct {
	secure  bool
	devices Devices
	logger  *slog.Logger

	mu         sync.Mutex
	acquired   bool
	permission Permission
	acquireErr error
	mic        audio.Microphone
	cam        CameraTrack
	recorder   audio.Recorder
	released   bool
}

// NewAdapter builds an Adapter. Nothing is opened until Acquire.
func NewAdapter(cfg Config) *Adapter {
	return &Adapter{
		secure:     cfg.Secure,
		devices:    cfg.Devices,
		logger:     cfg.Logger,
		permission: PermissionPending,
	}
}

// Acquire opens the microphone and, when enabled, the camera. It runs once;
// later calls return the first outcome.
func (a *Adapter) Acquire(ctx context.Context) (Permission, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.acquired {
		return a.permission, a.acquireErr
	}
	a.acquired = true

	if a.released {
		a.permission, a.acquireErr = PermissionNotApplicable, fmt.Errorf("%w: adapter already released", ErrUnsupported)
		return a.permission, a.acquireErr
	}
	if a.devices == nil {
		a.permission = PermissionNotApplicable
		a.acquireErr = &PermissionError{Device: "microphone", Kind: ErrUnsupported, Hint: hintFor(ErrUnsupported, "microphone")}
		return a.permission, a.acquireErr
	}
	if !a.secure {
		a.permission = PermissionDenied
		a.acquireErr = &PermissionError{Device: "microphone", Kind: ErrInsecureContext, Hint: hintFor(ErrInsecureContext, "microphone")}
		return a.permission, a.acquireErr
	}

	mic, err := a.devices.OpenMicrophone(ctx)
	if err != nil {
		a.permission, a.acquireErr = deny("microphone", classifyMicrophone(err), err)
		return a.permission, a.acquireErr
	}

	cam, err := a.devices.OpenCamera(ctx)
	if err != nil {
		_ = mic.Close()
		a.permission, a.acquireErr = deny("camera", classifyCamera(err), err)
		return a.permission, a.acquireErr
	}

	a.mic = mic
	a.cam = cam
	a.permission = PermissionGranted
	a.logDebug("media acquired", "microphone", mic.Label(), "camera", cameraLabel(cam))
	return a.permission, nil
}

func deny(device string, kind error, cause error) (Permission, error) {
	permission := PermissionDenied
	if errors.Is(kind, ErrUnsupported) {
		permission = PermissionNotApplicable
	}
	return permission, &PermissionError{Device: device, Kind: kind, Hint: hintFor(kind, device), Err: cause}
}

func classifyMicrophone(err error) error {
	switch {
	case errors.Is(err, os.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, audio.ErrNoInputDevice):
		return ErrDeviceNotFound
	case errors.Is(err, audio.ErrDeviceUnavailable):
		return ErrDeviceBusy
	case errors.Is(err, audio.ErrBackendUnavailable):
		return ErrUnsupported
	default:
		return ErrDeviceBusy
	}
}

func classifyCamera(err error) error {
	switch {
	case errors.Is(err, camera.ErrAccessDenied):
		return ErrPermissionDenied
	case errors.Is(err, camera.ErrNotFound):
		return ErrDeviceNotFound
	default:
		return ErrDeviceBusy
	}
}

// Granted reports whether recording is allowed: permission was granted and
// the tracks have not been released.
func (a *Adapter) Granted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.permission == PermissionGranted && a.mic != nil
}

// Start begins buffering audio. While already recording it is a no-op.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.permission != PermissionGranted || a.mic == nil {
		return ErrNotGranted
	}
	if a.recorder != nil {
		return nil
	}

	rec, err := a.mic.Record(ctx)
	if err != nil {
		return fmt.Errorf("start recording: %w", err)
	}
	a.recorder = rec
	a.logDebug("recording started")
	return nil
}

// Stop finalizes the recording into one WAV payload. ok is false when
// nothing was recording.
func (a *Adapter) Stop() (payload []byte, ok bool, err error) {
	a.mu.Lock()
	rec := a.recorder
	a.recorder = nil
	a.mu.Unlock()

	if rec == nil {
		return nil, false, nil
	}

	pcm, err := rec.Stop()
	if err != nil {
		return nil, true, fmt.Errorf("stop recording: %w", err)
	}
	payload, err = audio.EncodeWAV(pcm, audio.SampleRate, audio.Channels)
	if err != nil {
		return nil, true, err
	}
	a.logDebug("recording finalized", "pcm_bytes", len(pcm))
	return payload, true, nil
}

// Discard stops any recording and drops its audio.
func (a *Adapter) Discard() {
	a.mu.Lock()
	rec := a.recorder
	a.recorder = nil
	a.mu.Unlock()

	if rec != nil {
		captured := rec.BytesCaptured()
		_, _ = rec.Stop()
		a.logDebug("recording discarded", "pcm_bytes", captured)
	}
}

// Release stops any recording and every held track. Safe to call
// repeatedly, on every exit path.
func (a *Adapter) Release() {
	a.Discard()

	a.mu.Lock()
	mic, cam := a.mic, a.cam
	a.mic, a.cam = nil, nil
	a.released = true
	a.mu.Unlock()

	if cam != nil {
		cam.Stop()
	}
	if mic != nil {
		if err := mic.Close(); err != nil && a.logger != nil {
			a.logger.Warn("release microphone failed", "error", err.Error())
		}
	}
	if mic != nil || cam != nil {
		a.logDebug("media released")
	}
}

// LiveTracks counts held device tracks.
func (a *Adapter) LiveTracks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	if a.mic != nil {
		n++
	}
	if a.cam != nil {
		n++
	}
	return n
}

func cameraLabel(cam CameraTrack) string {
	if cam == nil {
		return ""
	}
	return cam.Label()
}

func (a *Adapter) logDebug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
