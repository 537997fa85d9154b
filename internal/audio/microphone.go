package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Recording format shared by every backend.
const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2
)

// Microphone is an acquired input track. Recording streams are opened on
// demand and the track is held until Close.
type Microphone interface {
	Label() string
	Record(ctx context.Context) (Recorder, error)
	Close() error
}

// Recorder buffers one answer.
type Recorder interface {
	// Stop ends the stream and returns every captured PCM byte.
	Stop() ([]byte, error)
	BytesCaptured() int64
}

// Backend names a capture implementation.
type Backend string

const (
	BackendAuto      Backend = "auto"
	BackendPulse     Backend = "pulse"
	BackendPortAudio Backend = "portaudio"
)

// Options select the backend and input device.
type Options struct {
	Backend  Backend
	Input    string
	Fallback string
	AppName  string
	Logger   *slog.Logger
}

// Open acquires a microphone track. auto tries PulseAudio first and falls
// back to PortAudio only when the Pulse server is unreachable.
func Open(ctx context.Context, opts Options) (Microphone, error) {
	if strings.TrimSpace(opts.AppName) == "" {
		opts.AppName = "parley"
	}

	switch Backend(strings.ToLower(string(opts.Backend))) {
	case BackendPulse:
		return openPulse(ctx, opts)
	case BackendPortAudio:
		return openPortAudio(ctx, opts)
	case BackendAuto, "":
		mic, err := openPulse(ctx, opts)
		if err == nil || !errors.Is(err, ErrBackendUnavailable) {
			return mic, err
		}
		if opts.Logger != nil {
			opts.Logger.Warn("pulse unavailable; trying portaudio", "error", err.Error())
		}
		return openPortAudio(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown audio backend %q", opts.Backend)
	}
}

// ListDevices enumerates input devices for the selected backend.
func ListDevices(ctx context.Context, backend Backend) ([]Device, error) {
	switch Backend(strings.ToLower(string(backend))) {
	case BackendPortAudio:
		return listPortAudioDevices()
	case BackendPulse:
		return listPulseDevices(ctx, "parley")
	default:
		devices, err := listPulseDevices(ctx, "parley")
		if err == nil || !errors.Is(err, ErrBackendUnavailable) {
			return devices, err
		}
		return listPortAudioDevices()
	}
}

// SelectDevice resolves audio.input/audio.fallback preferences against the
// backend's live input devices.
func SelectDevice(ctx context.Context, backend Backend, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx, backend)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}
