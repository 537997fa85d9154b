package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const pulseFragmentBytes = 640 // 20ms @ 16kHz mono s16

func newPulseClient(appName string) (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(appName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: connect pulse server: %v", ErrBackendUnavailable, err)
	}
	return client, nil
}

func listPulseDevices(_ context.Context, appName string) ([]Device, error) {
	client, err := newPulseClient(appName)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return pulseSources(client)
}

// pulseSources lists every Pulse source, the default first. Monitor sources
// of output sinks are included so a loopback can still be picked by name.
func pulseSources(client *pulse.Client) ([]Device, error) {
	fallback, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var reply pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &reply); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(reply))
	for _, info := range reply {
		if info != nil {
			devices = append(devices, pulseDevice(info, fallback.ID()))
		}
	}
	slices.SortStableFunc(devices, func(a, b Device) int {
		switch {
		case a.Default == b.Default:
			return 0
		case a.Default:
			return -1
		default:
			return 1
		}
	})
	return devices, nil
}

func pulseDevice(info *pulseproto.GetSourceInfoReply, defaultID string) Device {
	return Device{
		ID:          info.SourceName,
		Description: info.Device,
		State:       pulseState(info.State),
		Available:   activePortUsable(info),
		Muted:       info.Mute,
		Default:     info.SourceName == defaultID,
	}
}

// pulseMicrophone holds one Pulse client and resolved source for the session.
type pulseMicrophone struct {
	selection Selection
	client    *pulse.Client
	source    *pulse.Source

	closeOnce sync.Once
}

func openPulse(_ context.Context, opts Options) (Microphone, error) {
	client, err := newPulseClient(opts.AppName)
	if err != nil {
		return nil, err
	}

	devices, err := pulseSources(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	selection, err := selectDeviceFromList(devices, opts.Input, opts.Fallback)
	if err != nil {
		client.Close()
		return nil, err
	}
	if selection.Warning != "" && opts.Logger != nil {
		opts.Logger.Warn("audio device fallback", "warning", selection.Warning)
	}

	source, err := client.SourceByID(selection.Device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: resolve source %q: %v", ErrNoInputDevice, selection.Device.ID, err)
	}

	return &pulseMicrophone{selection: selection, client: client, source: source}, nil
}

func (m *pulseMicrophone) Label() string {
	if m.selection.Device.Description != "" {
		return m.selection.Device.Description
	}
	return m.selection.Device.ID
}

func (m *pulseMicrophone) Record(ctx context.Context) (Recorder, error) {
	rec := &pulseRecorder{stopCh: make(chan struct{})}

	writer := pulse.NewWriter(rec, pulseproto.FormatInt16LE)
	stream, err := m.client.NewRecord(
		writer,
		pulse.RecordSource(m.source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(pulseFragmentBytes),
		pulse.RecordMediaName("parley interview answer"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	rec.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_, _ = rec.Stop()
		case <-rec.stopCh:
		}
	}()
	return rec, nil
}

func (m *pulseMicrophone) Close() error {
	m.closeOnce.Do(func() {
		m.client.Close()
	})
	return nil
}

// pulseRecorder accumulates PCM pushed by the Pulse record stream. Once
// stopped it refuses further writes, which ends the stream's callback loop.
type pulseRecorder struct {
	stream *pulse.RecordStream
	stopCh chan struct{}

	mu      sync.Mutex
	pcm     []byte
	stopped bool
	bytes   atomic.Int64
}

func (r *pulseRecorder) BytesCaptured() int64 {
	return r.bytes.Load()
}

// Stop halts the stream once and returns a copy of the buffered PCM. Later
// calls return the same audio.
func (r *pulseRecorder) Stop() ([]byte, error) {
	r.mu.Lock()
	first := !r.stopped
	if first {
		r.stopped = true
		close(r.stopCh)
	}
	r.mu.Unlock()

	if first && r.stream != nil {
		r.stream.Stop()
		r.stream.Close()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return bytes.Clone(r.pcm), nil
}

func (r *pulseRecorder) Write(chunk []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return 0, io.EOF
	}
	r.pcm = append(r.pcm, chunk...)
	r.bytes.Add(int64(len(chunk)))
	return len(chunk), nil
}

var pulseStates = [...]string{"running", "idle", "suspended"}

func pulseState(state uint32) string {
	if int(state) < len(pulseStates) {
		return pulseStates[state]
	}
	return fmt.Sprintf("unknown(%d)", state)
}

// activePortUsable is false only when Pulse reports the active port as
// unplugged (availability "no"). Sources without ports are always usable.
func activePortUsable(info *pulseproto.GetSourceInfoReply) bool {
	const portUnavailable = 1
	for _, port := range info.Ports {
		if port.Name == info.ActivePortName {
			return port.Available != portUnavailable
		}
	}
	return true
}
