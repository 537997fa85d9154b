package audio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

const portaudioFramesPerBuffer = 1024

func listPortAudioDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: portaudio.Initialize: %v", ErrBackendUnavailable, err)
	}
	defer portaudio.Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list portaudio devices: %w", err)
	}
	def, _ := portaudio.DefaultInputDevice()

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil || info.MaxInputChannels < 1 {
			continue
		}
		hostAPI := ""
		if info.HostApi != nil {
			hostAPI = info.HostApi.Name
		}
		devices = append(devices, Device{
			ID:          info.Name,
			Description: strings.TrimSpace(hostAPI + " " + info.Name),
			State:       "idle",
			Available:   true,
			Default:     def != nil && def.Name == info.Name,
		})
	}
	return devices, nil
}

// portaudioMicrophone keeps PortAudio initialized while the track is held.
// It always records from the default input device.
type portaudioMicrophone struct {
	device    *portaudio.DeviceInfo
	closeOnce sync.Once
}

func openPortAudio(_ context.Context, _ Options) (Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: portaudio.Initialize: %v", ErrBackendUnavailable, err)
	}
	device, err := portaudio.DefaultInputDevice()
	if err != nil || device == nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: portaudio default input: %v", ErrNoInputDevice, err)
	}
	return &portaudioMicrophone{device: device}, nil
}

func (m *portaudioMicrophone) Label() string {
	return m.device.Name
}

func (m *portaudioMicrophone) Record(ctx context.Context) (Recorder, error) {
	buffer := make([]int16, portaudioFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(Channels, 0, float64(SampleRate), len(buffer), buffer)
	if err != nil {
		return nil, fmt.Errorf("open portaudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start portaudio stream: %w", err)
	}

	rec := &portaudioRecorder{
		stream:  stream,
		buffer:  buffer,
		stopCh:  make(chan struct{}),
		readEnd: make(chan struct{}),
	}
	go rec.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			_, _ = rec.Stop()
		case <-rec.stopCh:
		}
	}()
	return rec, nil
}

func (m *portaudioMicrophone) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = portaudio.Terminate()
	})
	return err
}

// portaudioRecorder pulls frames from a blocking PortAudio stream.
type portaudioRecorder struct {
	stream  *portaudio.Stream
	buffer  []int16
	stopCh  chan struct{}
	readEnd chan struct{}

	stopOnce sync.Once
	mu       sync.Mutex
	pcm      []byte
	readErr  error
	stopErr  error
	bytes    atomic.Int64
}

func (r *portaudioRecorder) readLoop() {
	defer close(r.readEnd)
	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		if err := r.stream.Read(); err != nil {
			r.mu.Lock()
			r.readErr = err
			r.mu.Unlock()
			return
		}

		chunk := int16ToBytes(r.buffer)
		r.mu.Lock()
		r.pcm = append(r.pcm, chunk...)
		r.mu.Unlock()
		r.bytes.Add(int64(len(chunk)))
	}
}

func (r *portaudioRecorder) BytesCaptured() int64 {
	return r.bytes.Load()
}

func (r *portaudioRecorder) Stop() ([]byte, error) {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		<-r.readEnd
		if err := r.stream.Stop(); err != nil {
			r.stopErr = err
		}
		if err := r.stream.Close(); err != nil && r.stopErr == nil {
			r.stopErr = err
		}
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]byte(nil), r.pcm...)
	if r.stopErr != nil {
		return out, fmt.Errorf("stop portaudio stream: %w", r.stopErr)
	}
	if r.readErr != nil && len(out) == 0 {
		return nil, fmt.Errorf("read portaudio stream: %w", r.readErr)
	}
	return out, nil
}

// int16ToBytes encodes samples as little-endian s16.
func int16ToBytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, v := range in {
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}
