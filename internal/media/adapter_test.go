package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/camera"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	pcm     []byte
	stopped int
}

func (r *fakeRecorder) Stop() ([]byte, error) {
	r.stopped++
	return r.pcm, nil
}

func (r *fakeRecorder) BytesCaptured() int64 { return int64(len(r.pcm)) }

type fakeMic struct {
	mu        sync.Mutex
	records   []*fakeRecorder
	closed    int
	recordErr error
}

func (m *fakeMic) Label() string { return "fake mic" }

func (m *fakeMic) Record(context.Context) (audio.Recorder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return nil, m.recordErr
	}
	rec := &fakeRecorder{pcm: []byte{1, 0, 2, 0}}
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *fakeMic) Close() error {
	m.closed++
	return nil
}

type fakeCam struct{ stopped int }

func (c *fakeCam) Label() string { return "/dev/video0" }
func (c *fakeCam) Stop()         { c.stopped++ }

type fakeDevices struct {
	mic    *fakeMic
	cam    *fakeCam
	micErr error
	camErr error
	opens  int
}

func (d *fakeDevices) OpenMicrophone(context.Context) (audio.Microphone, error) {
	d.opens++
	if d.micErr != nil {
		return nil, d.micErr
	}
	return d.mic, nil
}

func (d *fakeDevices) OpenCamera(context.Context) (CameraTrack, error) {
	if d.camErr != nil {
		return nil, d.camErr
	}
	if d.cam == nil {
		return nil, nil
	}
	return d.cam, nil
}

func grantedAdapter(t *testing.T) (*Adapter, *fakeDevices) {
	t.Helper()
	devices := &fakeDevices{mic: &fakeMic{}, cam: &fakeCam{}}
	a := NewAdapter(Config{Secure: true, Devices: devices})
	permission, err := a.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, PermissionGranted, permission)
	return a, devices
}

func TestAcquireGrantsBothTracksOnce(t *testing.T) {
	a, devices := grantedAdapter(t)
	require.True(t, a.Granted())
	require.Equal(t, 2, a.LiveTracks())

	permission, err := a.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, PermissionGranted, permission)
	require.Equal(t, 1, devices.opens)
}

func TestAcquireClassifiesFailures(t *testing.T) {
	tests := []struct {
		name       string
		devices    *fakeDevices
		secure     bool
		permission Permission
		kind       error
	}{
		{name: "insecure", devices: &fakeDevices{mic: &fakeMic{}}, secure: false, permission: PermissionDenied, kind: ErrInsecureContext},
		{name: "mic permission", devices: &fakeDevices{micErr: fmt.Errorf("open: %w", os.ErrPermission)}, secure: true, permission: PermissionDenied, kind: ErrPermissionDenied},
		{name: "mic missing", devices: &fakeDevices{micErr: audio.ErrNoInputDevice}, secure: true, permission: PermissionDenied, kind: ErrDeviceNotFound},
		{name: "mic muted", devices: &fakeDevices{micErr: audio.ErrDeviceUnavailable}, secure: true, permission: PermissionDenied, kind: ErrDeviceBusy},
		{name: "no backend", devices: &fakeDevices{micErr: audio.ErrBackendUnavailable}, secure: true, permission: PermissionNotApplicable, kind: ErrUnsupported},
		{name: "camera denied", devices: &fakeDevices{mic: &fakeMic{}, camErr: camera.ErrAccessDenied}, secure: true, permission: PermissionDenied, kind: ErrPermissionDenied},
		{name: "camera busy", devices: &fakeDevices{mic: &fakeMic{}, camErr: camera.ErrBusy}, secure: true, permission: PermissionDenied, kind: ErrDeviceBusy},
		{name: "camera missing", devices: &fakeDevices{mic: &fakeMic{}, camErr: camera.ErrNotFound}, secure: true, permission: PermissionDenied, kind: ErrDeviceNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAdapter(Config{Secure: tc.secure, Devices: tc.devices})
			permission, err := a.Acquire(context.Background())
			require.Equal(t, tc.permission, permission)
			require.ErrorIs(t, err, tc.kind)

			var permErr *PermissionError
			require.True(t, errors.As(err, &permErr))
			require.NotEmpty(t, permErr.Hint)
			require.False(t, a.Granted())
			require.Zero(t, a.LiveTracks())
			require.ErrorIs(t, a.Start(context.Background()), ErrNotGranted)
		})
	}
}

func TestCameraFailureReleasesMicrophone(t *testing.T) {
	devices := &fakeDevices{mic: &fakeMic{}, camErr: camera.ErrBusy}
	a := NewAdapter(Config{Secure: true, Devices: devices})
	_, err := a.Acquire(context.Background())
	require.Error(t, err)
	require.Equal(t, 1, devices.mic.closed)
}

func TestAcquireWithoutDevicesIsNotApplicable(t *testing.T) {
	a := NewAdapter(Config{Secure: true})
	permission, err := a.Acquire(context.Background())
	require.Equal(t, PermissionNotApplicable, permission)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestStartIsIdempotent(t *testing.T) {
	a, devices := grantedAdapter(t)

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Start(context.Background()))
	require.True(t, recording(a))
	require.Len(t, devices.mic.records, 1)
}

func TestStopProducesWAVPayload(t *testing.T) {
	a, devices := grantedAdapter(t)
	require.NoError(t, a.Start(context.Background()))

	payload, ok, err := a.Stop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "RIFF", string(payload[:4]))
	require.Equal(t, []byte{1, 0, 2, 0}, payload[len(payload)-4:])
	require.False(t, recording(a))
	require.Equal(t, 1, devices.mic.records[0].stopped)
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	a, _ := grantedAdapter(t)
	payload, ok, err := a.Stop()
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, payload)
}

func TestDiscardDropsRecording(t *testing.T) {
	a, devices := grantedAdapter(t)
	require.NoError(t, a.Start(context.Background()))

	a.Discard()
	require.False(t, recording(a))
	require.Equal(t, 1, devices.mic.records[0].stopped)

	_, ok, err := a.Stop()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReleaseStopsEveryTrack(t *testing.T) {
	a, devices := grantedAdapter(t)
	require.NoError(t, a.Start(context.Background()))

	a.Release()
	a.Release()

	require.Zero(t, a.LiveTracks())
	require.False(t, recording(a))
	require.Equal(t, 1, devices.mic.closed)
	require.Equal(t, 1, devices.cam.stopped)
	require.Equal(t, 1, devices.mic.records[0].stopped)
	require.ErrorIs(t, a.Start(context.Background()), ErrNotGranted)
}

func TestStartSurfacesRecordError(t *testing.T) {
	devices := &fakeDevices{mic: &fakeMic{recordErr: errors.New("stream failed")}}
	a := NewAdapter(Config{Secure: true, Devices: devices})
	_, err := a.Acquire(context.Background())
	require.NoError(t, err)

	err = a.Start(context.Background())
	require.Error(t, err)
	require.False(t, recording(a))
}

func recording(a *Adapter) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recorder != nil
}
