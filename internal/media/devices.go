package media

import (
	"context"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/camera"
)

// SystemDevices opens real hardware through the audio and camera packages.
type SystemDevices struct {
	Audio   audio.Options
	Camera  bool
	Preview camera.Options
}

func (d SystemDevices) OpenMicrophone(ctx context.Context) (audio.Microphone, error) {
	return audio.Open(ctx, d.Audio)
}

func (d SystemDevices) OpenCamera(ctx context.Context) (CameraTrack, error) {
	if !d.Camera {
		return nil, nil
	}
	track, err := camera.Open(ctx, d.Preview)
	if err != nil {
		return nil, err
	}
	return track, nil
}
