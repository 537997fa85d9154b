package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const frameInterval = 33 * time.Millisecond

// Options configures the preview track.
type Options struct {
	Device string
	// Window shows a live preview; without it the device is only held open.
	Window bool
	Title  string
	Logger *slog.Logger
}

// Track is a held camera. Stop releases it.
type Track struct {
	device string
	window bool
	title  string
	logger *slog.Logger

	capture *gocv.VideoCapture

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// Open probes and opens the camera, then starts the preview loop when a
// window was requested.
func Open(ctx context.Context, opts Options) (*Track, error) {
	if err := Probe(opts.Device); err != nil {
		return nil, err
	}
	idx, err := deviceIndex(opts.Device)
	if err != nil {
		return nil, err
	}

	capture, err := gocv.VideoCaptureDevice(idx)
	if err != nil {
		return nil, fmt.Errorf("%w: open capture %d: %v", ErrBusy, idx, err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return nil, fmt.Errorf("%w: capture %d did not open", ErrBusy, idx)
	}

	title := opts.Title
	if title == "" {
		title = "parley preview"
	}
	t := &Track{
		device:  normalizeDevice(opts.Device),
		window:  opts.Window,
		title:   title,
		logger:  opts.Logger,
		capture: capture,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go t.loop(ctx)
	return t, nil
}

// Label names the held device.
func (t *Track) Label() string {
	return t.device
}

// loop owns every gocv handle after Open; the window is created and closed
// on this goroutine.
func (t *Track) loop(ctx context.Context) {
	defer close(t.done)
	defer t.capture.Close()

	if !t.window {
		select {
		case <-ctx.Done():
		case <-t.stopCh:
		}
		return
	}

	window := gocv.NewWindow(t.title)
	defer window.Close()
	frame := gocv.NewMat()
	defer frame.Close()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-ticker.C:
		}

		if ok := t.capture.Read(&frame); !ok || frame.Empty() {
			continue
		}
		window.IMShow(frame)
		window.WaitKey(1)
	}
}

// Stop releases the camera. Safe to call repeatedly.
func (t *Track) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		<-t.done
		if t.logger != nil {
			t.logger.Debug("camera released", "device", t.device)
		}
	})
}
