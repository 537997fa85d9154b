package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ErrAlreadyRunning reports a live interview owning the socket.
var ErrAlreadyRunning = errors.New("parley interview already running")

// RuntimeSocketPath is $XDG_RUNTIME_DIR/parley.sock, or a per-user socket
// in the temp dir when no runtime dir is set.
func RuntimeSocketPath() string {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return filepath.Join(os.TempDir(), fmt.Sprintf("parley-%d.sock", os.Getuid()))
	}
	return filepath.Join(runtimeDir, "parley.sock")
}

// Acquire makes this process the socket owner. An existing socket is probed
// first: a responsive owner yields ErrAlreadyRunning, a dead one is unlinked
// and the listen retried up to retries more times. onStale runs after each
// unlink. A probe that neither answers nor refuses is an error; the socket is
// left in place.
func Acquire(
	ctx context.Context,
	path string,
	probeTimeout time.Duration,
	retries int,
	onStale func(context.Context) error,
) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}

	for attempt := 0; ; attempt++ {
		listener, err := listenOwner(path)
		if err == nil || !errors.Is(err, syscall.EADDRINUSE) {
			return listener, err
		}

		if err := evictStale(ctx, path, probeTimeout); err != nil {
			return nil, err
		}
		if onStale != nil {
			_ = onStale(ctx)
		}

		if attempt >= retries {
			return nil, fmt.Errorf("socket %s still busy after %d retries", path, retries)
		}
		backoff := time.Duration(attempt+1) * 25 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func listenOwner(path string) (net.Listener, error) {
	listener, err := net.Listen("unix", path)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, err
		}
		return nil, fmt.Errorf("listen unix %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("restrict socket %s: %w", path, err)
	}
	return listener, nil
}

func evictStale(ctx context.Context, path string, probeTimeout time.Duration) error {
	alive, err := Probe(ctx, path, probeTimeout)
	switch {
	case alive:
		return ErrAlreadyRunning
	case err != nil:
		return fmt.Errorf("probe existing socket %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	return nil
}
