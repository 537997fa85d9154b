package ipc

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// socketPath returns a fresh socket location inside a test temp dir.
func socketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "parley.sock")
}

// serve runs Serve with handler on a new socket until the test ends and
// returns the socket path.
func serve(t *testing.T, handler HandlerFunc) string {
	t.Helper()
	path := socketPath(t)
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, listener, handler) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return path
}

// rawServer accepts connections on a new socket and hands each to fn
// without any protocol handling.
func rawServer(t *testing.T, fn func(net.Conn)) string {
	t.Helper()
	path := socketPath(t)
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				fn(conn)
			}()
		}
	}()
	return path
}

func statusOnly(_ context.Context, req Request) Response {
	if req.Command == CommandStatus {
		return Response{OK: true, State: "listening", SessionID: "s-1", Question: 2, Total: 5}
	}
	return Response{OK: false, State: "listening", Error: "not now"}
}
