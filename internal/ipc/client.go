package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

// ForwardTimeout bounds a single forwarded CLI command.
const ForwardTimeout = 220 * time.Millisecond

// Send performs one request/response roundtrip on path within timeout.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	line, err := bufio.NewReader(io.LimitReader(conn, maxLineBytes)).ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Forward sends command from the CLI to a running interview. handled is
// false when nobody owns the socket; a refusal by the owner is returned as
// an error carrying the owner's message alongside its Response.
func Forward(ctx context.Context, path string, command string) (resp Response, handled bool, err error) {
	resp, err = Send(ctx, path, Request{Command: command, Source: "cli"}, ForwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}
	if IsNoOwner(err) {
		return Response{}, false, nil
	}
	return Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

// Probe checks whether a responsive owner is currently listening on path.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: CommandStatus, Source: "probe"}, timeout)
	if err == nil {
		return true, nil
	}
	if IsNoOwner(err) {
		return false, nil
	}
	return false, fmt.Errorf("probe socket: %w", err)
}

// IsNoOwner reports dial failures meaning no process serves the socket: the
// path is absent, or it is a stale file nobody listens on.
func IsNoOwner(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
