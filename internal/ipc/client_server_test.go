package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendCarriesRequestAndResponse(t *testing.T) {
	got := make(chan Request, 1)
	path := serve(t, func(ctx context.Context, req Request) Response {
		got <- req
		return statusOnly(ctx, req)
	})

	resp, err := Send(context.Background(), path, Request{Command: CommandStatus, Source: "test"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, Response{OK: true, State: "listening", SessionID: "s-1", Question: 2, Total: 5}, resp)
	require.Equal(t, Request{Command: CommandStatus, Source: "test"}, <-got)
}

func TestSendReportsBrokenOwners(t *testing.T) {
	tests := []struct {
		name  string
		reply func(net.Conn)
		want  string
	}{
		{
			name: "garbage reply",
			reply: func(c net.Conn) {
				_, _ = bufio.NewReader(c).ReadBytes('\n')
				_, _ = c.Write([]byte("{oops\n"))
			},
			want: "decode response",
		},
		{
			name:  "hang up",
			reply: readRequest,
			want:  "read response",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := rawServer(t, tc.reply)
			_, err := Send(context.Background(), path, Request{Command: CommandStatus}, 200*time.Millisecond)
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestServeAnswersBadRequests(t *testing.T) {
	path := serve(t, func(context.Context, Request) Response {
		t.Error("handler must not see malformed requests")
		return Response{OK: true}
	})

	cases := []struct{ input, want string }{
		{input: "not-json\n", want: "decode request"},
		{input: `{"source":"cli"}` + "\n", want: "missing command"},
	}
	for _, tc := range cases {
		conn, err := net.Dial("unix", path)
		require.NoError(t, err)

		_, err = conn.Write([]byte(tc.input))
		require.NoError(t, err)

		var resp Response
		require.NoError(t, json.NewDecoder(conn).Decode(&resp))
		require.False(t, resp.OK)
		require.Contains(t, resp.Error, tc.want)
		_ = conn.Close()
	}
}

func TestServeCutsOffOversizedRequest(t *testing.T) {
	path := serve(t, func(context.Context, Request) Response {
		return Response{OK: true}
	})

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	huge := `{"command":"status","source":"` + strings.Repeat("x", maxLineBytes) + "\"}\n"
	go func() { _, _ = conn.Write([]byte(huge)) }()

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "read request")
}

func TestProbeDistinguishesLiveAndAbsentOwners(t *testing.T) {
	path := serve(t, statusOnly)

	alive, err := Probe(context.Background(), path, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, alive)

	alive, err = Probe(context.Background(), socketPath(t), 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive)
}

func TestForwardSuccessAndRefusal(t *testing.T) {
	sources := make(chan string, 2)
	path := serve(t, func(ctx context.Context, req Request) Response {
		sources <- req.Source
		return statusOnly(ctx, req)
	})

	resp, handled, err := Forward(context.Background(), path, CommandStatus)
	require.True(t, handled)
	require.NoError(t, err)
	require.Equal(t, "listening", resp.State)
	require.Equal(t, "cli", <-sources)

	resp, handled, err = Forward(context.Background(), path, CommandStop)
	require.True(t, handled)
	require.EqualError(t, err, "not now")
	require.Equal(t, "listening", resp.State)
}

func TestForwardWithoutOwnerIsUnhandled(t *testing.T) {
	_, handled, err := Forward(context.Background(), socketPath(t), CommandStatus)
	require.False(t, handled)
	require.NoError(t, err)

	stale := socketPath(t)
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o600))
	_, handled, err = Forward(context.Background(), stale, CommandStatus)
	require.False(t, handled)
	require.NoError(t, err)

	_, statErr := os.Stat(stale)
	require.NoError(t, statErr, "forwarding never removes the socket")
}

func TestForwardReadFailureIsHandledError(t *testing.T) {
	path := rawServer(t, readRequest)

	_, handled, err := Forward(context.Background(), path, CommandStatus)
	require.True(t, handled)
	require.ErrorContains(t, err, `forward command "status":`)
}

func readRequest(c net.Conn) {
	_, _ = bufio.NewReader(c).ReadBytes('\n')
}

func TestIsNoOwner(t *testing.T) {
	require.False(t, IsNoOwner(nil))
	require.True(t, IsNoOwner(os.ErrNotExist))
	require.True(t, IsNoOwner(syscall.ECONNREFUSED))
	require.True(t, IsNoOwner(&net.OpError{Op: "dial", Net: "unix", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ENOENT}}))
	require.False(t, IsNoOwner(errors.New("dial unix /tmp/parley.sock: no such file or directory")), "only typed errors count")
	require.False(t, IsNoOwner(errors.New("other error")))
}
