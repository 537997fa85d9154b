package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

const (
	// maxLineBytes caps one request or response line.
	maxLineBytes = 64 << 10
	connDeadline = 2 * time.Second
)

// Handler answers one request from another parley process.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc lets a plain function serve as a Handler.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve answers clients until ctx is cancelled or the listener closes, then
// waits for in-flight connections. Every connection is bounded by
// connDeadline so a stalled client cannot hold shutdown.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		conn, err := listener.Accept()
		switch {
		case err == nil:
		case errors.Is(err, net.ErrClosed), ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		inflight.Go(func() {
			defer conn.Close()
			_ = conn.SetDeadline(time.Now().Add(connDeadline))
			_ = json.NewEncoder(conn).Encode(answer(ctx, conn, handler))
		})
	}
}

func answer(ctx context.Context, r io.Reader, handler Handler) Response {
	line, err := bufio.NewReader(io.LimitReader(r, maxLineBytes)).ReadBytes('\n')
	if err != nil {
		return Response{Error: fmt.Sprintf("read request: %v", err)}
	}

	var req Request
	switch err := json.Unmarshal(line, &req); {
	case err != nil:
		return Response{Error: fmt.Sprintf("decode request: %v", err)}
	case req.Command == "":
		return Response{Error: "decode request: missing command"}
	}
	return handler.Handle(ctx, req)
}
