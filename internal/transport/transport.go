// Package transport owns the single WebSocket connection of one interview
// session.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rbright/parley/internal/endpoint"
	"github.com/rbright/parley/internal/protocol"
)

const (
	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	closeGrace          = time.Second
	readLimitBytes      = 4 << 20
	eventBuffer         = 64
)

var (
	// ErrConnectAttempted is returned by every Connect call after the first.
	ErrConnectAttempted = errors.New("connect already attempted for this transport")
	// ErrNotConnected is returned by sends before a successful Connect.
	ErrNotConnected = errors.New("transport is not connected")
	// ErrClosed is returned by sends after Close or a dropped connection.
	ErrClosed = errors.New("transport is closed")
	// ErrConnectionLost wraps the read error that ended the connection.
	ErrConnectionLost = errors.New("connection lost")
)

// EventKind classifies transport events.
type EventKind int

const (
	EventOpen EventKind = iota + 1
	EventMessage
	EventMalformed
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventMalformed:
		return "malformed"
	case EventClosed:
		return "closed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one ordered observation from the connection.
type Event struct {
	Kind    EventKind
	Message protocol.Inbound
	Raw     []byte
	Err     error
}

// Config controls endpoint resolution and socket timeouts.
type Config struct {
	Endpoint     string
	SessionID    string
	Base         endpoint.Base
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	Header       http.Header
	Dialer       *websocket.Dialer
	Logger       *slog.Logger
}

// Transport is one session's WebSocket. It never reconnects.
type Transport struct {
	url          string
	header       http.Header
	dialer       *websocket.Dialer
	dialTimeout  time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger

	attempted atomic.Bool
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	readDone  chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn

	writeMu   sync.Mutex
	bytesSent atomic.Int64
}

// New resolves the endpoint once and returns an unconnected Transport.
func New(cfg Config) (*Transport, error) {
	url, err := cfg.Base.WebSocket(cfg.Endpoint, cfg.SessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve websocket endpoint: %w", err)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	dialer := cfg.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = cfg.DialTimeout
		dialer = &d
	}

	return &Transport{
		url:          url,
		header:       cfg.Header,
		dialer:       dialer,
		dialTimeout:  cfg.DialTimeout,
		writeTimeout: cfg.WriteTimeout,
		logger:       cfg.Logger,
		events:       make(chan Event, eventBuffer),
		done:         make(chan struct{}),
		readDone:     make(chan struct{}),
	}, nil
}

// URL returns the resolved WebSocket endpoint.
func (t *Transport) URL() string {
	return t.url
}

// Events streams connection events in arrival order. The channel closes
// after EventClosed.
func (t *Transport) Events() <-chan Event {
	return t.events
}

// BytesSent reports binary payload bytes written so far.
func (t *Transport) BytesSent() int64 {
	return t.bytesSent.Load()
}

// Connect performs the single connection attempt for this Transport.
func (t *Transport) Connect(ctx context.Context) error {
	if !t.attempted.CompareAndSwap(false, true) {
		return ErrConnectAttempted
	}
	if t.isClosed() {
		return ErrClosed
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.dialTimeout)
	defer cancel()

	conn, resp, err := t.dialer.DialContext(dialCtx, t.url, t.header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: HTTP %d: %w", t.url, resp.StatusCode, err)
		}
		return fmt.Errorf("dial %s: %w", t.url, err)
	}
	conn.SetReadLimit(readLimitBytes)

	t.mu.Lock()
	if t.isClosed() {
		t.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	t.conn = conn
	t.mu.Unlock()

	t.logDebug("websocket connected", "url", t.url)
	t.emit(Event{Kind: EventOpen})
	go t.readLoop(conn)
	return nil
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	defer close(t.readDone)
	defer close(t.events)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.emit(Event{Kind: EventClosed, Err: t.closeReason(err)})
			return
		}

		switch kind {
		case websocket.TextMessage:
			msg, decodeErr := protocol.Decode(data)
			if decodeErr != nil {
				t.logWarn("malformed frame", "error", decodeErr.Error(), "bytes", len(data))
				if !t.emit(Event{Kind: EventMalformed, Raw: data, Err: decodeErr}) {
					return
				}
				continue
			}
			if !t.emit(Event{Kind: EventMessage, Message: msg, Raw: data}) {
				return
			}
		default:
			t.logDebug("ignoring inbound binary frame", "bytes", len(data))
		}
	}
}

func (t *Transport) closeReason(err error) error {
	if t.isClosed() {
		return ErrClosed
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		t.logWarn("websocket read error", "error", err.Error())
	}
	return fmt.Errorf("%w: %v", ErrConnectionLost, err)
}

// emit delivers ev unless the transport was closed locally.
func (t *Transport) emit(ev Event) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.done:
		return false
	}
}

// SendControl writes one control frame.
func (t *Transport) SendControl(ctx context.Context, msgType protocol.MessageType) error {
	payload, err := protocol.EncodeControl(msgType)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.writeLocked(ctx, websocket.TextMessage, payload)
}

// SendBinary writes one binary frame.
func (t *Transport) SendBinary(ctx context.Context, payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.writeLocked(ctx, websocket.BinaryMessage, payload); err != nil {
		return err
	}
	t.bytesSent.Add(int64(len(payload)))
	return nil
}

// SendAudio writes payload and then audio_end. The control frame is written
// only after the binary write returned, under the same writer lock.
func (t *Transport) SendAudio(ctx context.Context, payload []byte) error {
	end, err := protocol.EncodeControl(protocol.TypeAudioEnd)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.writeLocked(ctx, websocket.BinaryMessage, payload); err != nil {
		return fmt.Errorf("send audio payload: %w", err)
	}
	t.bytesSent.Add(int64(len(payload)))

	if err := t.writeLocked(ctx, websocket.TextMessage, end); err != nil {
		return fmt.Errorf("send audio_end: %w", err)
	}
	t.logDebug("audio submitted", "bytes", len(payload))
	return nil
}

func (t *Transport) writeLocked(ctx context.Context, kind int, payload []byte) error {
	if t.isClosed() {
		return ErrClosed
	}
	conn := t.connection()
	if conn == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(t.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(kind, payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close sends a best-effort close frame and tears down the socket. Safe to
// call repeatedly and before Connect.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		close(t.done)
		conn := t.conn
		t.mu.Unlock()

		if conn == nil {
			return
		}

		t.writeMu.Lock()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"),
			time.Now().Add(closeGrace),
		)
		t.writeMu.Unlock()

		err = conn.Close()
		<-t.readDone
		t.logDebug("websocket closed", "url", t.url)
	})
	return err
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Transport) connection() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func (t *Transport) logDebug(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}

func (t *Transport) logWarn(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Warn(msg, args...)
	}
}
