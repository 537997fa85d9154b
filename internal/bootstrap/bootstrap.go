// Package bootstrap creates interview sessions and fetches results over HTTP.
package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rbright/parley/internal/endpoint"
	"github.com/rbright/parley/internal/protocol"
	"github.com/rbright/parley/internal/version"
)

// DefaultTimeout bounds every bootstrap request.
const DefaultTimeout = 15 * time.Second

// ErrMissingSessionID indicates a setup response without a session identifier.
var ErrMissingSessionID = errors.New("setup response did not include a session_id")

// APIError is a non-2xx response from the interview backend.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("interview API %s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("interview API %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// IsNotFound reports whether the backend does not know the resource.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Session is the bootstrap outcome handed to the transport.
type Session struct {
	ID       string
	Endpoint string
	Message  string
}

// Client talks to the interview backend's REST surface.
type Client struct {
	base   endpoint.Base
	http   *http.Client
	logger *slog.Logger
}

// NewClient builds a Client with a bounded HTTP timeout.
func NewClient(base endpoint.Base, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: base,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: time.Second,
			},
		},
		logger: logger,
	}
}

// Base returns the normalized origin the client targets.
func (c *Client) Base() endpoint.Base {
	return c.base
}

type setupResponse struct {
	SessionID string `json:"session_id"`
	WSURL     string `json:"ws_url"`
	Message   string `json:"message"`
}

// Setup validates req and creates one interview session. Failures are not
// retried.
func (c *Client) Setup(ctx context.Context, req Request) (Session, error) {
	if err := req.Validate(); err != nil {
		return Session{}, err
	}

	body, err := json.Marshal(req.payload())
	if err != nil {
		return Session{}, fmt.Errorf("encode setup request: %w", err)
	}

	target := c.base.API("api", "interview", "setup")
	var resp setupResponse
	if err := c.do(ctx, http.MethodPost, target, body, &resp); err != nil {
		return Session{}, err
	}

	id := strings.TrimSpace(resp.SessionID)
	if id == "" {
		return Session{}, ErrMissingSessionID
	}

	c.logDebug("session created", "session_id", id, "ws_url", resp.WSURL)
	return Session{ID: id, Endpoint: resp.WSURL, Message: resp.Message}, nil
}

// Results fetches the compiled results for a session.
func (c *Client) Results(ctx context.Context, sessionID string) (protocol.SessionResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return protocol.SessionResult{}, errors.New("session id must not be empty")
	}

	var result protocol.SessionResult
	target := c.base.API("api", "interview", url.PathEscape(sessionID), "results")
	if err := c.do(ctx, http.MethodGet, target, nil, &result); err != nil {
		return protocol.SessionResult{}, err
	}
	return result, nil
}

// ReportURL is the download link for a session's report. An empty id yields
// the session-less latest-report link.
func (c *Client) ReportURL(sessionID string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return c.base.API("api", "interview", "download-report")
	}
	return c.base.API("api", "interview", url.PathEscape(sessionID), "download-report")
}

// Health is the backend readiness summary.
type Health struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// OK reports whether the backend and all of its services report ok.
func (h Health) OK() bool {
	if !strings.EqualFold(h.Status, "ok") {
		return false
	}
	for _, status := range h.Services {
		if !strings.EqualFold(status, "ok") {
			return false
		}
	}
	return true
}

// Health probes GET /api/health.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var health Health
	if err := c.do(ctx, http.MethodGet, c.base.API("api", "health"), nil, &health); err != nil {
		return Health{}, err
	}
	return health, nil
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request %s %s: %w", method, target, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response %s %s: %w", method, target, err)
	}
	c.logDebug("interview api call",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(payload),
			Endpoint:   req.URL.Path,
		}
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response %s %s: %w", method, target, err)
	}
	return nil
}

// errorMessage extracts FastAPI-style `detail` or `message` bodies.
func errorMessage(payload []byte) string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if len(body.Detail) > 0 {
			var detail string
			if json.Unmarshal(body.Detail, &detail) == nil {
				return detail
			}
			return string(body.Detail)
		}
		if body.Message != "" {
			return body.Message
		}
	}

	text := strings.TrimSpace(string(payload))
	if len(text) > 256 {
		text = text[:256]
	}
	return text
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, args...)
}
