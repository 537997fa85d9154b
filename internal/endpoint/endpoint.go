// Package endpoint normalizes the base API URL and derives HTTP, WebSocket,
// and media URLs from it.
package endpoint

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"
)

// CanonicalLoopback is the single host every loopback alias is rewritten to.
const CanonicalLoopback = "127.0.0.1"

// Base is a parsed, normalized API origin.
type Base struct {
	u *url.URL
}

// Parse normalizes raw once: default scheme, canonical loopback host, no
// trailing slash.
func Parse(raw string) (Base, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Base{}, errors.New("base API URL is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Base{}, fmt.Errorf("parse base API URL %q: %w", raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		u.Scheme = strings.ToLower(u.Scheme)
	default:
		return Base{}, fmt.Errorf("base API URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return Base{}, fmt.Errorf("base API URL %q has no host", raw)
	}

	if IsLoopback(u.Hostname()) {
		u.Host = joinHost(CanonicalLoopback, u.Port())
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	return Base{u: u}, nil
}

// MustParse is Parse for static inputs.
func MustParse(raw string) Base {
	b, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return b
}

// String returns the normalized origin.
func (b Base) String() string {
	if b.u == nil {
		return ""
	}
	return b.u.String()
}

// Secure reports whether media capture would be allowed from this origin:
// https, or any loopback host.
func (b Base) Secure() bool {
	if b.u == nil {
		return false
	}
	return b.u.Scheme == "https" || IsLoopback(b.u.Hostname())
}

// API joins path elements onto the origin.
func (b Base) API(elems ...string) string {
	if b.u == nil {
		return ""
	}
	out := *b.u
	parts := append([]string{"/", out.Path}, elems...)
	out.Path = path.Join(parts...)
	return out.String()
}

// WebSocket resolves the transport endpoint returned by session setup.
//
// An empty raw value derives /ws/interview/{sessionID} from the origin.
// Wildcard or loopback hosts are rewritten to the origin's host:port so the
// socket reaches the same server the HTTP calls did.
func (b Base) WebSocket(raw string, sessionID string) (string, error) {
	if b.u == nil {
		return "", errors.New("base API URL is not set")
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		if strings.TrimSpace(sessionID) == "" {
			return "", errors.New("websocket endpoint and session id are both empty")
		}
		out := *b.u
		out.Scheme = wsScheme(b.u.Scheme)
		out.Path = path.Join("/", b.u.Path, "ws", "interview", sessionID)
		return out.String(), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse websocket endpoint %q: %w", raw, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		u.Scheme = strings.ToLower(u.Scheme)
	case "http", "https":
		u.Scheme = wsScheme(strings.ToLower(u.Scheme))
	case "":
		// Relative endpoint: resolve against the origin.
		ref := *b.u
		ref.Scheme = wsScheme(b.u.Scheme)
		ref.Path = path.Join("/", b.u.Path, u.Path)
		ref.RawQuery = u.RawQuery
		return ref.String(), nil
	default:
		return "", fmt.Errorf("websocket endpoint scheme must be ws or wss, got %q", u.Scheme)
	}

	if host := u.Hostname(); host == "" || IsLoopback(host) || isWildcard(host) {
		u.Host = b.u.Host
		if b.u.Scheme == "https" {
			u.Scheme = "wss"
		}
	}
	return u.String(), nil
}

// Media resolves an avatar video reference against the origin. Absolute
// references are returned unchanged; empty stays empty.
func (b Base) Media(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || b.u == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if u.IsAbs() {
		return ref
	}
	return b.u.ResolveReference(u).String()
}

// IsLoopback reports whether host names this machine.
func IsLoopback(host string) bool {
	host = strings.Trim(strings.ToLower(strings.TrimSpace(host)), "[]")
	if host == "localhost" || isWildcard(host) {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func isWildcard(host string) bool {
	host = strings.Trim(host, "[]")
	return host == "0.0.0.0" || host == "::"
}

func wsScheme(httpScheme string) string {
	if httpScheme == "https" {
		return "wss"
	}
	return "ws"
}

func joinHost(host, port string) string {
	if port == "" {
		return host
	}
	return net.JoinHostPort(host, port)
}
