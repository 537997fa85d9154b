// Package ipc lets a second parley process query and steer the running
// interview over a unix socket. Each connection carries one JSON line in
// each direction.
package ipc

// Commands served by the session owner.
const (
	CommandStatus = "status"
	CommandStop   = "stop"
	CommandCancel = "cancel"
)

// Request names a command and, optionally, who issued it (for logs and
// refusal messages).
type Request struct {
	Command string `json:"command"`
	Source  string `json:"source,omitempty"`
}

// Response is the owner's reply. State is always the controller state at
// the time the request was handled.
type Response struct {
	OK        bool   `json:"ok"`
	State     string `json:"state,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Question  int    `json:"question,omitempty"`
	Total     int    `json:"total,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}
