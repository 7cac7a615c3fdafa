// Package ipc carries control commands between hifz invocations and the
// owner process over a unix socket, one JSON line each way per connection.
package ipc

// Commands understood by the owner.
const (
	CommandStatus = "status"
	CommandStop   = "stop"
	CommandToggle = "toggle"
	CommandReset  = "reset"
)

type Request struct {
	Command string `json:"command"`
}

// Response carries the owner state; Progress and Verse describe the active recitation.
type Response struct {
	OK       bool    `json:"ok"`
	State    string  `json:"state,omitempty"`
	Message  string  `json:"message,omitempty"`
	Error    string  `json:"error,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Verse    int     `json:"verse,omitempty"`
}

// Failed builds an error response for the given state.
func Failed(state string, format string, args ...any) Response {
	return Response{OK: false, State: state, Error: sprintf(format, args...)}
}
