package server

import "encoding/json"

// Envelope kinds.
const (
	// KindMessage carries a named message: view to station on inbound
	// channels, station to view on outbound ones.
	KindMessage = "message"
	// KindInvoke is a request from the view that expects a KindReply.
	KindInvoke = "invoke"
	KindReply  = "reply"
	// KindLoaded reports that the view finished loading its content.
	KindLoaded = "loaded"
	// KindControl asks the view's window to focus, hide, show or close.
	KindControl = "control"
)

// Window controls sent as KindControl channels.
const (
	ControlFocus = "focus"
	ControlHide  = "hide"
	ControlShow  = "show"
	ControlClose = "close"
)

// Envelope is one frame on a view connection.
type Envelope struct {
	Kind    string          `json:"kind"`
	Seq     int64           `json:"seq,omitempty"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Descriptor tells a launched window where to connect.
type Descriptor struct {
	ID     string `json:"id"`
	View   string `json:"view"`
	Socket string `json:"socket"`
}
