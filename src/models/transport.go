package models

// -----------------------------------------------------------------------------
// Transport Events
// -----------------------------------------------------------------------------

// TransportEventKind identifies a transport lifecycle event.
type TransportEventKind int

const (
	TransportOpen TransportEventKind = iota
	TransportFrame
	TransportClosed
)

// -----------------------------------------------------------------------------

// MTransportEvent is one lifecycle event surfaced by the transport. Frame
// events carry the raw frame; Closed events may carry the error that ended
// the connection. Exactly one Closed event terminates every connection
// attempt.
type MTransportEvent struct {
	Kind   TransportEventKind
	Binary bool
	Data   []byte
	Err    error
}
