package models

// -----------------------------------------------------------------------------
// Connection State
// -----------------------------------------------------------------------------

// ConnectionState tracks the lifecycle of the single realtime connection.
type ConnectionState int

const (
	StateClosed ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

// -----------------------------------------------------------------------------

func (s ConnectionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
