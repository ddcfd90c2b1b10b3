package interfaces

import "iot-observer/src/models"

// -----------------------------------------------------------------------------
// ITransport owns the single physical connection to the realtime server.
// -----------------------------------------------------------------------------

type ITransport interface {

	// -----------------------------------------------------------------------------

	// Open dials the given URL and starts delivering events. Only one
	// connection attempt may be active at a time.
	Open(url string) error

	// -----------------------------------------------------------------------------

	// Send writes a text frame. It is a silent no-op unless the connection
	// is open; callers must not assume delivery.
	Send(data []byte)

	// -----------------------------------------------------------------------------

	// Close tears the connection down. The pending attempt still emits its
	// single terminal Closed event.
	Close()

	// -----------------------------------------------------------------------------

	// Events returns the lifecycle event stream (open / frame / closed).
	// The transport never reconnects on its own; that policy belongs to the
	// session controller.
	Events() <-chan models.MTransportEvent
}
