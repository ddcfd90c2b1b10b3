package transport

import (
	"sync"
	"time"

	"iot-observer/src/helpers"
	"iot-observer/src/logger"
	"iot-observer/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait        = 2 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	handshakeTimeout = 10 * time.Second
	maxMessageSize   = 1024 * 1024 // 1MB for larger JSON messages
	eventBuffer      = 256
)

// -----------------------------------------------------------------------------
// WSTransport
// -----------------------------------------------------------------------------

// WSTransport is the websocket rendition of ITransport. It owns one physical
// connection at a time, delivers lifecycle events on a buffered channel, and
// never reconnects on its own.
type WSTransport struct {
	Logger *logger.Logger

	events chan models.MTransportEvent

	mu         sync.Mutex
	conn       *websocket.Conn
	open       bool
	dialing    bool // a dial is in progress; blocks a second concurrent Open
	terminated bool // terminal Closed event already sent for this attempt
}

// -----------------------------------------------------------------------------

func NewWSTransport(logLevel string) *WSTransport {
	return &WSTransport{
		Logger: logger.NewLogger(logLevel, "Transport"),
		// Buffered so a burst of frames never stalls the read pump
		events: make(chan models.MTransportEvent, eventBuffer),
	}
}

// -----------------------------------------------------------------------------

func (t *WSTransport) Events() <-chan models.MTransportEvent {
	return t.events
}

// -----------------------------------------------------------------------------

// Open dials the realtime server. A dial failure is returned synchronously
// and produces no events; a successful dial emits an Open event and later
// exactly one Closed event when the connection ends.
func (t *WSTransport) Open(url string) error {
	t.mu.Lock()
	if t.conn != nil || t.dialing {
		t.mu.Unlock()
		return helpers.NewTransportError("connection already open", nil)
	}
	// Claim the slot before releasing the lock; a concurrent Open during
	// the dial would otherwise overwrite the connection and leak it.
	t.dialing = true
	t.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.mu.Lock()
		t.dialing = false
		t.mu.Unlock()
		return helpers.NewTransportError("websocket dial failed", err)
	}

	t.mu.Lock()
	t.dialing = false
	t.conn = conn
	t.open = true
	t.terminated = false
	t.mu.Unlock()

	t.events <- models.MTransportEvent{Kind: models.TransportOpen}

	go t.readPump(conn)
	go t.pingLoop(conn)

	return nil
}

// -----------------------------------------------------------------------------

// Send writes a text frame. Silently dropped unless the connection is open;
// delivery is never guaranteed to the caller.
func (t *WSTransport) Send(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open || t.conn == nil {
		t.Logger.Debug("Send dropped, connection not open")
		return
	}

	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// The read pump surfaces the failure as the terminal Closed event.
		t.Logger.Info("Write error: %v", err)
	}
}

// -----------------------------------------------------------------------------

// Close tears the connection down. The read pump still emits the terminal
// Closed event for the attempt.
func (t *WSTransport) Close() {
	t.mu.Lock()
	conn := t.conn
	if conn != nil {
		t.open = false
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// -----------------------------------------------------------------------------
// readPump - delivers frames and the single terminal Closed event
// -----------------------------------------------------------------------------

func (t *WSTransport) readPump(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				t.Logger.Info("WebSocket error: %v", err)
			}
			t.terminate(conn, err)
			return
		}

		t.events <- models.MTransportEvent{
			Kind:   models.TransportFrame,
			Binary: mt == websocket.BinaryMessage,
			Data:   message,
		}
	}
}

// -----------------------------------------------------------------------------

func (t *WSTransport) terminate(conn *websocket.Conn, err error) {
	t.mu.Lock()
	if t.conn != conn || t.terminated {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.open = false
	t.terminated = true
	t.mu.Unlock()

	t.events <- models.MTransportEvent{Kind: models.TransportClosed, Err: err}
}

// -----------------------------------------------------------------------------
// pingLoop - keeps the connection alive; exits when the connection ends
// -----------------------------------------------------------------------------

func (t *WSTransport) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		// The mutex also serialises this write against Send and Close;
		// gorilla/websocket allows only one concurrent writer.
		t.mu.Lock()
		if t.conn != conn || !t.open {
			t.mu.Unlock()
			return
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		t.mu.Unlock()

		if err != nil {
			return
		}
	}
}
