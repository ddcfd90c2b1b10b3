package session

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"iot-observer/src/models"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeTransport struct {
	events chan models.MTransportEvent

	mu      sync.Mutex
	open    bool
	sent    [][]byte
	openErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan models.MTransportEvent, 64)}
}

func (f *fakeTransport) Open(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.open = true
	f.events <- models.MTransportEvent{Kind: models.TransportOpen}
	return nil
}

func (f *fakeTransport) Send(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return
	}
	f.sent = append(f.sent, data)
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		f.open = false
		f.events <- models.MTransportEvent{Kind: models.TransportClosed}
	}
}

func (f *fakeTransport) Events() <-chan models.MTransportEvent {
	return f.events
}

// dropConnection simulates a server-side close.
func (f *fakeTransport) dropConnection(err error) {
	f.mu.Lock()
	f.open = false
	f.mu.Unlock()
	f.events <- models.MTransportEvent{Kind: models.TransportClosed, Err: err}
}

// deliver pushes a decoded-side frame as if read from the wire.
func (f *fakeTransport) deliver(t *testing.T, descriptor, payload interface{}) {
	t.Helper()
	data, err := json.Marshal([]interface{}{descriptor, payload})
	if err != nil {
		t.Fatalf("failed to build frame: %v", err)
	}
	f.events <- models.MTransportEvent{Kind: models.TransportFrame, Data: data}
}

func (f *fakeTransport) sentMessages() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]map[string]interface{}, 0, len(f.sent))
	for _, raw := range f.sent {
		var m map[string]interface{}
		json.Unmarshal(raw, &m)
		out = append(out, m)
	}
	return out
}

// -----------------------------------------------------------------------------

type fakeTokens struct {
	mu      sync.Mutex
	token   string
	err     error
	fetches int
}

func (f *fakeTokens) Token() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func (f *fakeTokens) Invalidate() {}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func testConfig() *models.MConfig {
	return &models.MConfig{
		Name:     "test",
		LogLevel: "INFO",
		Realtime: models.MRealtimeConfig{
			ServerURL:             "ws://example.test/ws",
			RequestTimeoutSeconds: 30,
			LiveTailPoints:        16,
			MainsMetric:           "mains",
		},
	}
}

// waitFor polls until the condition holds; the controller applies events on
// its own goroutine.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func connectedController(t *testing.T) (*Controller, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	c := NewController(testConfig(), ft, &fakeTokens{token: "tok"})
	if err := c.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	waitFor(t, "connected state", func() bool { return c.State() == models.StateConnected })
	return c, ft
}
