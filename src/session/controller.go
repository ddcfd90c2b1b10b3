package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"iot-observer/src/auth"
	"iot-observer/src/codec"
	"iot-observer/src/interfaces"
	"iot-observer/src/logger"
	"iot-observer/src/models"
	"iot-observer/src/store"
	"iot-observer/src/utils"
)

// -----------------------------------------------------------------------------
// Controller - the connection state machine
//
// One Controller per session. It owns the transport, decodes incoming frames,
// routes payloads into the caches, replays the subscription on (re)connect,
// and runs every registered reset callback on logout. Reconnection is
// explicit: a dropped connection parks in Disconnected until Retry is called.
// -----------------------------------------------------------------------------

type Controller struct {
	Config    *models.MConfig
	Logger    *logger.Logger
	Transport interfaces.ITransport
	Tokens    interfaces.ITokenProvider

	snapshots     *store.SnapshotStore
	series        *store.SeriesStore
	interruptions *store.InterruptionStore
	liveTail      *store.LiveTailStore

	requestTimeout time.Duration
	now            func() time.Time // injectable clock

	mu           sync.Mutex
	state        models.ConnectionState
	subscription *models.MSubscription
	// window size of the outstanding interruption request per device; the
	// response descriptor does not echo it
	pendingWindows map[string]int
	resetCallbacks []func()
}

// -----------------------------------------------------------------------------

func NewController(cfg *models.MConfig, transport interfaces.ITransport, tokens interfaces.ITokenProvider) *Controller {
	c := &Controller{
		Config:         cfg,
		Logger:         logger.NewLogger(cfg.LogLevel, "Session"),
		Transport:      transport,
		Tokens:         tokens,
		snapshots:      store.NewSnapshotStore(cfg.LogLevel),
		series:         store.NewSeriesStore(cfg.LogLevel),
		interruptions:  store.NewInterruptionStore(cfg.LogLevel),
		liveTail:       store.NewLiveTailStore(cfg.Realtime.LiveTailPoints),
		requestTimeout: time.Duration(cfg.Realtime.RequestTimeoutSeconds) * time.Second,
		now:            time.Now,
		state:          models.StateClosed,
		pendingWindows: make(map[string]int),
	}

	// Session teardown must leave nothing behind for the next user.
	c.RegisterReset(c.snapshots.Reset)
	c.RegisterReset(c.series.Reset)
	c.RegisterReset(c.interruptions.Reset)
	c.RegisterReset(c.liveTail.Reset)

	go c.run()
	return c
}

// -----------------------------------------------------------------------------

// RegisterReset adds a callback run on Logout, before transport teardown.
func (c *Controller) RegisterReset(fn func()) {
	c.mu.Lock()
	c.resetCallbacks = append(c.resetCallbacks, fn)
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------
// Actions
// -----------------------------------------------------------------------------

// Connect moves Closed/Disconnected -> Connecting: fetches a connection
// token, then opens the transport. Auth failures come back as
// *helpers.AuthError so callers can distinguish "could not establish
// connection" from an ordinary drop.
func (c *Controller) Connect() error {
	c.mu.Lock()
	if c.state == models.StateConnecting || c.state == models.StateConnected {
		c.mu.Unlock()
		return fmt.Errorf("connect refused in state %s", c.state)
	}
	previous := c.state
	c.state = models.StateConnecting
	c.mu.Unlock()

	token, err := c.Tokens.Token()
	if err != nil {
		c.setState(previous)
		return err
	}

	if err := c.Transport.Open(auth.ConnectionURL(c.Config.Realtime.ServerURL, token)); err != nil {
		// The attempt failed before a connection existed; park retryable.
		c.setState(models.StateDisconnected)
		return err
	}

	return nil
}

// -----------------------------------------------------------------------------

// Retry is the explicit user-triggered reconnect from Disconnected.
// The token provider refetches if the token expired while disconnected.
func (c *Controller) Retry() error {
	c.mu.Lock()
	if c.state != models.StateDisconnected {
		c.mu.Unlock()
		return fmt.Errorf("retry refused in state %s", c.state)
	}
	c.mu.Unlock()

	return c.Connect()
}

// -----------------------------------------------------------------------------

// Disconnect closes the transport. The terminal Closed event drives the
// state transition; caches are left intact.
func (c *Controller) Disconnect() {
	c.Transport.Close()
}

// -----------------------------------------------------------------------------

// Subscribe replaces the subscription descriptor. While connected the new
// group_subscribe goes out immediately; previously cached data stays
// addressable, it just stops receiving live updates. While not connected the
// descriptor is held and replayed on the next open.
func (c *Controller) Subscribe(sub models.MSubscription) error {
	if sub.GroupType != models.GroupTypeUser && sub.GroupType != models.GroupTypeCompany {
		return fmt.Errorf("unknown group type '%s'", sub.GroupType)
	}

	c.mu.Lock()
	c.subscription = &sub
	connected := c.state == models.StateConnected
	c.mu.Unlock()

	if connected {
		c.send(models.NewGroupSubscribe(sub))
	}
	return nil
}

// -----------------------------------------------------------------------------

// RequestHistoricalWindow asks the server for days of history for one metric
// on one device. The freshness check makes widening incremental: only the
// not-yet-covered older range goes out, and a fully covered request is a
// no-op. A timeout clears the loading flag if the response never arrives.
func (c *Controller) RequestHistoricalWindow(deviceID, metric string, days int) error {
	if days <= 0 {
		return fmt.Errorf("days must be positive, got %d", days)
	}
	if c.State() != models.StateConnected {
		return fmt.Errorf("not connected")
	}

	gen, ok := c.series.SetLoading(deviceID, metric)
	if !ok {
		return fmt.Errorf("request already in flight for %s/%s", deviceID, metric)
	}

	startDate, endDate, needed := c.series.RequiredWindow(deviceID, metric, days, c.now())
	if !needed {
		c.series.ClearLoading(deviceID, metric)
		c.Logger.Debug("Window of %d days already cached for %s/%s", days, deviceID, metric)
		return nil
	}

	c.send(models.NewSeriesRequest(deviceID, metric, startDate, endDate))

	// The generation pins the timer to this request; once the response
	// clears the flag, a successor for the same key is out of its reach.
	time.AfterFunc(c.requestTimeout, func() {
		if c.series.FailLoading(deviceID, metric, gen) {
			c.Logger.Warning("Historical request for %s/%s timed out", deviceID, metric)
		}
	})
	return nil
}

// -----------------------------------------------------------------------------

// RequestTransitionCount asks for the authoritative interruption count over
// the last days for a device.
func (c *Controller) RequestTransitionCount(deviceID string, days int) error {
	if days <= 0 {
		return fmt.Errorf("days must be positive, got %d", days)
	}
	if c.State() != models.StateConnected {
		return fmt.Errorf("not connected")
	}

	gen, ok := c.interruptions.SetLoading(deviceID, days)
	if !ok {
		return fmt.Errorf("request already in flight for %s", deviceID)
	}

	c.mu.Lock()
	c.pendingWindows[deviceID] = days
	c.mu.Unlock()

	startDate, _ := utils.WindowRange(c.now(), days)
	c.send(models.NewInterruptionRequest(deviceID, startDate))

	time.AfterFunc(c.requestTimeout, func() {
		if c.interruptions.FailLoading(deviceID, days, gen) {
			c.Logger.Warning("Interruption request for %s timed out", deviceID)
		}
	})
	return nil
}

// -----------------------------------------------------------------------------

// Logout runs every registered reset callback, drops the subscription, and
// tears the transport down. Valid from any state; the session ends Closed.
func (c *Controller) Logout() {
	c.mu.Lock()
	callbacks := make([]func(), len(c.resetCallbacks))
	copy(callbacks, c.resetCallbacks)
	c.subscription = nil
	c.pendingWindows = make(map[string]int)
	c.state = models.StateClosed
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}

	c.Transport.Close()
	c.Logger.Info("Session closed, caches reset")
}

// -----------------------------------------------------------------------------
// Read accessors
// -----------------------------------------------------------------------------

func (c *Controller) State() models.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() models.MSnapshot {
	return c.snapshots.Snapshot()
}

func (c *Controller) Series(deviceID, metric string) []models.MSeriesPoint {
	return c.series.Series(deviceID, metric)
}

func (c *Controller) SeriesSummary(deviceID, metric string) (models.MSeriesSummary, bool) {
	return c.series.Summary(deviceID, metric)
}

func (c *Controller) LiveTail(deviceID, metric string) []models.MSeriesPoint {
	return c.liveTail.Tail(deviceID, metric)
}

func (c *Controller) TransitionCount(deviceID string, windowDays int) (models.MTransitionCount, bool) {
	return c.interruptions.Count(deviceID, windowDays)
}

// -----------------------------------------------------------------------------
// Event loop
// -----------------------------------------------------------------------------

func (c *Controller) run() {
	for ev := range c.Transport.Events() {
		switch ev.Kind {
		case models.TransportOpen:
			c.handleOpen()
		case models.TransportFrame:
			c.handleFrame(ev)
		case models.TransportClosed:
			c.handleClosed(ev)
		}
	}
}

// -----------------------------------------------------------------------------

func (c *Controller) handleOpen() {
	c.mu.Lock()
	if c.state != models.StateConnecting {
		c.mu.Unlock()
		return
	}
	c.state = models.StateConnected
	sub := c.subscription
	c.mu.Unlock()

	c.Logger.Info("Connected")

	// The server holds no client intent across reconnects; the current
	// subscription must be replayed on every open.
	if sub != nil {
		c.send(models.NewGroupSubscribe(*sub))
	}
}

// -----------------------------------------------------------------------------

func (c *Controller) handleClosed(ev models.MTransportEvent) {
	c.mu.Lock()
	if c.state == models.StateClosed {
		// Logout teardown; already reset.
		c.mu.Unlock()
		return
	}
	c.state = models.StateDisconnected
	c.pendingWindows = make(map[string]int)
	c.mu.Unlock()

	if ev.Err != nil {
		c.Logger.Warning("Connection lost: %v", ev.Err)
	} else {
		c.Logger.Info("Connection closed")
	}

	// Cached data stays visible; only in-flight requests fail.
	c.series.FailAllLoading()
	c.interruptions.FailAllLoading()
}

// -----------------------------------------------------------------------------

// handleFrame decodes and routes one frame. A frame that fails to decode is
// logged and dropped whole; it never touches a cache or the connection state.
func (c *Controller) handleFrame(ev models.MTransportEvent) {
	env, err := codec.Decode(ev.Data, ev.Binary)
	if err != nil {
		c.Logger.Error("Dropping frame: %v", err)
		return
	}

	switch env.Kind {
	case models.KindInitialData:
		c.applyInitial(env)
	case models.KindLiveData:
		c.applyLive(env)
	case models.KindSensorData:
		c.applySeries(env)
	case models.KindMainsInterruption:
		c.applyInterruption(env)
	case models.KindUnknown:
		c.Logger.Debug("Ignoring unknown message type '%s'", env.Descriptor.MessageType)
	}
}

// -----------------------------------------------------------------------------

func (c *Controller) applyInitial(env models.MEnvelope) {
	snap, err := codec.DecodeSnapshot(env.Payload)
	if err != nil {
		c.Logger.Error("Dropping initial_data: %v", err)
		return
	}
	c.snapshots.Seed(snap)
}

// -----------------------------------------------------------------------------

func (c *Controller) applyLive(env models.MEnvelope) {
	snap, err := codec.DecodeSnapshot(env.Payload)
	if err != nil {
		c.Logger.Error("Dropping live_data: %v", err)
		return
	}

	c.snapshots.Merge(snap)

	for deviceID, readings := range snap {
		c.liveTail.Observe(deviceID, readings)
		if mains, ok := readings.Metrics[c.Config.Realtime.MainsMetric]; ok {
			c.interruptions.Observe(deviceID, mains)
		}
	}
}

// -----------------------------------------------------------------------------

func (c *Controller) applySeries(env models.MEnvelope) {
	points, err := codec.DecodeSeries(env.Payload)
	if err != nil {
		c.Logger.Error("Dropping sensor_data: %v", err)
		return
	}

	deviceID := env.Descriptor.IotDeviceID
	metric := env.Descriptor.SensorName
	c.series.MergeRange(deviceID, metric, points)
	c.series.ClearLoading(deviceID, metric)
	c.Logger.Debug("Merged %d points for %s/%s", len(points), deviceID, metric)
}

// -----------------------------------------------------------------------------

func (c *Controller) applyInterruption(env models.MEnvelope) {
	payload, err := codec.DecodeInterruption(env.Payload)
	if err != nil {
		c.Logger.Error("Dropping mains_interruption: %v", err)
		return
	}

	deviceID := env.Descriptor.IotDeviceID

	c.mu.Lock()
	days, ok := c.pendingWindows[deviceID]
	delete(c.pendingWindows, deviceID)
	c.mu.Unlock()

	if !ok {
		// Stale response after a context switch: harmless, nothing to key
		// the count under.
		c.Logger.Debug("Unsolicited interruption count for %s, ignoring", deviceID)
		return
	}

	c.interruptions.SetCount(deviceID, days, payload.Count)
	c.interruptions.ClearLoading(deviceID)
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func (c *Controller) setState(state models.ConnectionState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// send marshals and writes one outbound message. Delivery is best-effort:
// the transport drops writes when not open.
func (c *Controller) send(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.Logger.Error("Failed to encode outbound message: %v", err)
		return
	}
	c.Transport.Send(data)
}
