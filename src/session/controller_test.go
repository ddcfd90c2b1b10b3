package session

import (
	"errors"
	"testing"
	"time"

	"iot-observer/src/helpers"
	"iot-observer/src/models"
)

func TestConnectMovesThroughConnecting(t *testing.T) {
	ft := newFakeTransport()
	c := NewController(testConfig(), ft, &fakeTokens{token: "tok"})

	if c.State() != models.StateClosed {
		t.Fatalf("fresh session must start closed, got %s", c.State())
	}

	if err := c.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	waitFor(t, "connected state", func() bool { return c.State() == models.StateConnected })

	// A second connect while connected is refused.
	if err := c.Connect(); err == nil {
		t.Error("connect while connected must be refused")
	}
}

func TestConnectAuthFailureIsDistinguishable(t *testing.T) {
	ft := newFakeTransport()
	c := NewController(testConfig(), ft, &fakeTokens{err: helpers.NewAuthError("denied", nil)})

	err := c.Connect()
	if err == nil {
		t.Fatal("expected connect to fail")
	}
	if !helpers.IsAuthError(err) {
		t.Errorf("expected an auth error, got %v", err)
	}
	if c.State() != models.StateClosed {
		t.Errorf("failed auth must land back in closed, got %s", c.State())
	}
}

func TestSubscriptionReplayedOnOpen(t *testing.T) {
	ft := newFakeTransport()
	c := NewController(testConfig(), ft, &fakeTokens{token: "tok"})

	sub := models.MSubscription{GroupType: models.GroupTypeCompany, CompanySlug: "acme"}
	if err := c.Subscribe(sub); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := c.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	waitFor(t, "subscribe replay", func() bool { return len(ft.sentMessages()) == 1 })

	msg := ft.sentMessages()[0]
	if msg["type"] != "group_subscribe" || msg["group_type"] != "company" || msg["company_slug"] != "acme" {
		t.Errorf("unexpected replayed subscription %v", msg)
	}
}

func TestSubscribeWhileConnectedSendsImmediately(t *testing.T) {
	c, ft := connectedController(t)

	if err := c.Subscribe(models.MSubscription{GroupType: models.GroupTypeUser, Username: "ada"}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	waitFor(t, "subscribe message", func() bool { return len(ft.sentMessages()) == 1 })
	if msg := ft.sentMessages()[0]; msg["username"] != "ada" {
		t.Errorf("unexpected message %v", msg)
	}

	if err := c.Subscribe(models.MSubscription{GroupType: "fleet"}); err == nil {
		t.Error("unknown group type must be refused")
	}
}

func TestLiveDataRouting(t *testing.T) {
	c, ft := connectedController(t)

	ft.deliver(t, map[string]string{"message_type": "initial_data"}, map[string]map[string]float64{
		"1": {"temp": 20, "hum": 50, "mains": 1, "timestamp": 1000},
	})
	waitFor(t, "initial seed", func() bool { return c.Snapshot() != nil })

	ft.deliver(t, map[string]string{"message_type": "live_data"}, map[string]map[string]float64{
		"1": {"temp": 22, "timestamp": 2000},
	})
	waitFor(t, "live merge", func() bool {
		snap := c.Snapshot()
		return snap != nil && snap["1"].Metrics["temp"] == 22
	})

	snap := c.Snapshot()
	if snap["1"].Metrics["hum"] != 50 {
		t.Errorf("partial update lost unrelated field: %+v", snap["1"])
	}
	if snap["1"].Timestamp != 2000 {
		t.Errorf("expected timestamp 2000, got %d", snap["1"].Timestamp)
	}

	if tail := c.LiveTail("1", "temp"); len(tail) != 1 || tail[0].Value != 22 {
		t.Errorf("live tail not fed: %+v", tail)
	}
}

func TestHistoricalWindowRequestAndResponse(t *testing.T) {
	c, ft := connectedController(t)
	c.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }

	if err := c.RequestHistoricalWindow("5", "temp", 7); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	waitFor(t, "series request", func() bool { return len(ft.sentMessages()) == 1 })

	msg := ft.sentMessages()[0]
	if msg["type"] != "sensor_data" || msg["sensor_name"] != "temp" || msg["iot_device_id"] != "5" {
		t.Fatalf("unexpected request %v", msg)
	}
	if msg["start_date"] != "2026-08-24" || msg["end_date"] != "2026-08-31" {
		t.Errorf("unexpected range %v..%v", msg["start_date"], msg["end_date"])
	}

	// Duplicate while in flight is a caller error.
	if err := c.RequestHistoricalWindow("5", "temp", 7); err == nil {
		t.Error("duplicate in-flight request must be refused")
	}

	ft.deliver(t,
		map[string]string{"message_type": "sensor_data", "sensor_name": "temp", "iot_device_id": "5"},
		[]map[string]interface{}{
			{"value": 20.0, "date_time": "2026-08-30T00:00:00Z"},
			{"value": 21.0, "date_time": "2026-08-31T00:00:00Z"},
		},
	)
	waitFor(t, "series merge", func() bool { return len(c.Series("5", "temp")) == 2 })

	// Covered request is skipped entirely: no new wire message.
	if err := c.RequestHistoricalWindow("5", "temp", 7); err != nil {
		t.Fatalf("covered request must succeed as a no-op: %v", err)
	}
	if got := len(ft.sentMessages()); got != 1 {
		t.Errorf("covered request went to the wire, %d messages", got)
	}
}

func TestRequestTimeoutClearsStuckFlag(t *testing.T) {
	c, ft := connectedController(t)
	c.requestTimeout = 30 * time.Millisecond

	if err := c.RequestHistoricalWindow("5", "temp", 7); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	waitFor(t, "request sent", func() bool { return len(ft.sentMessages()) == 1 })

	waitFor(t, "timeout to fail the request", func() bool { return c.series.Failed("5", "temp") })
	if c.series.Loading("5", "temp") {
		t.Error("loading flag stuck after timeout")
	}

	// The retry is not blocked by loading or freshness.
	if err := c.RequestHistoricalWindow("5", "temp", 7); err != nil {
		t.Errorf("retry after timeout refused: %v", err)
	}
}

func TestLateTimeoutDoesNotFailSuccessorRequest(t *testing.T) {
	c, ft := connectedController(t)
	c.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }
	c.requestTimeout = 40 * time.Millisecond

	// Request A resolves well before its timeout fires.
	if err := c.RequestHistoricalWindow("5", "temp", 7); err != nil {
		t.Fatalf("request A failed: %v", err)
	}
	waitFor(t, "request A sent", func() bool { return len(ft.sentMessages()) == 1 })
	ft.deliver(t,
		map[string]string{"message_type": "sensor_data", "sensor_name": "temp", "iot_device_id": "5"},
		[]map[string]interface{}{{"value": 20.0, "date_time": "2026-08-30T00:00:00Z"}},
	)
	waitFor(t, "request A resolved", func() bool { return !c.series.Loading("5", "temp") })

	// Request B widens the same key and is still in flight when A's timer
	// goes off.
	c.requestTimeout = 10 * time.Second
	if err := c.RequestHistoricalWindow("5", "temp", 15); err != nil {
		t.Fatalf("request B failed: %v", err)
	}
	waitFor(t, "request B sent", func() bool { return len(ft.sentMessages()) == 2 })

	time.Sleep(100 * time.Millisecond) // A's timer has fired by now

	if !c.series.Loading("5", "temp") {
		t.Fatal("request B was failed by request A's late timeout")
	}
	if c.series.Failed("5", "temp") {
		t.Error("key marked failed while request B is in flight")
	}
	if days := c.series.FetchedDays("5", "temp"); days != 15 {
		t.Errorf("freshness rolled back to %d, want 15", days)
	}
}

func TestTransitionCountRequestAndResponse(t *testing.T) {
	c, ft := connectedController(t)

	if err := c.RequestTransitionCount("5", 7); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	waitFor(t, "interruption request", func() bool { return len(ft.sentMessages()) == 1 })

	if msg := ft.sentMessages()[0]; msg["type"] != "mains_interruption" || msg["iot_device_id"] != "5" {
		t.Fatalf("unexpected request %v", msg)
	}

	ft.deliver(t,
		map[string]string{"message_type": "mains_interruption", "iot_device_id": "5"},
		map[string]int{"count": 4},
	)
	waitFor(t, "count stored", func() bool {
		tc, ok := c.TransitionCount("5", 7)
		return ok && tc.Count == 4
	})

	// Later live mains transition extends the fetched count.
	ft.deliver(t, map[string]string{"message_type": "live_data"}, map[string]map[string]float64{
		"5": {"mains": 0, "timestamp": 1000},
	})
	ft.deliver(t, map[string]string{"message_type": "live_data"}, map[string]map[string]float64{
		"5": {"mains": 1, "timestamp": 2000},
	})
	waitFor(t, "incremental count", func() bool {
		tc, _ := c.TransitionCount("5", 7)
		return tc.Count == 5
	})
}

func TestRequestsRefusedWhenNotConnected(t *testing.T) {
	ft := newFakeTransport()
	c := NewController(testConfig(), ft, &fakeTokens{token: "tok"})

	if err := c.RequestHistoricalWindow("5", "temp", 7); err == nil {
		t.Error("historical request must be refused while closed")
	}
	if err := c.RequestTransitionCount("5", 7); err == nil {
		t.Error("interruption request must be refused while closed")
	}
	if err := c.Retry(); err == nil {
		t.Error("retry is only valid from disconnected")
	}
}

func TestDisconnectPreservesCaches(t *testing.T) {
	c, ft := connectedController(t)

	ft.deliver(t,
		map[string]string{"message_type": "sensor_data", "sensor_name": "temp", "iot_device_id": "5"},
		[]map[string]interface{}{{"value": 20.0, "date_time": "2026-08-30T00:00:00Z"}},
	)
	waitFor(t, "series merge", func() bool { return len(c.Series("5", "temp")) == 1 })

	ft.dropConnection(errors.New("connection reset"))
	waitFor(t, "disconnected state", func() bool { return c.State() == models.StateDisconnected })

	if len(c.Series("5", "temp")) != 1 {
		t.Error("series cache must survive a disconnect")
	}

	// Explicit retry re-enters connecting and replays nothing extra here.
	if err := c.Retry(); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	waitFor(t, "reconnected", func() bool { return c.State() == models.StateConnected })
}

func TestDisconnectFailsInFlightRequests(t *testing.T) {
	c, ft := connectedController(t)

	if err := c.RequestHistoricalWindow("5", "temp", 7); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	waitFor(t, "request sent", func() bool { return len(ft.sentMessages()) == 1 })

	ft.dropConnection(errors.New("gone"))
	waitFor(t, "disconnected state", func() bool { return c.State() == models.StateDisconnected })

	if c.series.Loading("5", "temp") {
		t.Error("in-flight flag must clear on disconnect")
	}
	if !c.series.Failed("5", "temp") {
		t.Error("request must be marked failed on disconnect")
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	c, ft := connectedController(t)

	ft.deliver(t, map[string]string{"message_type": "initial_data"}, map[string]map[string]float64{
		"1": {"temp": 20, "timestamp": 1000},
	})
	ft.deliver(t,
		map[string]string{"message_type": "sensor_data", "sensor_name": "temp", "iot_device_id": "1"},
		[]map[string]interface{}{{"value": 20.0, "date_time": "2026-08-30T00:00:00Z"}},
	)
	waitFor(t, "caches populated", func() bool {
		return c.Snapshot() != nil && len(c.Series("1", "temp")) == 1
	})

	extraReset := false
	c.RegisterReset(func() { extraReset = true })

	c.Logout()

	if c.State() != models.StateClosed {
		t.Errorf("expected closed after logout, got %s", c.State())
	}
	if c.Snapshot() != nil {
		t.Error("snapshot survived logout")
	}
	if len(c.Series("1", "temp")) != 0 {
		t.Error("series survived logout")
	}
	if _, ok := c.TransitionCount("1", 7); ok {
		t.Error("aggregate survived logout")
	}
	if !extraReset {
		t.Error("registered reset callback not run")
	}
}

func TestMalformedFrameIsDroppedWithoutStateChange(t *testing.T) {
	c, ft := connectedController(t)

	ft.deliver(t, map[string]string{"message_type": "initial_data"}, map[string]map[string]float64{
		"1": {"temp": 20, "timestamp": 1000},
	})
	waitFor(t, "seed", func() bool { return c.Snapshot() != nil })

	ft.events <- models.MTransportEvent{Kind: models.TransportFrame, Data: []byte("{broken")}
	ft.deliver(t, map[string]string{"message_type": "firmware_update"}, map[string]int{"x": 1})

	// A subsequent valid frame still routes; connection state is untouched.
	ft.deliver(t, map[string]string{"message_type": "live_data"}, map[string]map[string]float64{
		"1": {"temp": 25, "timestamp": 2000},
	})
	waitFor(t, "later frame applied", func() bool {
		snap := c.Snapshot()
		return snap != nil && snap["1"].Metrics["temp"] == 25
	})

	if c.State() != models.StateConnected {
		t.Errorf("bad frame changed connection state to %s", c.State())
	}
}
