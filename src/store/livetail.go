package store

import (
	"sync"
	"time"

	"iot-observer/src/models"
	"iot-observer/src/utils"
)

// -----------------------------------------------------------------------------
// LiveTailStore - bounded recent-point buffer per (device, metric)
//
// Live chart tails are served from here without issuing a historical window
// request. Each key holds a fixed-capacity ring buffer; the oldest points
// fall off as new live updates stream in.
// -----------------------------------------------------------------------------

type LiveTailStore struct {
	capacity int
	now      func() time.Time // injectable clock

	mu      sync.RWMutex
	buffers map[models.MSeriesKey]*utils.RingBuffer
}

// -----------------------------------------------------------------------------

func NewLiveTailStore(capacity int) *LiveTailStore {
	return &LiveTailStore{
		capacity: capacity,
		now:      time.Now,
		buffers:  make(map[models.MSeriesKey]*utils.RingBuffer),
	}
}

// -----------------------------------------------------------------------------

// Observe appends every metric of a live update to that metric's tail.
// An update without a timestamp is stamped on arrival rather than plotted
// at the epoch.
func (s *LiveTailStore) Observe(deviceID string, readings models.MDeviceReadings) {
	at := time.UnixMilli(readings.Timestamp)
	if readings.Timestamp == 0 {
		at = s.now()
	}
	ts := at.UTC().Format(time.RFC3339)

	s.mu.Lock()
	defer s.mu.Unlock()

	for metric, value := range readings.Metrics {
		key := models.MSeriesKey{DeviceID: deviceID, Metric: metric}
		buf, ok := s.buffers[key]
		if !ok {
			buf = utils.NewRingBuffer(s.capacity)
			s.buffers[key] = buf
		}
		buf.Append(models.MSeriesPoint{Value: value, DateTime: ts})
	}
}

// -----------------------------------------------------------------------------

// Tail returns the buffered recent points for one metric, oldest first.
func (s *LiveTailStore) Tail(deviceID, metric string) []models.MSeriesPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, ok := s.buffers[models.MSeriesKey{DeviceID: deviceID, Metric: metric}]
	if !ok {
		return []models.MSeriesPoint{}
	}
	return buf.GetAll()
}

// -----------------------------------------------------------------------------

// Reset drops every buffer.
func (s *LiveTailStore) Reset() {
	s.mu.Lock()
	s.buffers = make(map[models.MSeriesKey]*utils.RingBuffer)
	s.mu.Unlock()
}
