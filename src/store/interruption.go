package store

import (
	"sync"

	"iot-observer/src/logger"
	"iot-observer/src/models"
)

// -----------------------------------------------------------------------------
// InterruptionStore - derived mains-interruption counts
//
// One counter per (device, windowDays). The authoritative count arrives from
// the server once per request; after that, live mains readings extend it
// incrementally: a 0 -> nonzero transition observed strictly after the
// baseline was set counts as one interruption ending (power restored).
// -----------------------------------------------------------------------------

type InterruptionStore struct {
	Logger *logger.Logger

	mu     sync.RWMutex
	counts map[models.MInterruptionKey]models.MTransitionCount
	// last mains value seen per device, used to seed the baseline when an
	// authoritative count resets it
	lastSeen map[string]float64
	hasSeen  map[string]bool
	loading  map[models.MInterruptionKey]bool
	failed   map[models.MInterruptionKey]bool
	// per-key request sequence; a timeout armed for an earlier request
	// carries a stale generation and must not touch its successor
	generations map[models.MInterruptionKey]int
}

// -----------------------------------------------------------------------------

func NewInterruptionStore(logLevel string) *InterruptionStore {
	return &InterruptionStore{
		Logger:   logger.NewLogger(logLevel, "InterruptionStore"),
		counts:   make(map[models.MInterruptionKey]models.MTransitionCount),
		lastSeen: make(map[string]float64),
		hasSeen:  make(map[string]bool),
		loading:  make(map[models.MInterruptionKey]bool),
		failed:   make(map[models.MInterruptionKey]bool),

		generations: make(map[models.MInterruptionKey]int),
	}
}

// -----------------------------------------------------------------------------

// Observe feeds one live mains reading. Every window tracked for the device
// increments on a genuine 0 -> 1 transition; the last value always advances
// whether or not a transition occurred.
func (s *InterruptionStore) Observe(deviceID string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, tc := range s.counts {
		if key.DeviceID != deviceID {
			continue
		}
		if tc.LastValue == 0 && value != 0 {
			tc.Count++
		}
		tc.LastValue = value
		s.counts[key] = tc
	}

	s.lastSeen[deviceID] = value
	s.hasSeen[deviceID] = true
}

// -----------------------------------------------------------------------------

// SetCount installs the authoritative count for one window and resets the
// transition baseline to the device's last observed value. Mains presence is
// assumed when no live value has been seen yet.
func (s *InterruptionStore) SetCount(deviceID string, windowDays, count int) {
	key := models.MInterruptionKey{DeviceID: deviceID, WindowDays: windowDays}

	s.mu.Lock()
	defer s.mu.Unlock()

	baseline := float64(1)
	if s.hasSeen[deviceID] {
		baseline = s.lastSeen[deviceID]
	}
	s.counts[key] = models.MTransitionCount{Count: count, LastValue: baseline}
}

// -----------------------------------------------------------------------------

// Count returns the current counter for one window.
func (s *InterruptionStore) Count(deviceID string, windowDays int) (models.MTransitionCount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tc, ok := s.counts[models.MInterruptionKey{DeviceID: deviceID, WindowDays: windowDays}]
	return tc, ok
}

// -----------------------------------------------------------------------------
// Loading flags
// -----------------------------------------------------------------------------

// SetLoading marks a window request in-flight; ok is false when one is
// already outstanding for the key. The returned generation identifies this
// request to FailLoading.
func (s *InterruptionStore) SetLoading(deviceID string, windowDays int) (generation int, ok bool) {
	key := models.MInterruptionKey{DeviceID: deviceID, WindowDays: windowDays}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading[key] {
		return 0, false
	}
	s.loading[key] = true
	s.generations[key]++
	delete(s.failed, key)
	return s.generations[key], true
}

// -----------------------------------------------------------------------------

// ClearLoading resolves the in-flight flag for a device. The response
// descriptor carries no window size, so every window of the device clears;
// only one can be outstanding at a time anyway.
func (s *InterruptionStore) ClearLoading(deviceID string) {
	s.mu.Lock()
	for key := range s.loading {
		if key.DeviceID == deviceID {
			delete(s.loading, key)
			delete(s.failed, key)
		}
	}
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

// FailLoading marks one in-flight window failed (timeout). A stale
// generation is a no-op: the request it was armed for has already resolved
// and the key now belongs to a successor. Reports whether the key was
// actually failed.
func (s *InterruptionStore) FailLoading(deviceID string, windowDays, generation int) bool {
	key := models.MInterruptionKey{DeviceID: deviceID, WindowDays: windowDays}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generations[key] != generation || !s.loading[key] {
		return false
	}
	delete(s.loading, key)
	s.failed[key] = true
	return true
}

// -----------------------------------------------------------------------------

// FailAllLoading clears every in-flight flag. Called on disconnect.
func (s *InterruptionStore) FailAllLoading() {
	s.mu.Lock()
	for key := range s.loading {
		delete(s.loading, key)
		s.failed[key] = true
	}
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Loading reports whether a request for the key is outstanding.
func (s *InterruptionStore) Loading(deviceID string, windowDays int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading[models.MInterruptionKey{DeviceID: deviceID, WindowDays: windowDays}]
}

// -----------------------------------------------------------------------------

// Reset drops every counter, baseline, and flag.
func (s *InterruptionStore) Reset() {
	s.mu.Lock()
	s.counts = make(map[models.MInterruptionKey]models.MTransitionCount)
	s.lastSeen = make(map[string]float64)
	s.hasSeen = make(map[string]bool)
	s.loading = make(map[models.MInterruptionKey]bool)
	s.failed = make(map[models.MInterruptionKey]bool)
	s.generations = make(map[models.MInterruptionKey]int)
	s.mu.Unlock()
}
