package store

import (
	"sync"

	"iot-observer/src/logger"
	"iot-observer/src/models"
)

// -----------------------------------------------------------------------------
// SnapshotStore - latest known reading set per device
// -----------------------------------------------------------------------------

type SnapshotStore struct {
	Logger *logger.Logger

	mu       sync.RWMutex
	snapshot models.MSnapshot // nil until first seed/merge
}

// -----------------------------------------------------------------------------

func NewSnapshotStore(logLevel string) *SnapshotStore {
	return &SnapshotStore{
		Logger: logger.NewLogger(logLevel, "SnapshotStore"),
	}
}

// -----------------------------------------------------------------------------

// Seed applies an initial_data payload: every device key present replaces the
// cached entry wholesale. Devices absent from the payload are kept.
func (s *SnapshotStore) Seed(update models.MSnapshot) {
	if len(update) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot == nil {
		s.snapshot = make(models.MSnapshot, len(update))
	}
	for deviceID, readings := range update {
		s.snapshot[deviceID] = readings.Clone()
	}
}

// -----------------------------------------------------------------------------

// Merge applies a live_data update: a shallow field-level merge into each
// device's metric map. New fields overwrite, absent fields are retained, and
// the device timestamp always moves to the update's.
func (s *SnapshotStore) Merge(update models.MSnapshot) {
	if len(update) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot == nil {
		// No prior snapshot: the update becomes the snapshot verbatim.
		s.snapshot = make(models.MSnapshot, len(update))
		for deviceID, readings := range update {
			s.snapshot[deviceID] = readings.Clone()
		}
		return
	}

	for deviceID, incoming := range update {
		existing, ok := s.snapshot[deviceID]
		if !ok {
			s.snapshot[deviceID] = incoming.Clone()
			continue
		}

		merged := existing.Clone()
		for metric, value := range incoming.Metrics {
			merged.Metrics[metric] = value
		}
		merged.Timestamp = incoming.Timestamp
		s.snapshot[deviceID] = merged
	}
}

// -----------------------------------------------------------------------------

// Snapshot returns a deep copy of the current aggregate, nil before any data
// has arrived.
func (s *SnapshotStore) Snapshot() models.MSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return nil
	}

	out := make(models.MSnapshot, len(s.snapshot))
	for deviceID, readings := range s.snapshot {
		out[deviceID] = readings.Clone()
	}
	return out
}

// -----------------------------------------------------------------------------

// Device returns a copy of one device's entry.
func (s *SnapshotStore) Device(deviceID string) (models.MDeviceReadings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	readings, ok := s.snapshot[deviceID]
	if !ok {
		return models.MDeviceReadings{}, false
	}
	return readings.Clone(), true
}

// -----------------------------------------------------------------------------

// Reset clears the cache to its pre-seed state. Used on logout and on
// explicit context switches.
func (s *SnapshotStore) Reset() {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
}
