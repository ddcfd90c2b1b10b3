package store

import (
	"sync"
	"time"

	"iot-observer/src/logger"
	"iot-observer/src/models"
	"iot-observer/src/utils"
)

// -----------------------------------------------------------------------------
// SeriesStore - historical time-series windows per (device, metric)
//
// Windows are timestamp-ascending slices of points. New fetches normally
// extend a window backward (the dashboard widens the visible range), but the
// merge handles arbitrary overlap by deduplicating on exact timestamp,
// keeping the already-cached value on conflict.
//
// The freshness map records the largest days-back window already requested
// per key, so widening from 1 to 7 days fetches days 2..7 only.
// -----------------------------------------------------------------------------

type SeriesStore struct {
	Logger *logger.Logger

	mu          sync.RWMutex
	series      map[models.MSeriesKey][]models.MSeriesPoint
	fetchedDays map[models.MSeriesKey]int
	loading     map[models.MSeriesKey]bool
	failed      map[models.MSeriesKey]bool
	// per-key request sequence; a timeout armed for an earlier request
	// carries a stale generation and must not touch its successor
	generations map[models.MSeriesKey]int
	// days value to restore if an in-flight request fails, so the freshness
	// check cannot permanently skip a range the server never delivered
	rollback map[models.MSeriesKey]int
}

// -----------------------------------------------------------------------------

func NewSeriesStore(logLevel string) *SeriesStore {
	return &SeriesStore{
		Logger:      logger.NewLogger(logLevel, "SeriesStore"),
		series:      make(map[models.MSeriesKey][]models.MSeriesPoint),
		fetchedDays: make(map[models.MSeriesKey]int),
		loading:     make(map[models.MSeriesKey]bool),
		failed:      make(map[models.MSeriesKey]bool),
		generations: make(map[models.MSeriesKey]int),
		rollback:    make(map[models.MSeriesKey]int),
	}
}

// -----------------------------------------------------------------------------

// MergeRange merges a timestamp-ascending batch of points into the cached
// window for (deviceID, metric). A missing bucket is seeded; an existing one
// is merged with exact-timestamp dedup where the cached value wins.
func (s *SeriesStore) MergeRange(deviceID, metric string, points []models.MSeriesPoint) {
	if len(points) == 0 {
		return
	}
	key := models.MSeriesKey{DeviceID: deviceID, Metric: metric}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.series[key]
	if !ok {
		s.series[key] = append([]models.MSeriesPoint(nil), points...)
		return
	}

	s.series[key] = mergeOrdered(points, existing)
}

// -----------------------------------------------------------------------------

// mergeOrdered linearly merges two ascending ranges. On equal timestamps the
// point from kept wins and the incoming duplicate is discarded.
func mergeOrdered(incoming, kept []models.MSeriesPoint) []models.MSeriesPoint {
	out := make([]models.MSeriesPoint, 0, len(incoming)+len(kept))
	i, k := 0, 0

	for i < len(incoming) && k < len(kept) {
		switch {
		case incoming[i].DateTime < kept[k].DateTime:
			out = append(out, incoming[i])
			i++
		case incoming[i].DateTime > kept[k].DateTime:
			out = append(out, kept[k])
			k++
		default:
			out = append(out, kept[k])
			i++
			k++
		}
	}

	out = append(out, incoming[i:]...)
	out = append(out, kept[k:]...)
	return out
}

// -----------------------------------------------------------------------------

// RequiredWindow performs the monotonic freshness check. If requestedDays is
// already covered it returns needed=false. Otherwise it returns only the
// incremental older date range, records requestedDays as the new coverage,
// and remembers the previous value for rollback should the request fail.
func (s *SeriesStore) RequiredWindow(deviceID, metric string, requestedDays int, now time.Time) (startDate, endDate string, needed bool) {
	key := models.MSeriesKey{DeviceID: deviceID, Metric: metric}

	s.mu.Lock()
	defer s.mu.Unlock()

	cached := s.fetchedDays[key]
	if requestedDays <= cached {
		return "", "", false
	}

	startDate, endDate = utils.IncrementalRange(now, cached, requestedDays)
	s.rollback[key] = cached
	s.fetchedDays[key] = requestedDays
	return startDate, endDate, true
}

// -----------------------------------------------------------------------------

// FetchedDays returns the recorded coverage for one key.
func (s *SeriesStore) FetchedDays(deviceID, metric string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedDays[models.MSeriesKey{DeviceID: deviceID, Metric: metric}]
}

// -----------------------------------------------------------------------------
// Loading flags - one per key so a slow request never blocks an unrelated one
// -----------------------------------------------------------------------------

// SetLoading marks a key in-flight. ok is false when a request for the key
// is already outstanding; the protocol has no correlation ids, so a second
// concurrent request for the same key must be refused. The returned
// generation identifies this request to FailLoading.
func (s *SeriesStore) SetLoading(deviceID, metric string) (generation int, ok bool) {
	key := models.MSeriesKey{DeviceID: deviceID, Metric: metric}

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

// ClearLoading marks a key resolved after its response merged.
func (s *SeriesStore) ClearLoading(deviceID, metric string) {
	key := models.MSeriesKey{DeviceID: deviceID, Metric: metric}

	s.mu.Lock()
	delete(s.loading, key)
	delete(s.rollback, key)
	delete(s.failed, key)
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

// FailLoading marks one in-flight key failed (timeout) and rolls its
// freshness back so a retry is not skipped. A stale generation is a no-op:
// the request it was armed for has already resolved and the key now belongs
// to a successor. Reports whether the key was actually failed.
func (s *SeriesStore) FailLoading(deviceID, metric string, generation int) bool {
	key := models.MSeriesKey{DeviceID: deviceID, Metric: metric}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generations[key] != generation {
		return false
	}
	return s.failKeyLocked(key)
}

// -----------------------------------------------------------------------------

// FailAllLoading marks every in-flight request failed. Called on disconnect:
// the cached data stays visible, only fetch-ability changes.
func (s *SeriesStore) FailAllLoading() {
	s.mu.Lock()
	for key := range s.loading {
		s.failKeyLocked(key)
	}
	s.mu.Unlock()
}

func (s *SeriesStore) failKeyLocked(key models.MSeriesKey) bool {
	if !s.loading[key] {
		return false
	}
	delete(s.loading, key)
	s.failed[key] = true
	if prev, ok := s.rollback[key]; ok {
		s.fetchedDays[key] = prev
		delete(s.rollback, key)
	}
	return true
}

// -----------------------------------------------------------------------------

// Loading reports whether a request for the key is outstanding.
func (s *SeriesStore) Loading(deviceID, metric string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading[models.MSeriesKey{DeviceID: deviceID, Metric: metric}]
}

// -----------------------------------------------------------------------------

// Failed reports whether the last request for the key failed.
func (s *SeriesStore) Failed(deviceID, metric string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed[models.MSeriesKey{DeviceID: deviceID, Metric: metric}]
}

// -----------------------------------------------------------------------------
// Read accessors
// -----------------------------------------------------------------------------

// Series returns a copy of the cached window, empty when nothing is cached.
func (s *SeriesStore) Series(deviceID, metric string) []models.MSeriesPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.series[models.MSeriesKey{DeviceID: deviceID, Metric: metric}]
	return append([]models.MSeriesPoint(nil), points...)
}

// -----------------------------------------------------------------------------

// Summary computes a min/max/avg overview of the cached window.
func (s *SeriesStore) Summary(deviceID, metric string) (models.MSeriesSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.series[models.MSeriesKey{DeviceID: deviceID, Metric: metric}]
	if len(points) == 0 {
		return models.MSeriesSummary{}, false
	}

	summary := models.MSeriesSummary{
		Points: len(points),
		Min:    points[0].Value,
		Max:    points[0].Value,
		First:  points[0].DateTime,
		Last:   points[len(points)-1].DateTime,
	}

	var sum float64
	for _, p := range points {
		if p.Value < summary.Min {
			summary.Min = p.Value
		}
		if p.Value > summary.Max {
			summary.Max = p.Value
		}
		sum += p.Value
	}
	summary.Avg = sum / float64(len(points))

	return summary, true
}

// -----------------------------------------------------------------------------

// Reset drops every window, freshness record, and flag.
func (s *SeriesStore) Reset() {
	s.mu.Lock()
	s.series = make(map[models.MSeriesKey][]models.MSeriesPoint)
	s.fetchedDays = make(map[models.MSeriesKey]int)
	s.loading = make(map[models.MSeriesKey]bool)
	s.failed = make(map[models.MSeriesKey]bool)
	s.generations = make(map[models.MSeriesKey]int)
	s.rollback = make(map[models.MSeriesKey]int)
	s.mu.Unlock()
}
