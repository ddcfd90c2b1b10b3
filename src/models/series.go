package models

// -----------------------------------------------------------------------------
// Historical Series
// -----------------------------------------------------------------------------

// MSeriesPoint is one historical reading. DateTime is the server's ISO-8601
// string; points in a window are ordered ascending by it.
type MSeriesPoint struct {
	Value    float64 `json:"value"`
	DateTime string  `json:"date_time"`
}

// MSeriesKey addresses one time-series window: a metric on a device.
type MSeriesKey struct {
	DeviceID string
	Metric   string
}

// -----------------------------------------------------------------------------

// MSeriesSummary is a computed overview of a cached window.
type MSeriesSummary struct {
	Points int     `json:"points"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	First  string  `json:"first"`
	Last   string  `json:"last"`
}

// -----------------------------------------------------------------------------
// Derived Aggregate
// -----------------------------------------------------------------------------

// MInterruptionKey addresses one transition counter: a device and the
// requested window size in days.
type MInterruptionKey struct {
	DeviceID   string
	WindowDays int
}

// MTransitionCount is the derived mains-interruption statistic: the number of
// off-to-on transitions observed in the window, plus the last value seen so
// new live points can extend the count incrementally.
type MTransitionCount struct {
	Count     int     `json:"count"`
	LastValue float64 `json:"last_value"`
}
