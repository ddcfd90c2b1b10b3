package utils

import "time"

// -----------------------------------------------------------------------------
// Date window helpers for historical requests (dates on the wire are
// YYYY-MM-DD, inclusive).
// -----------------------------------------------------------------------------

const dateLayout = "2006-01-02"

// -----------------------------------------------------------------------------

// WindowRange returns the full request range covering daysBack days up to
// and including today.
func WindowRange(now time.Time, daysBack int) (startDate, endDate string) {
	return now.AddDate(0, 0, -daysBack).Format(dateLayout), now.Format(dateLayout)
}

// -----------------------------------------------------------------------------

// IncrementalRange returns the older sub-range still missing when cachedDays
// are already held and requestedDays are wanted. With 1 day cached and 7
// requested the result covers days 2..7 back, so the cached day is not
// fetched again. cachedDays 0 degenerates to the full window.
func IncrementalRange(now time.Time, cachedDays, requestedDays int) (startDate, endDate string) {
	startDate = now.AddDate(0, 0, -requestedDays).Format(dateLayout)
	if cachedDays <= 0 {
		endDate = now.Format(dateLayout)
		return
	}
	endDate = now.AddDate(0, 0, -(cachedDays + 1)).Format(dateLayout)
	return
}
