package interfaces

import "iot-observer/src/models"

// -----------------------------------------------------------------------------
// ISyncCore is the surface the rest of the application consumes: read
// accessors over the caches plus the connection action functions. The
// gateway server talks to the session exclusively through this interface.
// -----------------------------------------------------------------------------

type ISyncCore interface {

	// -----------------------------------------------------------------------------
	// Read accessors (copies; never aliases of cache-owned state)

	State() models.ConnectionState
	Snapshot() models.MSnapshot
	Series(deviceID, metric string) []models.MSeriesPoint
	SeriesSummary(deviceID, metric string) (models.MSeriesSummary, bool)
	LiveTail(deviceID, metric string) []models.MSeriesPoint
	TransitionCount(deviceID string, windowDays int) (models.MTransitionCount, bool)

	// -----------------------------------------------------------------------------
	// Actions

	Connect() error
	Retry() error
	Disconnect()
	Subscribe(sub models.MSubscription) error
	RequestHistoricalWindow(deviceID, metric string, days int) error
	RequestTransitionCount(deviceID string, days int) error

	// -----------------------------------------------------------------------------

	// Logout resets every cache and tears the connection down. Nothing from
	// the session survives for a subsequent user.
	Logout()
}
