package models

// -----------------------------------------------------------------------------
// Outbound Wire Messages (client -> server, JSON {type, ...})
// -----------------------------------------------------------------------------

const (
	GroupTypeUser    = "user"
	GroupTypeCompany = "company"
)

// MSubscription is the interest group the client is bound to: a user's own
// stream or a company's aggregate stream. At most one is active per
// connection; changing it replaces the previous one.
type MSubscription struct {
	GroupType   string `json:"group_type"`
	Username    string `json:"username,omitempty"`
	CompanySlug string `json:"company_slug,omitempty"`
}

// -----------------------------------------------------------------------------

// MGroupSubscribe declares interest in a live stream.
type MGroupSubscribe struct {
	Type        string `json:"type"`
	GroupType   string `json:"group_type"`
	Username    string `json:"username,omitempty"`
	CompanySlug string `json:"company_slug,omitempty"`
}

func NewGroupSubscribe(sub MSubscription) MGroupSubscribe {
	return MGroupSubscribe{
		Type:        "group_subscribe",
		GroupType:   sub.GroupType,
		Username:    sub.Username,
		CompanySlug: sub.CompanySlug,
	}
}

// -----------------------------------------------------------------------------

// MSeriesRequest asks for a historical window of one metric on one device.
// Dates are YYYY-MM-DD, inclusive.
type MSeriesRequest struct {
	Type        string `json:"type"`
	SensorName  string `json:"sensor_name"`
	IotDeviceID string `json:"iot_device_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

func NewSeriesRequest(deviceID, metric, startDate, endDate string) MSeriesRequest {
	return MSeriesRequest{
		Type:        "sensor_data",
		SensorName:  metric,
		IotDeviceID: deviceID,
		StartDate:   startDate,
		EndDate:     endDate,
	}
}

// -----------------------------------------------------------------------------

// MInterruptionRequest asks for the authoritative transition count since
// start_date.
type MInterruptionRequest struct {
	Type        string `json:"type"`
	IotDeviceID string `json:"iot_device_id"`
	StartDate   string `json:"start_date"`
}

func NewInterruptionRequest(deviceID, startDate string) MInterruptionRequest {
	return MInterruptionRequest{
		Type:        "mains_interruption",
		IotDeviceID: deviceID,
		StartDate:   startDate,
	}
}

// -----------------------------------------------------------------------------

// MInterruptionPayload is the server's answer to MInterruptionRequest.
type MInterruptionPayload struct {
	Count int `json:"count"`
}
