package models

import "encoding/json"

// -----------------------------------------------------------------------------
// Message Kinds (closed set)
// -----------------------------------------------------------------------------

// MessageKind is the server message type tag.
type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindInitialData
	KindLiveData
	KindSensorData
	KindMainsInterruption
)

// -----------------------------------------------------------------------------

// ParseMessageKind maps the wire message_type string onto the closed kind set.
// Anything outside the set parses as KindUnknown so new server message types
// are ignored instead of breaking routing.
func ParseMessageKind(s string) MessageKind {
	switch s {
	case "initial_data":
		return KindInitialData
	case "live_data":
		return KindLiveData
	case "sensor_data":
		return KindSensorData
	case "mains_interruption":
		return KindMainsInterruption
	default:
		return KindUnknown
	}
}

// -----------------------------------------------------------------------------

func (k MessageKind) String() string {
	switch k {
	case KindInitialData:
		return "initial_data"
	case KindLiveData:
		return "live_data"
	case KindSensorData:
		return "sensor_data"
	case KindMainsInterruption:
		return "mains_interruption"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Envelope
// -----------------------------------------------------------------------------

// MDescriptor carries the routing fields of a decoded server message.
type MDescriptor struct {
	MessageType string `json:"message_type"`
	SensorName  string `json:"sensor_name,omitempty"`
	IotDeviceID string `json:"iot_device_id,omitempty"`
}

// MEnvelope is one fully decoded server frame: kind + routing + raw payload.
// The payload is left raw here; each cache decodes the shape it expects.
type MEnvelope struct {
	Kind       MessageKind
	Descriptor MDescriptor
	Payload    json.RawMessage
}
