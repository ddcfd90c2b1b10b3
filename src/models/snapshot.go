package models

import (
	"encoding/json"
	"fmt"
)

// -----------------------------------------------------------------------------
// Live Snapshot
// -----------------------------------------------------------------------------

// MDeviceReadings holds the latest scalar value per metric for one device,
// plus the single timestamp shared by the metrics of the last merge.
//
// On the wire the timestamp travels inside the flat metric map
// ({"temp": 21.5, "hum": 40, "timestamp": 1756600000000}), so this type
// carries custom JSON marshalling to split it out.
type MDeviceReadings struct {
	Metrics   map[string]float64
	Timestamp int64
}

// MSnapshot is the aggregate latest-reading set, keyed by device id.
type MSnapshot map[string]MDeviceReadings

// -----------------------------------------------------------------------------

const timestampField = "timestamp"

func (r *MDeviceReadings) UnmarshalJSON(data []byte) error {
	var flat map[string]json.Number
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	r.Metrics = make(map[string]float64, len(flat))
	for name, num := range flat {
		if name == timestampField {
			ts, err := num.Int64()
			if err != nil {
				// Some firmwares report fractional epoch millis.
				f, ferr := num.Float64()
				if ferr != nil {
					return fmt.Errorf("bad timestamp %q: %w", num, err)
				}
				ts = int64(f)
			}
			r.Timestamp = ts
			continue
		}

		v, err := num.Float64()
		if err != nil {
			return fmt.Errorf("metric %s is not numeric: %w", name, err)
		}
		r.Metrics[name] = v
	}
	return nil
}

// -----------------------------------------------------------------------------

func (r MDeviceReadings) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(r.Metrics)+1)
	for name, v := range r.Metrics {
		flat[name] = v
	}
	flat[timestampField] = r.Timestamp
	return json.Marshal(flat)
}

// -----------------------------------------------------------------------------

// Clone returns a deep copy so readers never alias cache-owned maps.
func (r MDeviceReadings) Clone() MDeviceReadings {
	metrics := make(map[string]float64, len(r.Metrics))
	for k, v := range r.Metrics {
		metrics[k] = v
	}
	return MDeviceReadings{Metrics: metrics, Timestamp: r.Timestamp}
}
