package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"iot-observer/src/helpers"
	"iot-observer/src/models"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// -----------------------------------------------------------------------------
// Frame Codec
//
// The server sends either plain UTF-8 JSON text frames or DEFLATE-compressed
// binary frames. Either way the decompressed form is a 2-tuple:
//
//	[ {"message_type": "...", "sensor_name"?, "iot_device_id"?}, <payload> ]
//
// Decompression and tuple parsing are independent of what the payload means;
// kind routing happens in the session controller.
// -----------------------------------------------------------------------------

// Decode turns one raw frame into a typed envelope. Failures are returned as
// *helpers.DecodeError and must be treated as drop-the-frame: nothing is ever
// partially applied.
func Decode(data []byte, binary bool) (models.MEnvelope, error) {
	if binary {
		inflated, err := inflate(data)
		if err != nil {
			return models.MEnvelope{}, helpers.NewDecodeError("corrupt compressed frame", err)
		}
		data = inflated
	}

	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return models.MEnvelope{}, helpers.NewDecodeError("frame is not a JSON array", err)
	}
	if len(tuple) != 2 {
		return models.MEnvelope{}, helpers.NewDecodeError(
			fmt.Sprintf("expected [descriptor, payload], got %d elements", len(tuple)), nil)
	}

	var desc models.MDescriptor
	if err := json.Unmarshal(tuple[0], &desc); err != nil {
		return models.MEnvelope{}, helpers.NewDecodeError("malformed descriptor", err)
	}

	return models.MEnvelope{
		Kind:       models.ParseMessageKind(desc.MessageType),
		Descriptor: desc,
		Payload:    tuple[1],
	}, nil
}

// -----------------------------------------------------------------------------

// inflate decompresses a binary frame. Frames normally carry a zlib header;
// headerless raw-deflate is accepted as a fallback.
func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err == nil {
		defer zr.Close()
		out, rerr := io.ReadAll(zr)
		if rerr == nil {
			return out, nil
		}
		err = rerr
	}

	if errors.Is(err, zlib.ErrHeader) {
		fr := flate.NewReader(bytes.NewReader(data))
		defer fr.Close()
		return io.ReadAll(fr)
	}

	return nil, err
}

// -----------------------------------------------------------------------------
// Payload Decoders
// -----------------------------------------------------------------------------

// DecodeSnapshot parses an initial_data / live_data payload: a map from
// device id to its flat metric map.
func DecodeSnapshot(payload json.RawMessage) (models.MSnapshot, error) {
	var snap models.MSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, helpers.NewDecodeError("malformed snapshot payload", err)
	}
	return snap, nil
}

// -----------------------------------------------------------------------------

// DecodeSeries parses a sensor_data payload: a timestamp-ascending array of
// {value, date_time} points.
func DecodeSeries(payload json.RawMessage) ([]models.MSeriesPoint, error) {
	var points []models.MSeriesPoint
	if err := json.Unmarshal(payload, &points); err != nil {
		return nil, helpers.NewDecodeError("malformed series payload", err)
	}
	return points, nil
}

// -----------------------------------------------------------------------------

// DecodeInterruption parses a mains_interruption payload: {count}.
func DecodeInterruption(payload json.RawMessage) (models.MInterruptionPayload, error) {
	var p models.MInterruptionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.MInterruptionPayload{}, helpers.NewDecodeError("malformed interruption payload", err)
	}
	return p, nil
}
