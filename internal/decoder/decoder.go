// Package decoder turns raw Bluetooth characteristic payloads into typed
// sensor readings. Heart-rate payloads follow the standard GATT heart rate
// measurement format; foot-pod payloads are vendor-specific and are decoded
// through a prioritized strategy chain with physical plausibility gates.
package decoder

import (
	"fmt"
	"time"

	"github.com/stridelab/runtracker-go/internal/models"
)

// DecodeError reports a malformed or too-short sensor payload.
// Callers recover by discarding the payload; it never aborts a session.
type DecodeError struct {
	Source models.SensorSource
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s payload: %s", e.Source, e.Reason)
}

// Decoder decodes raw payloads per source kind. It keeps the small amount of
// state the foot-pod chain needs (last distance and timestamp) to enforce
// distance monotonicity and derive pace.
type Decoder struct {
	footpod footpodState
}

// New creates a decoder with empty foot-pod state
func New() *Decoder {
	return &Decoder{}
}

// Decode converts a raw payload into a sensor reading. The returned reading
// has no activity ID set; the session attaches one before buffering.
// A nil reading with a nil error means the payload was structurally valid
// but carried no plausible value for any field.
func (d *Decoder) Decode(payload []byte, source models.SensorSource, at time.Time) (*models.SensorReading, error) {
	switch source {
	case models.SourceHRM:
		bpm, err := DecodeHeartRate(payload)
		if err != nil {
			return nil, err
		}
		return &models.SensorReading{
			Timestamp: at,
			HeartRate: &bpm,
			Source:    models.SourceHRM,
		}, nil
	case models.SourceFootpod:
		return d.decodeFootpod(payload, at), nil
	default:
		return nil, &DecodeError{Source: source, Reason: "unsupported source kind"}
	}
}

// Reset clears foot-pod chain state for a new session
func (d *Decoder) Reset() {
	d.footpod = footpodState{}
}
