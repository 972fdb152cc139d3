// Package session owns the activity lifecycle: it aggregates fused sensor
// data into a running Activity, buffers readings for batched persistence,
// and checkpoints progress so a crash loses at most a few seconds.
//
// One Tracker handles one session at a time. It is constructed once by the
// composition root and injected wherever session control is needed; there is
// no global instance.
package session

import (
	"context"
	"time"

	"github.com/stridelab/runtracker-go/internal/models"
)

// State is the tracker lifecycle state
type State string

const (
	StateIdle      State = "idle"
	StatePreparing State = "preparing"
	StateActive    State = "active"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateDiscarded State = "discarded"
	StateError     State = "error"
)

// ActivityStore is the persistence contract the tracker needs for activities
type ActivityStore interface {
	Insert(*models.Activity) error
	Update(*models.Activity) error
	Delete(id string) error
}

// ReadingStore is the persistence contract for sensor readings
type ReadingStore interface {
	BatchInsert([]models.SensorReading) error
	GetByActivity(activityID string) ([]models.SensorReading, error)
	DeleteByActivity(activityID string) error
}

// Sink receives sensor samples. The tracker implements it; connectors and
// HTTP ingestion push into it.
type Sink interface {
	PushGPS(lat, lon, elevationM, speedMps float64, at time.Time)
	PushRawPayload(source models.SensorSource, payload []byte, at time.Time)
	PushAccelerometer(ax, ay, az float64, at time.Time)
	PushBarometer(pressurePa float64, at time.Time)
	PushStepCount(steps int, at time.Time)
}

// Connector wires real sensor hardware to a sink. Connect is called during
// prepare; Close must be idempotent because every exit path calls it.
type Connector interface {
	Connect(ctx context.Context, sink Sink) error
	Close() error
}

// NopConnector is used when samples arrive through the ingestion API only
type NopConnector struct{}

func (NopConnector) Connect(ctx context.Context, sink Sink) error { return nil }
func (NopConnector) Close() error                                 { return nil }

// LiveMetrics is a point-in-time snapshot of the active session
type LiveMetrics struct {
	State          State   `json:"state"`
	ActivityID     string  `json:"activityId,omitempty"`
	DurationSec    float64 `json:"durationSec"`
	DistanceM      float64 `json:"distanceM"`
	ElevationGainM float64 `json:"elevationGainM"`
	ElevationLossM float64 `json:"elevationLossM"`
	SpeedMps       float64 `json:"speedMps"`
	PaceSecKm      int     `json:"paceSecKm"`
	HeartRate      *int    `json:"heartRate,omitempty"`
	PowerW         *int    `json:"powerW,omitempty"`
	Cadence        *int    `json:"cadence,omitempty"`
	FallbackActive bool    `json:"fallbackActive"`
}
