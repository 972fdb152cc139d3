package models

import "time"

// SensorSource identifies which device produced a reading
type SensorSource string

const (
	SourceGPS     SensorSource = "GPS"
	SourceHRM     SensorSource = "HRM"
	SourceFootpod SensorSource = "FOOTPOD"
)

// SensorReading represents one timestamped observation from a sensor.
// All measurement fields are optional; a reading carries only what its
// source actually delivered. Readings are immutable once constructed.
type SensorReading struct {
	ID         int64        `json:"id" db:"id"`
	ActivityID string       `json:"activityId" db:"activity_id"`
	Timestamp  time.Time    `json:"timestamp" db:"timestamp"`
	Latitude   *float64     `json:"latitude,omitempty" db:"latitude"`
	Longitude  *float64     `json:"longitude,omitempty" db:"longitude"`
	ElevationM *float64     `json:"elevationM,omitempty" db:"elevation_m"`
	HeartRate  *int         `json:"heartRate,omitempty" db:"heart_rate"`
	PowerW     *int         `json:"powerW,omitempty" db:"power_w"`
	Cadence    *int         `json:"cadence,omitempty" db:"cadence"`
	DistanceM  *float64     `json:"distanceM,omitempty" db:"distance_m"`
	PaceSecKm  *int         `json:"paceSecKm,omitempty" db:"pace_sec_km"`
	Source     SensorSource `json:"source" db:"source"`
}

// HasData reports whether at least one measurement field is set.
// A reading with no data is meaningless and must not be buffered.
func (r *SensorReading) HasData() bool {
	return r.Latitude != nil || r.Longitude != nil || r.ElevationM != nil ||
		r.HeartRate != nil || r.PowerW != nil || r.Cadence != nil ||
		r.DistanceM != nil || r.PaceSecKm != nil
}
