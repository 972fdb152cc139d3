package models

import "time"

// ActivityStatus is the persisted lifecycle status of an activity
type ActivityStatus string

const (
	StatusNotStarted ActivityStatus = "not_started"
	StatusInProgress ActivityStatus = "in_progress"
	StatusPaused     ActivityStatus = "paused"
	StatusCompleted  ActivityStatus = "completed"
)

// RoutePoint is one vertex of the recorded route polyline
type RoutePoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Activity represents one completed or in-progress run.
//
// Duration and distance are monotonically non-decreasing while the status is
// in_progress. Heart rate, power, cadence and pace averages are running
// estimates during tracking and are recomputed from the full persisted
// reading set when the activity completes.
type Activity struct {
	ID             string         `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	StartTime      time.Time      `json:"startTime" db:"start_time"`
	EndTime        *time.Time     `json:"endTime,omitempty" db:"end_time"`
	Status         ActivityStatus `json:"status" db:"status"`
	DurationSec    float64        `json:"durationSec" db:"duration_sec"`
	DistanceM      float64        `json:"distanceM" db:"distance_m"`
	ElevationGainM float64        `json:"elevationGainM" db:"elevation_gain_m"`
	ElevationLossM float64        `json:"elevationLossM" db:"elevation_loss_m"`
	AvgHeartRate   *int           `json:"avgHeartRate,omitempty" db:"avg_heart_rate"`
	MaxHeartRate   *int           `json:"maxHeartRate,omitempty" db:"max_heart_rate"`
	AvgPowerW      *int           `json:"avgPowerW,omitempty" db:"avg_power_w"`
	MaxPowerW      *int           `json:"maxPowerW,omitempty" db:"max_power_w"`
	AvgCadence     *int           `json:"avgCadence,omitempty" db:"avg_cadence"`
	MaxCadence     *int           `json:"maxCadence,omitempty" db:"max_cadence"`
	AvgPaceSecKm   *int           `json:"avgPaceSecKm,omitempty" db:"avg_pace_sec_km"`
	Route          []RoutePoint   `json:"route,omitempty" db:"route_json"`

	// Readings is populated fully only at finalization; during tracking the
	// reading set lives in the buffer and the sensor_readings table.
	Readings []SensorReading `json:"readings,omitempty" db:"-"`
}

// ActivitySummary is the list-view projection of an activity
type ActivitySummary struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	StartTime   time.Time      `json:"startTime"`
	Status      ActivityStatus `json:"status"`
	DurationSec float64        `json:"durationSec"`
	DistanceM   float64        `json:"distanceM"`
}
