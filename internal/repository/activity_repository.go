package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stridelab/runtracker-go/internal/models"
)

// ActivityRepository handles database operations for activities
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Insert persists a newly created activity
func (r *ActivityRepository) Insert(a *models.Activity) error {
	routeJSON, err := marshalRoute(a.Route)
	if err != nil {
		return err
	}

	query := `INSERT INTO activities (
		id, name, start_time, end_time, status, duration_sec, distance_m,
		elevation_gain_m, elevation_loss_m, avg_heart_rate, max_heart_rate,
		avg_power_w, max_power_w, avg_cadence, max_cadence, avg_pace_sec_km, route_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query,
		a.ID, a.Name, a.StartTime, a.EndTime, a.Status, a.DurationSec, a.DistanceM,
		a.ElevationGainM, a.ElevationLossM, a.AvgHeartRate, a.MaxHeartRate,
		a.AvgPowerW, a.MaxPowerW, a.AvgCadence, a.MaxCadence, a.AvgPaceSecKm, routeJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// Update overwrites the stored state of an activity (checkpoint write)
func (r *ActivityRepository) Update(a *models.Activity) error {
	routeJSON, err := marshalRoute(a.Route)
	if err != nil {
		return err
	}

	query := `UPDATE activities SET
		name = ?, start_time = ?, end_time = ?, status = ?, duration_sec = ?,
		distance_m = ?, elevation_gain_m = ?, elevation_loss_m = ?,
		avg_heart_rate = ?, max_heart_rate = ?, avg_power_w = ?, max_power_w = ?,
		avg_cadence = ?, max_cadence = ?, avg_pace_sec_km = ?, route_json = ?,
		updated_at = datetime('now')
		WHERE id = ?`

	_, err = r.db.Exec(query,
		a.Name, a.StartTime, a.EndTime, a.Status, a.DurationSec,
		a.DistanceM, a.ElevationGainM, a.ElevationLossM,
		a.AvgHeartRate, a.MaxHeartRate, a.AvgPowerW, a.MaxPowerW,
		a.AvgCadence, a.MaxCadence, a.AvgPaceSecKm, routeJSON,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	return nil
}

// GetByID retrieves a single activity, or nil when it does not exist
func (r *ActivityRepository) GetByID(id string) (*models.Activity, error) {
	query := `SELECT id, name, start_time, end_time, status, duration_sec, distance_m,
		elevation_gain_m, elevation_loss_m, avg_heart_rate, max_heart_rate,
		avg_power_w, max_power_w, avg_cadence, max_cadence, avg_pace_sec_km, route_json
		FROM activities WHERE id = ?`

	var a models.Activity
	var routeJSON string
	err := r.db.QueryRow(query, id).Scan(
		&a.ID, &a.Name, &a.StartTime, &a.EndTime, &a.Status, &a.DurationSec, &a.DistanceM,
		&a.ElevationGainM, &a.ElevationLossM, &a.AvgHeartRate, &a.MaxHeartRate,
		&a.AvgPowerW, &a.MaxPowerW, &a.AvgCadence, &a.MaxCadence, &a.AvgPaceSecKm, &routeJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	if err := json.Unmarshal([]byte(routeJSON), &a.Route); err != nil {
		return nil, fmt.Errorf("failed to decode route: %w", err)
	}
	return &a, nil
}

// List retrieves activity summaries, most recent first
func (r *ActivityRepository) List(limit int) ([]models.ActivitySummary, error) {
	if limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := `SELECT id, name, start_time, status, duration_sec, distance_m
		FROM activities ORDER BY start_time DESC LIMIT ?`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var summaries []models.ActivitySummary
	for rows.Next() {
		var s models.ActivitySummary
		if err := rows.Scan(&s.ID, &s.Name, &s.StartTime, &s.Status, &s.DurationSec, &s.DistanceM); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// Delete removes an activity; its readings go with it via the FK cascade
func (r *ActivityRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM activities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	return nil
}

func marshalRoute(route []models.RoutePoint) (string, error) {
	if route == nil {
		route = []models.RoutePoint{}
	}
	b, err := json.Marshal(route)
	if err != nil {
		return "", fmt.Errorf("failed to encode route: %w", err)
	}
	return string(b), nil
}
