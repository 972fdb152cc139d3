package repository

import (
	"database/sql"
	"fmt"

	"github.com/stridelab/runtracker-go/internal/models"
)

// ReadingRepository handles database operations for sensor readings
type ReadingRepository struct {
	db *sql.DB
}

// NewReadingRepository creates a new reading repository
func NewReadingRepository(db *sql.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// BatchInsert writes a batch of readings in a single transaction
func (r *ReadingRepository) BatchInsert(readings []models.SensorReading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	stmt, err := tx.Prepare(`INSERT INTO sensor_readings (
		activity_id, timestamp, latitude, longitude, elevation_m,
		heart_rate, power_w, cadence, distance_m, pace_sec_km, source
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, reading := range readings {
		_, err := stmt.Exec(
			reading.ActivityID, reading.Timestamp, reading.Latitude, reading.Longitude,
			reading.ElevationM, reading.HeartRate, reading.PowerW, reading.Cadence,
			reading.DistanceM, reading.PaceSecKm, reading.Source,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert reading: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByActivity retrieves all readings for an activity in timestamp order
func (r *ReadingRepository) GetByActivity(activityID string) ([]models.SensorReading, error) {
	query := `SELECT id, activity_id, timestamp, latitude, longitude, elevation_m,
		heart_rate, power_w, cadence, distance_m, pace_sec_km, source
		FROM sensor_readings WHERE activity_id = ? ORDER BY timestamp ASC`

	rows, err := r.db.Query(query, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []models.SensorReading
	for rows.Next() {
		var reading models.SensorReading
		err := rows.Scan(
			&reading.ID, &reading.ActivityID, &reading.Timestamp,
			&reading.Latitude, &reading.Longitude, &reading.ElevationM,
			&reading.HeartRate, &reading.PowerW, &reading.Cadence,
			&reading.DistanceM, &reading.PaceSecKm, &reading.Source,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}
	return readings, nil
}

// DeleteByActivity removes all readings belonging to an activity
func (r *ReadingRepository) DeleteByActivity(activityID string) error {
	_, err := r.db.Exec("DELETE FROM sensor_readings WHERE activity_id = ?", activityID)
	if err != nil {
		return fmt.Errorf("failed to delete readings: %w", err)
	}
	return nil
}

// CountByActivity returns the number of stored readings for an activity
func (r *ReadingRepository) CountByActivity(activityID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM sensor_readings WHERE activity_id = ?", activityID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return count, nil
}
