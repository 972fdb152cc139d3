package database

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations are applied in order; the version table records what ran.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_activities",
		SQL: `
			CREATE TABLE IF NOT EXISTS activities (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				start_time TIMESTAMP NOT NULL,
				end_time TIMESTAMP,
				status TEXT NOT NULL DEFAULT 'not_started',
				duration_sec REAL NOT NULL DEFAULT 0,
				distance_m REAL NOT NULL DEFAULT 0,
				elevation_gain_m REAL NOT NULL DEFAULT 0,
				elevation_loss_m REAL NOT NULL DEFAULT 0,
				avg_heart_rate INTEGER,
				max_heart_rate INTEGER,
				avg_power_w INTEGER,
				max_power_w INTEGER,
				avg_cadence INTEGER,
				max_cadence INTEGER,
				avg_pace_sec_km INTEGER,
				route_json TEXT NOT NULL DEFAULT '[]',
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)
		`,
	},
	{
		Version: 2,
		Name:    "create_sensor_readings",
		SQL: `
			CREATE TABLE IF NOT EXISTS sensor_readings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				activity_id TEXT NOT NULL REFERENCES activities(id) ON DELETE CASCADE,
				timestamp TIMESTAMP NOT NULL,
				latitude REAL,
				longitude REAL,
				elevation_m REAL,
				heart_rate INTEGER,
				power_w INTEGER,
				cadence INTEGER,
				distance_m REAL,
				pace_sec_km INTEGER,
				source TEXT NOT NULL
			)
		`,
	},
	{
		Version: 3,
		Name:    "index_readings_by_activity",
		SQL: `
			CREATE INDEX IF NOT EXISTS idx_sensor_readings_activity
			ON sensor_readings(activity_id, timestamp)
		`,
	},
}

// Migrate applies all pending migrations
func Migrate(db *sql.DB) error {
	if err := initMigrationsTable(db); err != nil {
		return err
	}

	current, err := currentVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		if _, err := db.Exec(
			"INSERT INTO migrations (version, name) VALUES (?, ?)",
			m.Version, m.Name,
		); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		log.Printf("Applied migration %d: %s", m.Version, m.Name)
	}

	return nil
}

func initMigrationsTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func currentVersion(db *sql.DB) (int, error) {
	var version sql.NullInt64
	err := db.QueryRow("SELECT MAX(version) FROM migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
