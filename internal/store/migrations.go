package store

import (
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations are forward-only and additive.
var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS spots (
    spot_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    timezone TEXT NOT NULL,
    swell_dir_min REAL NOT NULL,
    swell_dir_max REAL NOT NULL,
    wind_dir_min REAL NOT NULL,
    wind_dir_max REAL NOT NULL,
    primary_airport TEXT
);

CREATE TABLE IF NOT EXISTS hourly_weather (
    spot_id TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    temperature REAL,
    wind_speed REAL,
    wind_direction REAL,
    wind_gusts REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (spot_id, timestamp)
);

CREATE TABLE IF NOT EXISTS hourly_marine (
    spot_id TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    wave_height REAL,
    wave_direction REAL,
    wave_period REAL,
    sea_level_height_msl REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (spot_id, timestamp)
);

CREATE TABLE IF NOT EXISTS daily_weather (
    spot_id TEXT NOT NULL,
    date DATE NOT NULL,
    sunrise INTEGER,
    sunset INTEGER,
    daylight_duration REAL,
    temperature_min REAL,
    temperature_max REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (spot_id, date)
);

CREATE TABLE IF NOT EXISTS scored_forecasts (
    spot_id TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    wave_height REAL,
    wave_direction REAL,
    wave_period REAL,
    wind_speed REAL,
    wind_direction REAL,
    swell_points INTEGER NOT NULL,
    wind_points INTEGER NOT NULL,
    height_points INTEGER NOT NULL,
    period_points INTEGER NOT NULL,
    total_points INTEGER NOT NULL,
    surf_rating TEXT NOT NULL,
    wind_relationship TEXT NOT NULL,
    wave_height_ft REAL,
    conditions_summary TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (spot_id, timestamp)
);

CREATE TABLE IF NOT EXISTS half_day_scores (
    spot_id TEXT NOT NULL,
    date DATE NOT NULL,
    half_day TEXT NOT NULL CHECK (half_day IN ('morning', 'afternoon')),
    avg_total_points REAL NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (spot_id, date, half_day)
);

CREATE TABLE IF NOT EXISTS daily_scores (
    spot_id TEXT NOT NULL,
    date DATE NOT NULL,
    avg_total_points REAL NOT NULL,
    surf_rating TEXT,
    wind_relationship TEXT,
    conditions_summary TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (spot_id, date)
);

CREATE TABLE IF NOT EXISTS refresh_ledger (
    spot_id TEXT PRIMARY KEY,
    weather DATETIME,
    marine DATETIME,
    daily_weather DATETIME,
    scored DATETIME,
    half_day DATETIME,
    daily_scores DATETIME
);
`,
	},
	{
		Version:     2,
		Description: "Index scored forecasts by timestamp for view queries",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_scored_forecasts_ts ON scored_forecasts(timestamp);
CREATE INDEX IF NOT EXISTS idx_hourly_marine_ts ON hourly_marine(timestamp);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
