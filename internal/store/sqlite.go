package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
)

// SQLiteStore is a single-file sink for local runs and tests. Dates are stored
// as YYYY-MM-DD text so the summary unique key compares cleanly.
type SQLiteStore struct {
	db *sql.DB
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS gps_events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id   TEXT NOT NULL,
		device_name TEXT NOT NULL,
		timestamp   DATETIME NOT NULL,
		speed       REAL,
		odometer    REAL,
		power_on    BOOLEAN,
		latitude    REAL,
		longitude   REAL,
		fuel_gauge  REAL
	)`,
	`CREATE TABLE IF NOT EXISTS fault_events (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id     TEXT NOT NULL,
		device_name   TEXT NOT NULL,
		timestamp     DATETIME NOT NULL,
		fault_payload TEXT NOT NULL,
		fault_code    TEXT NOT NULL,
		fault_label   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS daily_vehicle_summary (
		id                      INTEGER PRIMARY KEY AUTOINCREMENT,
		vehicle_id              TEXT NOT NULL,
		summary_date            TEXT NOT NULL,
		start_latitude          REAL,
		start_longitude         REAL,
		end_latitude            REAL,
		end_longitude           REAL,
		total_distance_km       REAL,
		total_operational_hours REAL,
		trip_count              INTEGER,
		fuel_consumed_liters    REAL,
		UNIQUE (vehicle_id, summary_date)
	)`,
	`CREATE TABLE IF NOT EXISTS idling_hotspots (
		id                    INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id              TEXT NOT NULL,
		date                  TEXT NOT NULL,
		idle_duration_minutes REAL NOT NULL,
		latitude              REAL,
		longitude             REAL
	)`,
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) InsertGPSEvent(ctx context.Context, e domain.GPSEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gps_events
			(device_id, device_name, timestamp, speed, odometer, power_on, latitude, longitude, fuel_gauge)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.DeviceID, e.DeviceName, e.Timestamp.UTC(), e.Speed, e.Odometer,
		e.PowerOn, e.Latitude, e.Longitude, e.FuelGauge,
	)
	if err != nil {
		return &domain.PersistenceError{Entity: "gps_event", Key: e.DeviceID, Err: err}
	}
	return nil
}

func (s *SQLiteStore) InsertFaultEvent(ctx context.Context, e domain.FaultEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fault_events
			(device_id, device_name, timestamp, fault_payload, fault_code, fault_label)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.DeviceID, e.DeviceName, e.Timestamp.UTC(), e.Bits, e.FaultCode, e.FaultLabel,
	)
	if err != nil {
		return &domain.PersistenceError{Entity: "fault_event", Key: e.DeviceID, Err: err}
	}
	return nil
}

func (s *SQLiteStore) UpsertDailySummaries(ctx context.Context, summaries []domain.DailySummary) error {
	if len(summaries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Entity: "daily_vehicle_summary", Key: summaryKey(summaries[0]), Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_vehicle_summary
			(vehicle_id, summary_date, start_latitude, start_longitude, end_latitude, end_longitude,
			 total_distance_km, total_operational_hours, trip_count, fuel_consumed_liters)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (vehicle_id, summary_date) DO UPDATE SET
			end_latitude = excluded.end_latitude,
			end_longitude = excluded.end_longitude,
			total_distance_km = excluded.total_distance_km,
			total_operational_hours = excluded.total_operational_hours,
			trip_count = excluded.trip_count,
			fuel_consumed_liters = excluded.fuel_consumed_liters`)
	if err != nil {
		return &domain.PersistenceError{Entity: "daily_vehicle_summary", Key: summaryKey(summaries[0]), Err: err}
	}
	defer stmt.Close()

	for _, sm := range summaries {
		_, err := stmt.ExecContext(ctx,
			sm.VehicleID, sm.DateKey(), sm.StartLatitude, sm.StartLongitude, sm.EndLatitude, sm.EndLongitude,
			sm.TotalDistanceKm, sm.TotalOperationalHours, sm.TripCount, sm.FuelConsumedLiters,
		)
		if err != nil {
			return &domain.PersistenceError{Entity: "daily_vehicle_summary", Key: summaryKey(sm), Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Entity: "daily_vehicle_summary", Key: summaryKey(summaries[0]), Err: err}
	}
	return nil
}

func (s *SQLiteStore) InsertIdlingHotspot(ctx context.Context, h domain.IdlingHotspot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idling_hotspots (asset_id, date, idle_duration_minutes, latitude, longitude)
		VALUES (?, ?, ?, ?, ?)`,
		h.AssetID, h.Date.Format(time.DateOnly), h.IdleDurationMinutes, h.Latitude, h.Longitude,
	)
	if err != nil {
		return &domain.PersistenceError{Entity: "idling_hotspot", Key: h.AssetID, Err: err}
	}
	return nil
}
