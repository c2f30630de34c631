package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/config"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
)

type TimescaleStore struct {
	pool *pgxpool.Pool
}

func NewTimescaleStore(ctx context.Context, cfg *config.Config) (*TimescaleStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &TimescaleStore{pool: pool}, nil
}

func (s *TimescaleStore) Close() {
	s.pool.Close()
}

func (s *TimescaleStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const (
	pgInsertGPS = `
		INSERT INTO gps_events
			(device_id, device_name, timestamp, speed, odometer, power_on, latitude, longitude, fuel_gauge)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	pgInsertFault = `
		INSERT INTO fault_events
			(device_id, device_name, timestamp, fault_payload, fault_code, fault_label)
		VALUES
			($1, $2, $3, $4, $5, $6)
	`
	pgUpsertSummary = `
		INSERT INTO daily_vehicle_summary
			(vehicle_id, summary_date, start_latitude, start_longitude, end_latitude, end_longitude,
			 total_distance_km, total_operational_hours, trip_count, fuel_consumed_liters)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (vehicle_id, summary_date) DO UPDATE SET
			end_latitude = EXCLUDED.end_latitude,
			end_longitude = EXCLUDED.end_longitude,
			total_distance_km = EXCLUDED.total_distance_km,
			total_operational_hours = EXCLUDED.total_operational_hours,
			trip_count = EXCLUDED.trip_count,
			fuel_consumed_liters = EXCLUDED.fuel_consumed_liters
	`
	pgInsertHotspot = `
		INSERT INTO idling_hotspots
			(asset_id, date, idle_duration_minutes, latitude, longitude)
		VALUES
			($1, $2, $3, $4, $5)
	`
)

func (s *TimescaleStore) InsertGPSEvent(ctx context.Context, e domain.GPSEvent) error {
	_, err := s.pool.Exec(ctx, pgInsertGPS,
		e.DeviceID, e.DeviceName, e.Timestamp, e.Speed, e.Odometer,
		e.PowerOn, e.Latitude, e.Longitude, e.FuelGauge,
	)
	if err != nil {
		return &domain.PersistenceError{Entity: "gps_event", Key: e.DeviceID, Err: err}
	}
	return nil
}

func (s *TimescaleStore) InsertFaultEvent(ctx context.Context, e domain.FaultEvent) error {
	_, err := s.pool.Exec(ctx, pgInsertFault,
		e.DeviceID, e.DeviceName, e.Timestamp, e.Bits, e.FaultCode, e.FaultLabel,
	)
	if err != nil {
		return &domain.PersistenceError{Entity: "fault_event", Key: e.DeviceID, Err: err}
	}
	return nil
}

// UpsertDailySummaries sends every upsert in one pgx batch.
func (s *TimescaleStore) UpsertDailySummaries(ctx context.Context, summaries []domain.DailySummary) error {
	if len(summaries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, sm := range summaries {
		batch.Queue(pgUpsertSummary,
			sm.VehicleID, sm.Date, sm.StartLatitude, sm.StartLongitude, sm.EndLatitude, sm.EndLongitude,
			sm.TotalDistanceKm, sm.TotalOperationalHours, sm.TripCount, sm.FuelConsumedLiters,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, sm := range summaries {
		if _, err := br.Exec(); err != nil {
			return &domain.PersistenceError{Entity: "daily_vehicle_summary", Key: summaryKey(sm), Err: err}
		}
	}
	return nil
}

func (s *TimescaleStore) InsertIdlingHotspot(ctx context.Context, h domain.IdlingHotspot) error {
	_, err := s.pool.Exec(ctx, pgInsertHotspot,
		h.AssetID, h.Date, h.IdleDurationMinutes, h.Latitude, h.Longitude,
	)
	if err != nil {
		return &domain.PersistenceError{Entity: "idling_hotspot", Key: h.AssetID, Err: err}
	}
	return nil
}
