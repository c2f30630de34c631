package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/config"
)

func main() {
	cfg := config.Load()

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
	)

	ctx := context.Background()

	fmt.Println("Connecting to TimescaleDB...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure TimescaleDB is running:\n  docker-compose up -d timescaledb", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1_extensions(ctx, conn)
	step2_event_tables(ctx, conn)
	step3_summary_tables(ctx, conn)
	step4_indexes(ctx, conn)
	step5_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run ./scripts/seed_redis")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — Extensions
// ─────────────────────────────────────────────────────────────
func step1_extensions(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Extensions ──────────────────────────")

	execOrFatal(ctx, conn,
		"CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;",
		"timescaledb extension",
	)
}

// ─────────────────────────────────────────────────────────────
// Step 2 — gps_events and fault_events
// ─────────────────────────────────────────────────────────────
func step2_event_tables(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: event tables ────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS gps_events (
			id           BIGSERIAL,

			-- Device clock, UTC
			timestamp    TIMESTAMPTZ      NOT NULL,
			received_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			device_id    TEXT             NOT NULL,
			device_name  TEXT             NOT NULL,

			speed        DOUBLE PRECISION NOT NULL DEFAULT 0,
			odometer     DOUBLE PRECISION NOT NULL DEFAULT 0,
			power_on     BOOLEAN          NOT NULL DEFAULT false,
			latitude     DOUBLE PRECISION NOT NULL,
			longitude    DOUBLE PRECISION NOT NULL,
			fuel_gauge   DOUBLE PRECISION NOT NULL DEFAULT 0
		);
	`, "gps_events table created")

	execOrFatal(ctx, conn, `
		SELECT create_hypertable(
			'gps_events',
			'timestamp',
			if_not_exists => TRUE
		);
	`, "gps_events converted to hypertable")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS fault_events (
			id             BIGSERIAL    PRIMARY KEY,
			timestamp      TIMESTAMPTZ  NOT NULL,
			received_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			device_id      TEXT         NOT NULL,
			device_name    TEXT         NOT NULL,

			-- Reassembled bit string, 8 bits per payload byte
			fault_payload  TEXT         NOT NULL,
			fault_code     TEXT         NOT NULL,
			fault_label    TEXT         NOT NULL DEFAULT 'Unknown'
		);
	`, "fault_events table created")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — daily_vehicle_summary and idling_hotspots
// ─────────────────────────────────────────────────────────────
func step3_summary_tables(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: summary tables ──────────────────────")

	// One row per vehicle per local day; the flusher upserts on this key
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS daily_vehicle_summary (
			id                       BIGSERIAL        PRIMARY KEY,
			vehicle_id               TEXT             NOT NULL,
			summary_date             DATE             NOT NULL,
			start_latitude           DOUBLE PRECISION,
			start_longitude          DOUBLE PRECISION,
			end_latitude             DOUBLE PRECISION,
			end_longitude            DOUBLE PRECISION,
			total_distance_km        DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_operational_hours  DOUBLE PRECISION NOT NULL DEFAULT 0,
			trip_count               INTEGER          NOT NULL DEFAULT 0,
			fuel_consumed_liters     DOUBLE PRECISION NOT NULL DEFAULT 0,

			CONSTRAINT uq_vehicle_day UNIQUE (vehicle_id, summary_date)
		);
	`, "daily_vehicle_summary table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS idling_hotspots (
			id                     BIGSERIAL        PRIMARY KEY,
			asset_id               TEXT             NOT NULL,
			date                   DATE             NOT NULL,
			idle_duration_minutes  DOUBLE PRECISION NOT NULL,
			latitude               DOUBLE PRECISION,
			longitude              DOUBLE PRECISION
		);
	`, "idling_hotspots table created")
}

// ─────────────────────────────────────────────────────────────
// Step 4 — Indexes
// ─────────────────────────────────────────────────────────────
func step4_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_gps_device_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_gps_device_time
				  ON gps_events (device_id, timestamp DESC);`,
			why: "query: position history for one device",
		},
		{
			name: "idx_fault_device_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_fault_device_time
				  ON fault_events (device_id, timestamp DESC);`,
			why: "query: faults for one device",
		},
		{
			name: "idx_fault_code",
			sql: `CREATE INDEX IF NOT EXISTS idx_fault_code
				  ON fault_events (fault_code, timestamp DESC);`,
			why: "query: fleet-wide occurrences of one code",
		},
		{
			name: "idx_summary_date",
			sql: `CREATE INDEX IF NOT EXISTS idx_summary_date
				  ON daily_vehicle_summary (summary_date);`,
			why: "query: all vehicles for one day",
		},
		{
			name: "idx_idling_asset_date",
			sql: `CREATE INDEX IF NOT EXISTS idx_idling_asset_date
				  ON idling_hotspots (asset_id, date);`,
			why: "query: idling report per asset",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 5 — Verify everything was created
// ─────────────────────────────────────────────────────────────
func step5_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: Verification ────────────────────────")

	tables := []string{"gps_events", "fault_events", "daily_vehicle_summary", "idling_hotspots"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	var hypertableName string
	err := conn.QueryRow(ctx, `
		SELECT hypertable_name
		FROM timescaledb_information.hypertables
		WHERE hypertable_name = 'gps_events'
	`).Scan(&hypertableName)
	if err != nil {
		log.Fatalf("gps_events is not a hypertable: %v", err)
	}
	fmt.Printf("  ✓ hypertable: %s (time partitioned)\n", hypertableName)

	var indexCount int
	err = conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename = ANY($1)
		AND indexname LIKE 'idx_%'
	`, tables).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}
