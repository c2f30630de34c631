package store

import (
	"context"
	"testing"
	"time"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSQLiteUpsertDailySummaries(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	first := domain.DailySummary{
		VehicleID:       "truck-1",
		Date:            day,
		StartLatitude:   1,
		StartLongitude:  2,
		EndLatitude:     1,
		EndLongitude:    2,
		TotalDistanceKm: 0,
	}
	if err := s.UpsertDailySummaries(ctx, []domain.DailySummary{first}); err != nil {
		t.Fatal(err)
	}

	second := first
	second.StartLatitude = 99
	second.EndLatitude = 5
	second.TotalDistanceKm = 12.5
	second.TripCount = 2
	if err := s.UpsertDailySummaries(ctx, []domain.DailySummary{second}); err != nil {
		t.Fatal(err)
	}

	var rows int
	var startLat, endLat, dist float64
	var trips int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM daily_vehicle_summary`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want 1", rows)
	}
	err := s.db.QueryRow(`
		SELECT start_latitude, end_latitude, total_distance_km, trip_count
		FROM daily_vehicle_summary WHERE vehicle_id = ? AND summary_date = ?`,
		"truck-1", "2024-03-01").Scan(&startLat, &endLat, &dist, &trips)
	if err != nil {
		t.Fatal(err)
	}
	if startLat != 1 {
		t.Errorf("start latitude overwritten: %v", startLat)
	}
	if endLat != 5 || dist != 12.5 || trips != 2 {
		t.Errorf("got end=%v dist=%v trips=%d", endLat, dist, trips)
	}
}

func TestSQLiteInserts(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	gps := domain.GPSEvent{
		GPSSample:  domain.GPSSample{DeviceID: "truck-1", Timestamp: ts, Speed: 50, PowerOn: true},
		DeviceName: "Truck One",
	}
	if err := s.InsertGPSEvent(ctx, gps); err != nil {
		t.Fatal(err)
	}
	fault := domain.FaultEvent{
		DeviceID: "truck-1", DeviceName: "Truck One", Timestamp: ts,
		FaultCode: "17", FaultLabel: "Overheat", Bits: "0000000100000010",
	}
	if err := s.InsertFaultEvent(ctx, fault); err != nil {
		t.Fatal(err)
	}
	hot := domain.IdlingHotspot{AssetID: "truck-1", Date: ts, IdleDurationMinutes: 4.5, Latitude: 1, Longitude: 2}
	if err := s.InsertIdlingHotspot(ctx, hot); err != nil {
		t.Fatal(err)
	}

	for table, want := range map[string]int{"gps_events": 1, "fault_events": 1, "idling_hotspots": 1} {
		var n int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Errorf("%s rows = %d, want %d", table, n, want)
		}
	}

	var date string
	if err := s.db.QueryRow(`SELECT date FROM idling_hotspots`).Scan(&date); err != nil {
		t.Fatal(err)
	}
	if date != "2024-03-01" {
		t.Errorf("date = %q", date)
	}
}

func TestSQLiteUpsertEmpty(t *testing.T) {
	s := newTestSQLite(t)
	if err := s.UpsertDailySummaries(context.Background(), nil); err != nil {
		t.Errorf("empty batch: %v", err)
	}
}
