package store

import (
	"context"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
)

// Sink is the durable store. Writes return *domain.PersistenceError on failure.
type Sink interface {
	InsertGPSEvent(ctx context.Context, e domain.GPSEvent) error
	InsertFaultEvent(ctx context.Context, e domain.FaultEvent) error
	// UpsertDailySummaries writes summaries keyed by (vehicle_id, summary_date),
	// replacing the mutable columns of an existing row.
	UpsertDailySummaries(ctx context.Context, summaries []domain.DailySummary) error
	InsertIdlingHotspot(ctx context.Context, h domain.IdlingHotspot) error
	Ping(ctx context.Context) error
	Close()
}

func summaryKey(s domain.DailySummary) string {
	return s.VehicleID + "_" + s.DateKey()
}
