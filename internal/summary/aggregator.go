// Package summary maintains the per-vehicle daily summary in the TTL store and
// periodically flushes it to the durable sink.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/store"
)

const KeyPrefix = "summary:"

type Aggregator struct {
	cache  store.Cache
	loc    *time.Location
	trips  TripPolicy
	hours  HoursPolicy
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Aggregator)

// WithClock replaces the wall clock used to compute the cache TTL.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(cache store.Cache, loc *time.Location, trips TripPolicy, hours HoursPolicy, logger *slog.Logger, opts ...Option) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	a := &Aggregator{
		cache:  cache,
		loc:    loc,
		trips:  trips,
		hours:  hours,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Key names the cached summary of a vehicle for the local day containing ts.
func (a *Aggregator) Key(vehicleID string, ts time.Time) string {
	return KeyPrefix + vehicleID + "_" + ts.In(a.loc).Format(time.DateOnly)
}

// ProcessEvent folds one sample into the vehicle's summary for the sample's
// local day. The first sample of a day only seeds the summary.
func (a *Aggregator) ProcessEvent(ctx context.Context, e domain.GPSEvent) (domain.DailySummary, error) {
	key := a.Key(e.DeviceID, e.Timestamp)

	s, found, err := a.load(ctx, key)
	if err != nil {
		return domain.DailySummary{}, err
	}

	if !found {
		s = a.baseline(e.GPSSample)
		return s, a.save(ctx, key, s)
	}

	s.EndLatitude = e.Latitude
	s.EndLongitude = e.Longitude
	s.TotalDistanceKm += e.Odometer - s.Odometer
	s.FuelConsumedLiters += s.FuelGauge - e.FuelGauge
	s.Odometer = e.Odometer
	s.FuelGauge = e.FuelGauge

	trip := a.trips.DetectTrip(s, e.GPSSample)
	hours := a.hours.OperationalHours(s, e.GPSSample)

	s.TripCount = trip.TripCount
	s.CurrentTrip = trip.CurrentTrip
	s.LastMovingTime = trip.LastMovingTime
	s.TotalOperationalHours = hours
	s.State = domain.EngineStateOf(e.PowerOn, e.Speed)
	ts := e.Timestamp
	s.LastEventTime = &ts

	if trip.Closed != nil {
		a.logger.Info("trip closed",
			"device_id", e.DeviceID,
			"start", trip.Closed.StartTime,
			"hours", trip.Closed.OperationalHours,
			"trip_count", s.TripCount,
		)
	}

	return s, a.save(ctx, key, s)
}

func (a *Aggregator) baseline(e domain.GPSSample) domain.DailySummary {
	local := e.Timestamp.In(a.loc)
	ts := e.Timestamp
	return domain.DailySummary{
		VehicleID:      e.DeviceID,
		Date:           time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.loc),
		StartLatitude:  e.Latitude,
		StartLongitude: e.Longitude,
		EndLatitude:    e.Latitude,
		EndLongitude:   e.Longitude,
		Odometer:       e.Odometer,
		FuelGauge:      e.FuelGauge,
		LastEventTime:  &ts,
		State:          domain.EngineOff,
	}
}

func (a *Aggregator) load(ctx context.Context, key string) (domain.DailySummary, bool, error) {
	raw, err := a.cache.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.DailySummary{}, false, nil
	}
	if err != nil {
		return domain.DailySummary{}, false, err
	}
	var s domain.DailySummary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return domain.DailySummary{}, false, &domain.CacheError{Op: "decode", Key: key, Err: err}
	}
	return s, true, nil
}

func (a *Aggregator) save(ctx context.Context, key string, s domain.DailySummary) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal summary %s: %w", key, err)
	}
	return a.cache.Set(ctx, key, string(raw), untilMidnight(a.now().In(a.loc)))
}

// untilMidnight is the time left until the next local midnight, at least one second.
func untilMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	if d := next.Sub(now).Truncate(time.Second); d >= time.Second {
		return d
	}
	return time.Second
}
