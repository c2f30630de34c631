package summary

import (
	"fmt"
	"time"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
)

// TripFields are the summary fields a TripPolicy owns. Closed is set when the
// sample ended a trip.
type TripFields struct {
	TripCount      int
	CurrentTrip    *domain.Trip
	LastMovingTime *time.Time
	Closed         *domain.Trip
}

// TripPolicy decides trip boundaries. The summary passed in still carries the
// state from before the sample.
type TripPolicy interface {
	DetectTrip(s domain.DailySummary, e domain.GPSSample) TripFields
}

// HoursPolicy returns the new running total of operational hours.
type HoursPolicy interface {
	OperationalHours(s domain.DailySummary, e domain.GPSSample) float64
}

const (
	TripIdleThreshold = "idle-threshold"
	HoursEngineOn     = "engine-on"
	HoursMovingOnly   = "moving-only"
)

func NewTripPolicy(name string, idleThreshold time.Duration) (TripPolicy, error) {
	switch name {
	case "", TripIdleThreshold:
		if idleThreshold <= 0 {
			idleThreshold = 300 * time.Second
		}
		return IdleThresholdTrips{Threshold: idleThreshold}, nil
	}
	return nil, fmt.Errorf("unknown trip policy %q", name)
}

func NewHoursPolicy(name string) (HoursPolicy, error) {
	switch name {
	case "", HoursEngineOn:
		return EngineOnHours{}, nil
	case HoursMovingOnly:
		return MovingHours{}, nil
	}
	return nil, fmt.Errorf("unknown hours policy %q", name)
}

// IdleThresholdTrips opens a trip on the transition into MOVING and closes it
// once the vehicle has been stopped or off for at least Threshold since that
// transition. LastMovingTime is not refreshed by later MOVING samples.
type IdleThresholdTrips struct {
	Threshold time.Duration
}

func (p IdleThresholdTrips) DetectTrip(s domain.DailySummary, e domain.GPSSample) TripFields {
	out := TripFields{
		TripCount:      s.TripCount,
		CurrentTrip:    s.CurrentTrip,
		LastMovingTime: s.LastMovingTime,
	}
	state := domain.EngineStateOf(e.PowerOn, e.Speed)
	ts := e.Timestamp

	if state != s.State && state == domain.EngineMoving {
		out.CurrentTrip = &domain.Trip{StartTime: ts}
		out.LastMovingTime = &ts
		return out
	}

	if state == domain.EngineMoving || out.CurrentTrip == nil || out.LastMovingTime == nil {
		return out
	}

	if ts.Sub(*out.LastMovingTime) >= p.Threshold {
		closed := *out.CurrentTrip
		closed.Complete(ts)
		out.TripCount++
		out.Closed = &closed
		out.CurrentTrip = nil
		out.LastMovingTime = nil
	}
	return out
}

// EngineOnHours accrues time since the previous sample while the engine runs.
type EngineOnHours struct{}

func (EngineOnHours) OperationalHours(s domain.DailySummary, e domain.GPSSample) float64 {
	if s.LastEventTime == nil || !domain.EngineStateOf(e.PowerOn, e.Speed).Running() {
		return s.TotalOperationalHours
	}
	return s.TotalOperationalHours + e.Timestamp.Sub(*s.LastEventTime).Hours()
}

// MovingHours accrues time only while the vehicle is moving.
type MovingHours struct{}

func (MovingHours) OperationalHours(s domain.DailySummary, e domain.GPSSample) float64 {
	if s.LastEventTime == nil || domain.EngineStateOf(e.PowerOn, e.Speed) != domain.EngineMoving {
		return s.TotalOperationalHours
	}
	return s.TotalOperationalHours + e.Timestamp.Sub(*s.LastEventTime).Hours()
}
