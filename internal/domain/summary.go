package domain

import "time"

type EngineState string

const (
	EngineOff          EngineState = "ENGINE_OFF"
	EngineOnStationary EngineState = "ENGINE_ON_STATIONARY"
	EngineMoving       EngineState = "ENGINE_MOVING"
)

// EngineStateOf derives the engine state from ignition power and speed.
func EngineStateOf(powerOn bool, speed float64) EngineState {
	switch {
	case !powerOn:
		return EngineOff
	case speed == 0:
		return EngineOnStationary
	default:
		return EngineMoving
	}
}

// Running reports whether the engine is on, moving or not.
func (s EngineState) Running() bool {
	return s == EngineOnStationary || s == EngineMoving
}

type Trip struct {
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time"`
	OperationalHours float64    `json:"operational_hours"`
}

// Complete closes the trip at end and records its duration in hours.
func (t *Trip) Complete(end time.Time) {
	t.EndTime = &end
	t.OperationalHours = end.Sub(t.StartTime).Hours()
}

// DailySummary is the rolling per-vehicle, per-day state kept in the cache.
// Date is midnight of the summary day in the configured timezone.
type DailySummary struct {
	VehicleID             string      `json:"vehicle_id"`
	Date                  time.Time   `json:"summary_date"`
	StartLatitude         float64     `json:"start_latitude"`
	StartLongitude        float64     `json:"start_longitude"`
	EndLatitude           float64     `json:"end_latitude"`
	EndLongitude          float64     `json:"end_longitude"`
	TotalDistanceKm       float64     `json:"total_distance_km"`
	TotalOperationalHours float64     `json:"total_operational_hours"`
	TripCount             int         `json:"trip_count"`
	FuelConsumedLiters    float64     `json:"fuel_consumed_liters"`
	Odometer              float64     `json:"odometer"`
	FuelGauge             float64     `json:"fuel_gauge"`
	LastMovingTime        *time.Time  `json:"last_moving_time"`
	LastEventTime         *time.Time  `json:"last_event_time"`
	State                 EngineState `json:"state"`
	CurrentTrip           *Trip       `json:"current_trip"`
}

// DateKey is the summary day as YYYY-MM-DD.
func (s DailySummary) DateKey() string {
	return s.Date.Format(time.DateOnly)
}

type IdlingEpisode struct {
	DeviceID  string    `json:"device_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// IdlingHotspot is the durable record written when an idling episode closes.
type IdlingHotspot struct {
	AssetID             string
	Date                time.Time
	IdleDurationMinutes float64
	Latitude            float64
	Longitude           float64
}
