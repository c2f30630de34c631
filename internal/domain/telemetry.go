package domain

import (
	"encoding/base64"
	"time"
)

// GPSSample is one decoded position/power reading from a device.
type GPSSample struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Speed     float64   `json:"speed"`
	Odometer  float64   `json:"odometer"`
	PowerOn   bool      `json:"power_on"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	FuelGauge float64   `json:"fuel_gauge"`
}

// GPSEvent is a sample enriched with the device's display name.
type GPSEvent struct {
	GPSSample
	DeviceName string `json:"device_name"`
}

type FaultFragment struct {
	DeviceID  string
	Timestamp time.Time
	Bits      string
	FaultCode string
	Sequence  int
	Total     int
}

// FaultEvent is a fault reassembled from all of its fragments.
type FaultEvent struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	Timestamp  time.Time `json:"timestamp"`
	FaultCode  string    `json:"fault_code"`
	FaultLabel string    `json:"fault_label"`
	Bits       string    `json:"fault_payload"`
	Payload    []byte    `json:"-"`
}

// TimeKey renders a timestamp the way it appears inside cache keys.
func TimeKey(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (e GPSEvent) AlertData() map[string]any {
	return map[string]any{
		"device_id":   e.DeviceID,
		"device_name": e.DeviceName,
		"timestamp":   e.Timestamp,
		"speed":       e.Speed,
		"odometer":    e.Odometer,
		"power_on":    e.PowerOn,
		"latitude":    e.Latitude,
		"longitude":   e.Longitude,
		"fuel_gauge":  e.FuelGauge,
	}
}

// AlertData carries the raw payload base64-encoded under fault_payload, which is
// where the alerting side reads the suppression window from.
func (e FaultEvent) AlertData() map[string]any {
	return map[string]any{
		"device_id":     e.DeviceID,
		"device_name":   e.DeviceName,
		"timestamp":     e.Timestamp,
		"fault_payload": base64.StdEncoding.EncodeToString(e.Payload),
		"fault_code":    e.FaultCode,
		"fault_label":   e.FaultLabel,
	}
}
