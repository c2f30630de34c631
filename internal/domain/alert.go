package domain

import "time"

type EventType string

const (
	EventGPS   EventType = "gps"
	EventFault EventType = "fault"
)

// AlertEvent is the envelope sent from ingestion to the alerting service.
type AlertEvent struct {
	EventType  EventType      `json:"event_type"`
	DeviceID   string         `json:"device_id"`
	DeviceName string         `json:"device_name"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data"`
}

func NewGPSAlert(e GPSEvent) AlertEvent {
	return AlertEvent{
		EventType:  EventGPS,
		DeviceID:   e.DeviceID,
		DeviceName: e.DeviceName,
		Timestamp:  e.Timestamp,
		Data:       e.AlertData(),
	}
}

func NewFaultAlert(e FaultEvent) AlertEvent {
	return AlertEvent{
		EventType:  EventFault,
		DeviceID:   e.DeviceID,
		DeviceName: e.DeviceName,
		Timestamp:  e.Timestamp,
		Data:       e.AlertData(),
	}
}
