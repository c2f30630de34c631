package domain

import (
	"testing"
	"time"
)

func TestEngineStateOf(t *testing.T) {
	tests := []struct {
		powerOn bool
		speed   float64
		want    EngineState
		running bool
	}{
		{false, 0, EngineOff, false},
		{false, 80, EngineOff, false},
		{true, 0, EngineOnStationary, true},
		{true, 0.1, EngineMoving, true},
		{true, 80, EngineMoving, true},
	}
	for _, tt := range tests {
		got := EngineStateOf(tt.powerOn, tt.speed)
		if got != tt.want {
			t.Errorf("EngineStateOf(%v, %v) = %s, want %s", tt.powerOn, tt.speed, got, tt.want)
		}
		if got.Running() != tt.running {
			t.Errorf("%s.Running() = %v, want %v", got, got.Running(), tt.running)
		}
	}
}

func TestTripComplete(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	trip := Trip{StartTime: start}
	trip.Complete(start.Add(90 * time.Minute))

	if trip.EndTime == nil || !trip.EndTime.Equal(start.Add(90*time.Minute)) {
		t.Fatalf("EndTime = %v", trip.EndTime)
	}
	if trip.OperationalHours != 1.5 {
		t.Errorf("OperationalHours = %v, want 1.5", trip.OperationalHours)
	}
}
