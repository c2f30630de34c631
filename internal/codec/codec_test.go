package codec

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
)

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestDecodeGPS(t *testing.T) {
	got, err := DecodeGPS(b64(`"truck-7:1700000000:42.5:1200.25:TRUE:10.75:106.5:63.0"`))
	if err != nil {
		t.Fatalf("DecodeGPS: %v", err)
	}
	want := domain.GPSSample{
		DeviceID:  "truck-7",
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Speed:     42.5,
		Odometer:  1200.25,
		PowerOn:   true,
		Latitude:  10.75,
		Longitude: 106.5,
		FuelGauge: 63,
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDecodeGPSPowerFlag(t *testing.T) {
	tests := []struct {
		flag string
		want bool
	}{
		{"true", true},
		{"True", true},
		{"false", false},
		{"1", false},
		{"yes", false},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			s, err := DecodeGPS(b64("d:1:0:0:" + tt.flag + ":0:0:0"))
			if err != nil {
				t.Fatalf("DecodeGPS: %v", err)
			}
			if s.PowerOn != tt.want {
				t.Errorf("PowerOn = %v, want %v", s.PowerOn, tt.want)
			}
		})
	}
}

func TestDecodeGPSErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not base64", "%%%"},
		{"too few fields", b64("d:1:0:0:true:0:0")},
		{"too many fields", b64("d:1:0:0:true:0:0:0:9")},
		{"bad timestamp", b64("d:abc:0:0:true:0:0:0")},
		{"bad speed", b64("d:1:fast:0:true:0:0:0")},
		{"bad fuel", b64("d:1:0:0:true:0:0:x")},
		{"empty device", b64(":1:0:0:true:0:0:0")},
		{"short payload", "bm90LWVub3VnaDpmaWVsZHM="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeGPS(tt.payload)
			var de *domain.DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
			if de.Payload != tt.payload {
				t.Errorf("Payload = %q, want original %q", de.Payload, tt.payload)
			}
			if !strings.Contains(err.Error(), tt.payload) {
				t.Errorf("error %q does not name the payload %q", err, tt.payload)
			}
		})
	}
}

func TestDecodeFault(t *testing.T) {
	got, err := DecodeFault(b64("truck-7:1700000000.5:10110011:P0420:1:3"))
	if err != nil {
		t.Fatalf("DecodeFault: %v", err)
	}
	want := domain.FaultFragment{
		DeviceID:  "truck-7",
		Timestamp: time.Unix(1700000000, 500_000_000).UTC(),
		Bits:      "10110011",
		FaultCode: "P0420",
		Sequence:  1,
		Total:     3,
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDecodeFaultErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"five fields", b64("d:1:00000000:C:0")},
		{"bad sequence", b64("d:1:00000000:C:x:1")},
		{"bad total", b64("d:1:00000000:C:0:x")},
		{"zero total", b64("d:1:00000000:C:0:0")},
		{"negative sequence", b64("d:1:00000000:C:-1:2")},
		{"sequence past total", b64("d:1:00000000:C:2:2")},
		{"empty device", b64(":1:00000000:C:0:1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFault(tt.payload)
			var de *domain.DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
			if de.Kind != "fault" {
				t.Errorf("Kind = %q", de.Kind)
			}
			if !strings.Contains(err.Error(), tt.payload) {
				t.Errorf("error %q does not name the payload %q", err, tt.payload)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	s := domain.GPSSample{
		DeviceID:  "van-1",
		Timestamp: time.Unix(1700000123, 250_000_000).UTC(),
		Speed:     0,
		Odometer:  98765.4,
		PowerOn:   true,
		Latitude:  -33.8688,
		Longitude: 151.2093,
		FuelGauge: 12.5,
	}
	got, err := DecodeGPS(EncodeGPS(s))
	if err != nil {
		t.Fatalf("DecodeGPS: %v", err)
	}
	if got != s {
		t.Errorf("gps round trip: got %+v, want %+v", got, s)
	}

	f := domain.FaultFragment{
		DeviceID:  "van-1",
		Timestamp: time.Unix(1700000123, 0).UTC(),
		Bits:      "00000101",
		FaultCode: "17",
		Sequence:  4,
		Total:     6,
	}
	gotF, err := DecodeFault(EncodeFault(f))
	if err != nil {
		t.Fatalf("DecodeFault: %v", err)
	}
	if gotF != f {
		t.Errorf("fault round trip: got %+v, want %+v", gotF, f)
	}
}

func TestDeviceKey(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{b64("truck-1:1:0:0:true:0:0:0"), "truck-1"},
		{b64(`"truck-2:1:00000000:C:0:1"`), "truck-2"},
		{b64("nocolon"), ""},
		{"%%%", ""},
	}
	for _, tt := range tests {
		if got := DeviceKey(tt.payload); got != tt.want {
			t.Errorf("DeviceKey(%q) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}
