// Package codec converts the base64, colon-delimited device payloads into
// domain records and back.
package codec

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
)

const (
	gpsFields   = 8
	faultFields = 6
)

func DecodeGPS(payload string) (domain.GPSSample, error) {
	parts, err := split(payload, "gps", gpsFields)
	if err != nil {
		return domain.GPSSample{}, err
	}

	fail := func(reason string, err error) (domain.GPSSample, error) {
		return domain.GPSSample{}, &domain.DecodeError{Kind: "gps", Payload: payload, Reason: reason, Err: err}
	}

	if parts[0] == "" {
		return fail("empty device id", nil)
	}
	ts, err := parseUnix(parts[1])
	if err != nil {
		return fail("invalid timestamp", err)
	}
	speed, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return fail("invalid speed", err)
	}
	odometer, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return fail("invalid odometer", err)
	}
	lat, err := strconv.ParseFloat(parts[5], 64)
	if err != nil {
		return fail("invalid latitude", err)
	}
	lon, err := strconv.ParseFloat(parts[6], 64)
	if err != nil {
		return fail("invalid longitude", err)
	}
	fuel, err := strconv.ParseFloat(parts[7], 64)
	if err != nil {
		return fail("invalid fuel_gauge", err)
	}

	return domain.GPSSample{
		DeviceID:  parts[0],
		Timestamp: ts,
		Speed:     speed,
		Odometer:  odometer,
		PowerOn:   strings.EqualFold(parts[4], "true"),
		Latitude:  lat,
		Longitude: lon,
		FuelGauge: fuel,
	}, nil
}

// DecodeFault decodes one fragment. Sequence must lie in [0, total) and total must be positive.
func DecodeFault(payload string) (domain.FaultFragment, error) {
	parts, err := split(payload, "fault", faultFields)
	if err != nil {
		return domain.FaultFragment{}, err
	}

	fail := func(reason string, err error) (domain.FaultFragment, error) {
		return domain.FaultFragment{}, &domain.DecodeError{Kind: "fault", Payload: payload, Reason: reason, Err: err}
	}

	if parts[0] == "" {
		return fail("empty device id", nil)
	}
	ts, err := parseUnix(parts[1])
	if err != nil {
		return fail("invalid timestamp", err)
	}
	seq, err := strconv.Atoi(parts[4])
	if err != nil {
		return fail("invalid sequence", err)
	}
	total, err := strconv.Atoi(parts[5])
	if err != nil {
		return fail("invalid total", err)
	}
	if total < 1 || seq < 0 || seq >= total {
		return fail(fmt.Sprintf("sequence %d out of range for total %d", seq, total), nil)
	}

	return domain.FaultFragment{
		DeviceID:  parts[0],
		Timestamp: ts,
		Bits:      parts[2],
		FaultCode: parts[3],
		Sequence:  seq,
		Total:     total,
	}, nil
}

// DeviceKey returns the leading device id of a payload without validating the
// rest. Routing uses it; an undecodable payload yields "".
func DeviceKey(payload string) string {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ""
	}
	text := unquote(string(raw))
	if i := strings.IndexByte(text, ':'); i >= 0 {
		return text[:i]
	}
	return ""
}

func EncodeGPS(s domain.GPSSample) string {
	fields := []string{
		s.DeviceID,
		formatUnix(s.Timestamp),
		formatFloat(s.Speed),
		formatFloat(s.Odometer),
		strconv.FormatBool(s.PowerOn),
		formatFloat(s.Latitude),
		formatFloat(s.Longitude),
		formatFloat(s.FuelGauge),
	}
	return base64.StdEncoding.EncodeToString([]byte(strings.Join(fields, ":")))
}

func EncodeFault(f domain.FaultFragment) string {
	fields := []string{
		f.DeviceID,
		formatUnix(f.Timestamp),
		f.Bits,
		f.FaultCode,
		strconv.Itoa(f.Sequence),
		strconv.Itoa(f.Total),
	}
	return base64.StdEncoding.EncodeToString([]byte(strings.Join(fields, ":")))
}

func split(payload, kind string, want int) ([]string, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &domain.DecodeError{Kind: kind, Payload: payload, Reason: "invalid base64", Err: err}
	}
	parts := strings.Split(unquote(string(raw)), ":")
	if len(parts) != want {
		return nil, &domain.DecodeError{
			Kind:    kind,
			Payload: payload,
			Reason:  fmt.Sprintf("expected %d fields, got %d", want, len(parts)),
		}
	}
	return parts, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func parseUnix(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("timestamp %q is not finite", s)
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*1e3).UTC(), nil
}

func formatUnix(t time.Time) string {
	us := t.UnixMicro()
	if us%1_000_000 == 0 {
		return strconv.FormatInt(us/1_000_000, 10)
	}
	return strconv.FormatFloat(float64(us)/1e6, 'f', 6, 64)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
