package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []domain.AlertEvent
	full   bool
}

func (r *recordingDispatcher) Dispatch(e domain.AlertEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	r.events = append(r.events, e)
	return true
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startAlerter(t *testing.T, d *recordingDispatcher) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(NewServer(d, discardLogger()).Router())
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestClientSendsAndServerAcks(t *testing.T) {
	d := &recordingDispatcher{}
	_, url := startAlerter(t, d)
	c := NewClient(url, 3, time.Millisecond, discardLogger())

	event := domain.AlertEvent{
		EventType:  domain.EventGPS,
		DeviceID:   "truck-1",
		DeviceName: "Hauler",
		Timestamp:  time.Unix(1700000000, 0).UTC(),
		Data:       map[string]any{"speed": 88.0},
	}
	if err := c.Send(context.Background(), event); err != nil {
		t.Fatal(err)
	}
	if len(d.events) != 1 {
		t.Fatalf("dispatched %d events", len(d.events))
	}
	got := d.events[0]
	if got.DeviceName != "Hauler" || got.Data["speed"] != 88.0 || !got.Timestamp.Equal(event.Timestamp) {
		t.Errorf("event = %+v", got)
	}
}

func TestServerAcks(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		full       bool
		wantStatus string
		wantReason string
	}{
		{"gps", `{"event_type":"gps","device_id":"d1","data":{}}`, false, AckReceived, ""},
		{"not json", `{`, false, AckError, "invalid event"},
		{"unknown type", `{"event_type":"tyre","device_id":"d1"}`, false, AckError, "unknown event_type"},
		{"no device", `{"event_type":"fault"}`, false, AckError, "missing device_id"},
		{"queue full", `{"event_type":"fault","device_id":"d1"}`, true, AckError, "alert not queued"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, url := startAlerter(t, &recordingDispatcher{full: tt.full})
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				t.Fatal(err)
			}
			defer conn.Close()

			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.message)); err != nil {
				t.Fatal(err)
			}
			var ack Ack
			if err := conn.ReadJSON(&ack); err != nil {
				t.Fatal(err)
			}
			if ack.Status != tt.wantStatus || !strings.HasPrefix(ack.Reason, tt.wantReason) {
				t.Errorf("ack = %+v", ack)
			}
			if tt.wantStatus == AckReceived && (ack.EventType != domain.EventGPS || ack.DeviceID != "d1") {
				t.Errorf("ack does not echo the event: %+v", ack)
			}
		})
	}
}

func TestClientRejectedIsNotRetried(t *testing.T) {
	_, url := startAlerter(t, &recordingDispatcher{full: true})
	c := NewClient(url, 3, time.Millisecond, discardLogger())

	err := c.Send(context.Background(), domain.AlertEvent{EventType: domain.EventFault, DeviceID: "d1"})
	var rejected *RejectedError
	if !errors.As(err, &rejected) || rejected.Reason != "alert not queued" {
		t.Fatalf("err = %v", err)
	}
}

func TestClientGivesUpAfterAttempts(t *testing.T) {
	srv, url := startAlerter(t, &recordingDispatcher{})
	srv.Close()

	c := NewClient(url, 3, time.Millisecond, discardLogger())
	err := c.Send(context.Background(), domain.AlertEvent{EventType: domain.EventGPS, DeviceID: "d1"})
	if err == nil || !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("err = %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := startAlerter(t, &recordingDispatcher{})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
