package alerting

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/store"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSuppressor(t *testing.T) (*Suppressor, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := store.NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	return NewSuppressor(cache, discardLogger()), mr
}

func TestSuppressionWindow(t *testing.T) {
	s, mr := newTestSuppressor(t)
	ctx := context.Background()
	payload := []byte{0xAB, 0x00, 0x05} // window of 5 seconds

	if s.Suppressed(ctx, "17", payload) {
		t.Fatal("first occurrence suppressed")
	}
	if ttl := mr.TTL("suppression:17"); ttl != 5*time.Second {
		t.Errorf("ttl = %v, want 5s", ttl)
	}
	if !s.Suppressed(ctx, "17", payload) {
		t.Fatal("second occurrence within window not suppressed")
	}
	if s.Suppressed(ctx, "18", payload) {
		t.Error("other fault codes share the window")
	}

	mr.FastForward(5 * time.Second)
	if s.Suppressed(ctx, "17", payload) {
		t.Error("still suppressed after the window elapsed")
	}
}

func TestSuppressionNoWindow(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"zero window", []byte{0x01, 0x00, 0x00}},
		{"single byte", []byte{0x05}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mr := newTestSuppressor(t)
			for i := 0; i < 2; i++ {
				if s.Suppressed(context.Background(), "17", tt.payload) {
					t.Fatalf("call %d suppressed", i)
				}
			}
			if mr.Exists("suppression:17") {
				t.Errorf("key set without a window")
			}
		})
	}
}

func TestSuppressionFailsOpen(t *testing.T) {
	s, mr := newTestSuppressor(t)
	mr.Close()
	if s.Suppressed(context.Background(), "17", []byte{0x00, 0x3C}) {
		t.Error("cache failure suppressed the alert")
	}
}

func TestWindow(t *testing.T) {
	if got := Window([]byte{0x01, 0x02, 0x01, 0x2C}); got != 300*time.Second {
		t.Errorf("Window = %v, want 300s", got)
	}
}

func faultAlert(code string, payload []byte) domain.AlertEvent {
	return domain.NewFaultAlert(domain.FaultEvent{
		DeviceID:   "truck-1",
		DeviceName: "Truck One",
		Timestamp:  time.Unix(1700000000, 0).UTC(),
		FaultCode:  code,
		FaultLabel: "Overheat",
		Payload:    payload,
	})
}

func TestEngineProcess(t *testing.T) {
	s, _ := newTestSuppressor(t)
	rec := &recordingNotifier{}
	q := NewNotificationQueue(rec, 10, 1, discardLogger())
	q.Start()
	e := NewEngine(DefaultRules(), s, q, discardLogger())
	ctx := context.Background()

	payload := []byte{0x01, 0x00, 0x3C}
	if got := e.Process(ctx, faultAlert("17", payload)); len(got) != 1 {
		t.Fatalf("first fault queued %d notifications, want 1", len(got))
	}
	if got := e.Process(ctx, faultAlert("17", payload)); len(got) != 0 {
		t.Errorf("suppressed fault queued %d notifications", len(got))
	}
	if got := e.Process(ctx, faultAlert("250", payload)); len(got) != 0 {
		t.Errorf("unlisted fault code queued %d notifications", len(got))
	}

	fast := domain.NewGPSAlert(domain.GPSEvent{
		GPSSample:  domain.GPSSample{DeviceID: "truck-1", Speed: 88, PowerOn: true},
		DeviceName: "Truck One",
	})
	got := e.Process(ctx, fast)
	if len(got) != 1 {
		t.Fatalf("speeding queued %d notifications, want 1", len(got))
	}
	if want := "Alert: gps [speed=88 (threshold=70)]"; got[0].Subject != want {
		t.Errorf("subject = %q, want %q", got[0].Subject, want)
	}

	q.Close()
	if len(rec.sent) != 2 {
		t.Errorf("sent = %d, want 2", len(rec.sent))
	}
	for _, n := range rec.sent {
		if n.To != "example@gmail.com" || n.Body == "" {
			t.Errorf("notification = %+v", n)
		}
	}
}

func TestEngineBadFaultPayloadNotSuppressed(t *testing.T) {
	s, _ := newTestSuppressor(t)
	rec := &recordingNotifier{}
	q := NewNotificationQueue(rec, 10, 1, discardLogger())
	e := NewEngine(DefaultRules(), s, q, discardLogger())

	ev := faultAlert("5", nil)
	ev.Data["fault_payload"] = "%%%"
	if got := e.Process(context.Background(), ev); len(got) != 1 {
		t.Errorf("queued %d, want 1", len(got))
	}
}

func TestNotificationQueueDropsWhenFull(t *testing.T) {
	q := NewNotificationQueue(&recordingNotifier{}, 1, 1, discardLogger())
	if !q.Enqueue(Notification{To: "a"}) {
		t.Fatal("first enqueue dropped")
	}
	if q.Enqueue(Notification{To: "b"}) {
		t.Error("enqueue into a full queue succeeded")
	}
	q.Start()
	q.Close()
}
