package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/codec"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
)

func TestLanePreservesPerDeviceOrder(t *testing.T) {
	var mu sync.Mutex
	seen := map[string][]int{}

	handler := func(_ context.Context, payload string) Result {
		s, err := codec.DecodeGPS(payload)
		if err != nil {
			return Result{Status: StatusFailed, Err: err}
		}
		mu.Lock()
		seen[s.DeviceID] = append(seen[s.DeviceID], int(s.Speed))
		mu.Unlock()
		return Result{Status: StatusProcessed, DeviceID: s.DeviceID}
	}

	lane := NewLane("gps", 4, 8, handler, discardLogger())
	lane.Start()

	var done atomic.Int32
	devices := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < 50; i++ {
		for _, dev := range devices {
			p := codec.EncodeGPS(domain.GPSSample{DeviceID: dev, Timestamp: ts0, Speed: float64(i)})
			if err := lane.Submit(context.Background(), p, func(Result) { done.Add(1) }); err != nil {
				t.Fatal(err)
			}
		}
	}
	lane.Close()

	if n := done.Load(); n != 250 {
		t.Fatalf("completed %d, want 250", n)
	}
	for _, dev := range devices {
		got := seen[dev]
		if len(got) != 50 {
			t.Fatalf("device %s handled %d", dev, len(got))
		}
		for i, v := range got {
			if v != i {
				t.Fatalf("device %s out of order at %d: %v", dev, i, got)
			}
		}
	}
}

func TestLaneSubmitHonoursContext(t *testing.T) {
	block := make(chan struct{})
	lane := NewLane("fault", 1, 0, func(context.Context, string) Result {
		<-block
		return Result{}
	}, discardLogger())
	lane.Start()
	defer func() {
		close(block)
		lane.Close()
	}()

	// Occupy the single worker.
	if err := lane.Submit(context.Background(), "x", nil); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := lane.Submit(ctx, "y", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestLaneDetachesCancelledContext(t *testing.T) {
	var cancelled atomic.Bool
	lane := NewLane("gps", 1, 1, func(ctx context.Context, _ string) Result {
		cancelled.Store(ctx.Err() != nil)
		return Result{}
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	if err := lane.Submit(ctx, "x", nil); err != nil {
		t.Fatal(err)
	}
	cancel()
	lane.Start()
	lane.Close()

	if cancelled.Load() {
		t.Error("handler saw a cancelled context")
	}
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	var active, maxActive atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("gps:truck-1")
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if maxActive.Load() != 1 {
		t.Errorf("max concurrent holders = %d", maxActive.Load())
	}
	if len(k.locks) != 0 {
		t.Errorf("entries left: %d", len(k.locks))
	}
}

type fakeSender struct {
	mu   sync.Mutex
	sent []domain.AlertEvent
	err  error
}

func (f *fakeSender) Send(_ context.Context, e domain.AlertEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, e)
	return nil
}

func TestAlertDispatcher(t *testing.T) {
	sender := &fakeSender{}
	d := NewAlertDispatcher(sender, 10, 2, discardLogger())
	d.Start()
	for i := 0; i < 5; i++ {
		if !d.Dispatch(domain.AlertEvent{EventType: domain.EventGPS, DeviceID: fmt.Sprint(i)}) {
			t.Fatalf("dispatch %d dropped", i)
		}
	}
	d.Close()
	if len(sender.sent) != 5 {
		t.Errorf("sent = %d, want 5", len(sender.sent))
	}
}

func TestAlertDispatcherDropsWhenFull(t *testing.T) {
	d := NewAlertDispatcher(&fakeSender{err: errors.New("down")}, 2, 1, discardLogger())
	d.Dispatch(domain.AlertEvent{})
	d.Dispatch(domain.AlertEvent{})
	if d.Dispatch(domain.AlertEvent{}) {
		t.Error("dispatch into a full queue succeeded")
	}
	d.Start()
	d.Close()
}

func TestAlertDispatcherRejectsAfterClose(t *testing.T) {
	sender := &fakeSender{}
	d := NewAlertDispatcher(sender, 4, 1, discardLogger())
	d.Start()
	d.Close()

	if d.Dispatch(domain.AlertEvent{EventType: domain.EventGPS, DeviceID: "late"}) {
		t.Error("dispatch after close was accepted")
	}
	d.Close()
	if len(sender.sent) != 0 {
		t.Errorf("sent = %d, want 0", len(sender.sent))
	}
}
