package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/metrics"
)

// AlertSender delivers one event to the alerting service.
type AlertSender interface {
	Send(ctx context.Context, event domain.AlertEvent) error
}

// AlertDispatcher hands alert events to background senders. Dispatch never
// blocks ingestion; when the buffer is full the event is dropped and counted.
type AlertDispatcher struct {
	ch      chan domain.AlertEvent
	sender  AlertSender
	workers int
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

func NewAlertDispatcher(sender AlertSender, size, workers int, logger *slog.Logger) *AlertDispatcher {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &AlertDispatcher{
		ch:      make(chan domain.AlertEvent, size),
		sender:  sender,
		workers: workers,
		timeout: 30 * time.Second,
		logger:  logger,
	}
}

func (d *AlertDispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
}

// Dispatch queues event and reports whether it was accepted. Events arriving
// after Close are rejected.
func (d *AlertDispatcher) Dispatch(event domain.AlertEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("alert dispatcher closed, rejecting",
			"event_type", event.EventType,
			"device_id", event.DeviceID,
		)
		return false
	}
	select {
	case d.ch <- event:
		return true
	default:
		metrics.AlertQueueDrops.Add(1)
		d.logger.Warn("alert queue full, dropping",
			"event_type", event.EventType,
			"device_id", event.DeviceID,
		)
		return false
	}
}

// Close stops intake and drains queued events.
func (d *AlertDispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *AlertDispatcher) run() {
	defer d.wg.Done()
	for event := range d.ch {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.sender.Send(ctx, event)
		cancel()
		if err != nil {
			metrics.AlertSendFailures.Add(1)
			d.logger.Error("alert dispatch failed",
				"event_type", event.EventType,
				"device_id", event.DeviceID,
				"error", err,
			)
			continue
		}
		metrics.AlertsSent.Add(1)
	}
}
