package alerting

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/metrics"
)

type Engine struct {
	rules      []Rule
	suppressor *Suppressor
	queue      *NotificationQueue
	logger     *slog.Logger
}

func NewEngine(rules []Rule, suppressor *Suppressor, queue *NotificationQueue, logger *slog.Logger) *Engine {
	return &Engine{rules: rules, suppressor: suppressor, queue: queue, logger: logger}
}

// Process applies fault suppression, evaluates every rule and queues one
// notification per matching rule. It returns the notifications it queued.
func (e *Engine) Process(ctx context.Context, event domain.AlertEvent) []Notification {
	if event.EventType == domain.EventFault && e.suppressed(ctx, event) {
		metrics.AlertsSuppressed.Add(1)
		return nil
	}

	var matched []Rule
	for _, r := range e.rules {
		if Matches(event, r) {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		e.logger.Debug("no matching rules", "event_type", event.EventType, "device_id", event.DeviceID)
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		e.logger.Error("failed to encode alert event", "device_id", event.DeviceID, "error", err)
		return nil
	}

	out := make([]Notification, 0, len(matched))
	for _, r := range matched {
		n := Notification{To: r.Email, Subject: Subject(event, r), Body: string(body)}
		if e.queue.Enqueue(n) {
			out = append(out, n)
		}
	}
	return out
}

// Send lets the engine stand in for a remote alerting service.
func (e *Engine) Send(ctx context.Context, event domain.AlertEvent) error {
	e.Process(ctx, event)
	return nil
}

func (e *Engine) suppressed(ctx context.Context, event domain.AlertEvent) bool {
	code, _ := event.Data["fault_code"].(string)
	encoded, _ := event.Data["fault_payload"].(string)

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		e.logger.Warn("undecodable fault payload, not suppressing", "fault_code", code, "error", err)
		return false
	}
	return e.suppressor.Suppressed(ctx, code, payload)
}

// Subject lists each threshold key present in the event with its actual and
// configured values.
func Subject(event domain.AlertEvent, r Rule) string {
	var parts []string
	for _, key := range r.Keys() {
		actual, ok := event.Data[key]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v (threshold=%s)", key, actual, r.Thresholds[key]))
	}
	detail := "no matching thresholds"
	if len(parts) > 0 {
		detail = strings.Join(parts, ", ")
	}
	return fmt.Sprintf("Alert: %s [%s]", event.EventType, detail)
}
