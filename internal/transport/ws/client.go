package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
)

// RejectedError is returned when the alerter answers with an error ack.
// It is not retried.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return "alerter rejected event: " + e.Reason }

// Client sends each event on a fresh connection and waits for its ack.
type Client struct {
	url      string
	attempts int
	wait     time.Duration
	dialer   *websocket.Dialer
	logger   *slog.Logger
}

func NewClient(url string, attempts int, wait time.Duration, logger *slog.Logger) *Client {
	if attempts <= 0 {
		attempts = 1
	}
	return &Client{
		url:      url,
		attempts: attempts,
		wait:     wait,
		dialer:   &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		logger:   logger,
	}
}

func (c *Client) Send(ctx context.Context, event domain.AlertEvent) error {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		ack, err := c.sendOnce(ctx, event)
		if err == nil {
			if ack.Status != AckReceived {
				return &RejectedError{Reason: ack.Reason}
			}
			return nil
		}
		lastErr = err
		c.logger.Warn("alert send failed",
			"attempt", attempt,
			"device_id", event.DeviceID,
			"error", err,
		)
		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(c.wait):
		}
	}
	return fmt.Errorf("send alert after %d attempts: %w", c.attempts, lastErr)
}

func (c *Client) sendOnce(ctx context.Context, event domain.AlertEvent) (Ack, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return Ack{}, fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
		conn.SetReadDeadline(deadline)
	}
	if err := conn.WriteJSON(event); err != nil {
		return Ack{}, fmt.Errorf("write event: %w", err)
	}
	var ack Ack
	if err := conn.ReadJSON(&ack); err != nil {
		return Ack{}, fmt.Errorf("read ack: %w", err)
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return ack, nil
}
