// Package amqp feeds RabbitMQ deliveries into the processing lanes and
// settles each delivery once its lane reports a result.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/pipeline"
)

// Binding routes one queue, bound to the exchange under RoutingKey, into a lane.
type Binding struct {
	Queue      string
	RoutingKey string
	Lane       pipeline.Submitter
}

type Config struct {
	URL      string
	Exchange string
	Prefetch int
	Bindings []Binding
	// DrainTimeout bounds how long shutdown waits for in-flight deliveries to settle.
	DrainTimeout time.Duration
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
}

func NewConsumer(cfg Config, logger *slog.Logger) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 50
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	return &Consumer{cfg: cfg, logger: logger}
}

// Run consumes until ctx is cancelled, reconnecting with exponential backoff
// whenever the broker connection is lost.
func (c *Consumer) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	b.MaxInterval = 30 * time.Second

	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			b.Reset()
		}
		wait := b.NextBackOff()
		c.logger.Warn("amqp session ended, reconnecting", "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (c *Consumer) session(ctx context.Context) (bool, error) {
	conn, err := amqp.DialConfig(c.cfg.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return false, fmt.Errorf("failed to connect to amqp: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return false, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declareTopology(ch, c.cfg.Exchange, c.cfg.Bindings); err != nil {
		return false, err
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return false, fmt.Errorf("failed to set qos: %w", err)
	}

	var inflight, readers sync.WaitGroup
	tags := make([]string, 0, len(c.cfg.Bindings))
	for _, b := range c.cfg.Bindings {
		tag := "fleetops-" + b.Queue + "-" + uuid.NewString()[:8]
		deliveries, err := ch.Consume(b.Queue, tag, false, false, false, false, nil)
		if err != nil {
			return false, fmt.Errorf("failed to consume %s: %w", b.Queue, err)
		}
		tags = append(tags, tag)

		readers.Add(1)
		go func(b Binding) {
			defer readers.Done()
			for d := range deliveries {
				c.deliver(ctx, b, d, &inflight)
			}
		}(b)
	}
	c.logger.Info("amqp consumer started", "exchange", c.cfg.Exchange, "queues", len(tags))

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case <-ctx.Done():
		for _, tag := range tags {
			if err := ch.Cancel(tag, false); err != nil {
				c.logger.Warn("failed to cancel consumer", "tag", tag, "error", err)
			}
		}
		readers.Wait()
		c.drain(&inflight)
		return true, nil
	case err := <-closed:
		if err == nil {
			return true, errors.New("connection closed")
		}
		return true, err
	}
}

func (c *Consumer) deliver(ctx context.Context, b Binding, d amqp.Delivery, inflight *sync.WaitGroup) {
	id := d.MessageId
	if id == "" {
		id = uuid.NewString()
	}
	inflight.Add(1)
	err := b.Lane.Submit(pipeline.WithMessageID(ctx, id), string(d.Body), func(res pipeline.Result) {
		defer inflight.Done()
		if err := settle(d, res); err != nil {
			c.logger.Warn("failed to settle delivery", "queue", b.Queue, "message_id", id, "error", err)
		}
	})
	if err != nil {
		// Left unacknowledged: the broker requeues it when the channel closes.
		inflight.Done()
	}
}

func (c *Consumer) drain(inflight *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.cfg.DrainTimeout):
		c.logger.Warn("amqp drain timed out, unsettled deliveries will be requeued")
	}
}

// settle acknowledges handled deliveries. A redeliverable failure is requeued
// once; after that, and for permanent failures, the delivery is rejected.
func settle(d amqp.Delivery, res pipeline.Result) error {
	switch {
	case res.Status != pipeline.StatusFailed:
		return d.Ack(false)
	case res.Redeliverable() && !d.Redelivered:
		return d.Nack(false, true)
	default:
		return d.Nack(false, false)
	}
}

func declareTopology(ch *amqp.Channel, exchange string, bindings []Binding) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	for _, b := range bindings {
		if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", b.Queue, err)
		}
		if err := ch.QueueBind(b.Queue, b.RoutingKey, exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", b.Queue, err)
		}
	}
	return nil
}
