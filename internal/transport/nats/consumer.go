// Package nats feeds JetStream subjects into the processing lanes through
// durable pull consumers.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/pipeline"
)

type Binding struct {
	Subject string
	Durable string
	Lane    pipeline.Submitter
}

type Config struct {
	URL        string
	Stream     string
	Bindings   []Binding
	BatchSize  int
	MaxDeliver int
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
}

func NewConsumer(cfg Config, logger *slog.Logger) *Consumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = 5
	}
	return &Consumer{cfg: cfg, logger: logger}
}

// Run pulls from every bound subject until ctx is cancelled. The client
// library handles reconnects.
func (c *Consumer) Run(ctx context.Context) error {
	nc, err := nats.Connect(c.cfg.URL,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.MaxPingsOutstanding(5),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create jetstream context: %w", err)
	}
	if err := c.ensureStream(js); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, b := range c.cfg.Bindings {
		sub, err := js.PullSubscribe(b.Subject, b.Durable,
			nats.BindStream(c.cfg.Stream),
			nats.ManualAck(),
			nats.AckExplicit(),
			nats.AckWait(30*time.Second),
			nats.MaxDeliver(c.cfg.MaxDeliver),
		)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", b.Subject, err)
		}
		wg.Add(1)
		go func(b Binding) {
			defer wg.Done()
			c.pull(ctx, sub, b)
		}(b)
	}
	wg.Wait()
	return nil
}

func (c *Consumer) ensureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(c.cfg.Stream); err == nil {
		return nil
	}
	subjects := make([]string, 0, len(c.cfg.Bindings))
	for _, b := range c.cfg.Bindings {
		subjects = append(subjects, b.Subject)
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      c.cfg.Stream,
		Subjects:  subjects,
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", c.cfg.Stream, err)
	}
	c.logger.Info("created jetstream stream", "stream", c.cfg.Stream, "subjects", subjects)
	return nil
}

func (c *Consumer) pull(ctx context.Context, sub *nats.Subscription, b Binding) {
	var inflight sync.WaitGroup
	defer inflight.Wait()
	c.logger.Info("nats consumer started", "subject", b.Subject, "durable", b.Durable)

	for ctx.Err() == nil {
		msgs, err := sub.Fetch(c.cfg.BatchSize, nats.MaxWait(5*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			c.logger.Error("fetch error", "subject", b.Subject, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			id := msg.Header.Get(nats.MsgIdHdr)
			if id == "" {
				id = uuid.NewString()
			}
			inflight.Add(1)
			err := b.Lane.Submit(pipeline.WithMessageID(ctx, id), string(msg.Data), func(res pipeline.Result) {
				defer inflight.Done()
				if err := settle(msg, res); err != nil {
					c.logger.Warn("ack failed", "subject", b.Subject, "message_id", id, "error", err)
				}
			})
			if err != nil {
				// Unacknowledged messages are redelivered after AckWait.
				inflight.Done()
			}
		}
	}
}

type acker interface {
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

// settle acks handled messages, naks redeliverable failures (bounded by
// MaxDeliver) and terminates permanent ones.
func settle(m acker, res pipeline.Result) error {
	switch {
	case res.Status != pipeline.StatusFailed:
		return m.Ack()
	case res.Redeliverable():
		return m.Nak()
	default:
		return m.Term()
	}
}
