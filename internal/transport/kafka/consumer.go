// Package kafka feeds Kafka topics into the processing lanes. Offsets are
// committed only once every earlier message on the same partition has been
// handled, so a crash never skips unprocessed records.
package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/pipeline"
)

type Binding struct {
	Topic string
	Lane  pipeline.Submitter
}

type Config struct {
	Brokers  []string
	GroupID  string
	Bindings []Binding
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
}

func NewConsumer(cfg Config, logger *slog.Logger) *Consumer {
	return &Consumer{cfg: cfg, logger: logger}
}

// Run reads every bound topic until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, b := range c.cfg.Bindings {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       b.Topic,
			GroupID:     c.cfg.GroupID,
			MinBytes:    1,
			MaxBytes:    10e6, // 10MB
			StartOffset: kafka.FirstOffset,
		})
		wg.Add(1)
		go func(b Binding) {
			defer wg.Done()
			c.read(ctx, reader, b)
		}(b)
	}
	wg.Wait()
	return nil
}

func (c *Consumer) read(ctx context.Context, reader *kafka.Reader, b Binding) {
	defer reader.Close()
	c.logger.Info("starting kafka consumer",
		"brokers", c.cfg.Brokers,
		"topic", b.Topic,
		"group_id", c.cfg.GroupID,
	)

	var inflight sync.WaitGroup
	defer inflight.Wait()
	tracker := newOffsetTracker()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("fetch message failed", "topic", b.Topic, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		tracker.track(msg)
		inflight.Add(1)
		id := uuid.NewString()
		err = b.Lane.Submit(pipeline.WithMessageID(ctx, id), string(msg.Value), func(res pipeline.Result) {
			defer inflight.Done()
			if res.Status == pipeline.StatusFailed {
				c.logger.Warn("dropping failed record",
					"topic", b.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"message_id", id,
				)
			}
			if next, ok := tracker.complete(msg); ok {
				if err := reader.CommitMessages(context.WithoutCancel(ctx), next); err != nil {
					c.logger.Warn("commit failed", "topic", b.Topic, "offset", next.Offset, "error", err)
				}
			}
		})
		if err != nil {
			inflight.Done()
			return
		}
	}
}

type pendingOffset struct {
	msg  kafka.Message
	done bool
}

// offsetTracker finds, per partition, the highest offset whose predecessors
// have all completed.
type offsetTracker struct {
	mu      sync.Mutex
	pending map[int][]*pendingOffset
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{pending: make(map[int][]*pendingOffset)}
}

// track must be called in fetch order.
func (t *offsetTracker) track(msg kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[msg.Partition] = append(t.pending[msg.Partition], &pendingOffset{msg: msg})
}

// complete marks msg handled and returns the message to commit, if the
// committable prefix advanced.
func (t *offsetTracker) complete(msg kafka.Message) (kafka.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	queue := t.pending[msg.Partition]
	for _, p := range queue {
		if p.msg.Offset == msg.Offset {
			p.done = true
			break
		}
	}

	var last *pendingOffset
	n := 0
	for n < len(queue) && queue[n].done {
		last = queue[n]
		n++
	}
	t.pending[msg.Partition] = queue[n:]
	if last == nil {
		return kafka.Message{}, false
	}
	return last.msg, true
}
