package amqp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends raw payloads to the exchange. It backs the publish command
// used to feed a local broker.
type Publisher struct {
	exchange string
	conn     *amqp.Connection
	channel  *amqp.Channel
	mu       sync.Mutex
}

func NewPublisher(url, exchange string, bindings []Binding) (*Publisher, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declareTopology(ch, exchange, bindings); err != nil {
		conn.Close()
		return nil, err
	}
	return &Publisher{exchange: exchange, conn: conn, channel: ch}, nil
}

func (p *Publisher) Publish(ctx context.Context, routingKey, payload string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "text/plain",
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         []byte(payload),
			DeliveryMode: amqp.Persistent,
		},
	)
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	return p.conn.Close()
}
