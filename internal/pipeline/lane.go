package pipeline

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/codec"
)

// Handler processes one raw payload.
type Handler func(ctx context.Context, payload string) Result

// Submitter is what transports hand raw payloads to. *Lane implements it.
type Submitter interface {
	Submit(ctx context.Context, payload string, done func(Result)) error
}

type job struct {
	ctx     context.Context
	payload string
	done    func(Result)
}

// Lane spreads payloads over a fixed set of partitions by device id. Each
// partition has one goroutine, so payloads from one device are handled in
// the order they were submitted.
type Lane struct {
	name    string
	parts   []chan job
	handler Handler
	logger  *slog.Logger
	wg      sync.WaitGroup
	once    sync.Once
}

func NewLane(name string, partitions, buffer int, handler Handler, logger *slog.Logger) *Lane {
	if partitions <= 0 {
		partitions = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	parts := make([]chan job, partitions)
	for i := range parts {
		parts[i] = make(chan job, buffer)
	}
	return &Lane{name: name, parts: parts, handler: handler, logger: logger}
}

func (l *Lane) Start() {
	for i, ch := range l.parts {
		l.wg.Add(1)
		go l.run(i, ch)
	}
}

// Submit queues a payload, blocking while its partition is full. done is
// called from the partition goroutine with the handler's result.
func (l *Lane) Submit(ctx context.Context, payload string, done func(Result)) error {
	ch := l.parts[l.partition(payload)]
	select {
	case ch <- job{ctx: ctx, payload: payload, done: done}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops intake and waits until every queued payload has been handled.
// Submit must not be called after Close.
func (l *Lane) Close() {
	l.once.Do(func() {
		for _, ch := range l.parts {
			close(ch)
		}
	})
	l.wg.Wait()
}

func (l *Lane) partition(payload string) int {
	h := fnv.New32a()
	h.Write([]byte(codec.DeviceKey(payload)))
	return int(h.Sum32() % uint32(len(l.parts)))
}

func (l *Lane) run(idx int, ch <-chan job) {
	defer l.wg.Done()
	for j := range ch {
		// Queued work finishes even when the submitter has gone away.
		res := l.handler(context.WithoutCancel(j.ctx), j.payload)
		if j.done != nil {
			j.done(res)
		}
	}
	l.logger.Debug("lane partition stopped", "lane", l.name, "partition", idx)
}
