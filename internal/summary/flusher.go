package summary

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/metrics"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/store"
)

// Flusher periodically copies every cached summary into the durable sink.
type Flusher struct {
	cache    store.Cache
	sink     store.Sink
	interval time.Duration
	logger   *slog.Logger
}

func NewFlusher(cache store.Cache, sink store.Sink, interval time.Duration, logger *slog.Logger) *Flusher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Flusher{cache: cache, sink: sink, interval: interval, logger: logger}
}

func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.Flush(ctx)

		case <-ctx.Done():
			f.Flush(context.WithoutCancel(ctx))
			return
		}
	}
}

// Flush upserts all cached summaries and returns how many were written.
func (f *Flusher) Flush(ctx context.Context) int {
	keys, err := f.cache.Scan(ctx, KeyPrefix+"*")
	if err != nil {
		f.logger.Error("summary scan failed", "error", err)
		return 0
	}
	if len(keys) == 0 {
		return 0
	}

	batch := make([]domain.DailySummary, 0, len(keys))
	for _, key := range keys {
		raw, err := f.cache.Get(ctx, key)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			f.logger.Warn("summary read failed", "key", key, "error", err)
			continue
		}
		var s domain.DailySummary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			f.logger.Warn("skipping undecodable summary", "key", key, "error", err)
			continue
		}
		batch = append(batch, s)
	}

	if err := f.sink.UpsertDailySummaries(ctx, batch); err != nil {
		f.logger.Warn("summary flush failed, retrying", "batch", len(batch), "error", err)
		time.Sleep(500 * time.Millisecond)
		if err := f.sink.UpsertDailySummaries(ctx, batch); err != nil {
			f.logger.Error("summary flush permanently failed", "batch", len(batch), "error", err)
			metrics.SinkWriteFailures.Add(int64(len(batch)))
			return 0
		}
	}
	metrics.SummariesFlushed.Add(int64(len(batch)))
	return len(batch)
}
