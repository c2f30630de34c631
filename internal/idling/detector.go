// Package idling tracks engine-on, zero-speed episodes per device and records
// each one as a hotspot when it ends.
package idling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/metrics"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/store"
)

type Detector struct {
	cache  store.Cache
	sink   store.Sink
	loc    *time.Location
	logger *slog.Logger
}

func NewDetector(cache store.Cache, sink store.Sink, loc *time.Location, logger *slog.Logger) *Detector {
	if loc == nil {
		loc = time.UTC
	}
	return &Detector{cache: cache, sink: sink, loc: loc, logger: logger}
}

func episodeKey(deviceID string) string {
	return "idling_events:" + deviceID
}

// ProcessEvent opens or extends the device's episode while it idles and
// closes it on the first sample that is not idle. The cached episode has no
// TTL; it lives until closed.
func (d *Detector) ProcessEvent(ctx context.Context, e domain.GPSEvent) error {
	key := episodeKey(e.DeviceID)

	ep, open, err := d.load(ctx, key)
	if err != nil {
		return err
	}

	if e.PowerOn && e.Speed == 0 {
		if !open {
			ep = domain.IdlingEpisode{DeviceID: e.DeviceID, StartTime: e.Timestamp}
		}
		ep.EndTime = e.Timestamp
		ep.Latitude = e.Latitude
		ep.Longitude = e.Longitude

		raw, err := json.Marshal(ep)
		if err != nil {
			return fmt.Errorf("failed to marshal idling episode: %w", err)
		}
		return d.cache.Set(ctx, key, string(raw), 0)
	}

	if !open {
		return nil
	}

	start := ep.StartTime.In(d.loc)
	hotspot := domain.IdlingHotspot{
		AssetID:             ep.DeviceID,
		Date:                time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, d.loc),
		IdleDurationMinutes: ep.EndTime.Sub(ep.StartTime).Minutes(),
		Latitude:            ep.Latitude,
		Longitude:           ep.Longitude,
	}
	if err := d.sink.InsertIdlingHotspot(ctx, hotspot); err != nil {
		return err
	}
	metrics.IdlingEpisodes.Add(1)

	d.logger.Info("idling episode closed",
		"device_id", ep.DeviceID,
		"minutes", hotspot.IdleDurationMinutes,
	)
	return d.cache.Del(ctx, key)
}

func (d *Detector) load(ctx context.Context, key string) (domain.IdlingEpisode, bool, error) {
	raw, err := d.cache.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.IdlingEpisode{}, false, nil
	}
	if err != nil {
		return domain.IdlingEpisode{}, false, err
	}
	var ep domain.IdlingEpisode
	if err := json.Unmarshal([]byte(raw), &ep); err != nil {
		return domain.IdlingEpisode{}, false, &domain.CacheError{Op: "decode", Key: key, Err: err}
	}
	return ep, true, nil
}
