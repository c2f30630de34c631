// Package pipeline drives one raw message through decoding, deduplication or
// reassembly, enrichment, persistence, alert dispatch and daily aggregation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/codec"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/fault"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/metrics"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/store"
)

type Status string

const (
	StatusProcessed Status = "processed"
	StatusPending   Status = "pending"
	StatusDuplicate Status = "duplicate"
	StatusFailed    Status = "failed"
)

// Result is the outcome of one message. Received and Total are set for
// pending faults; Err only for failures.
type Result struct {
	Status   Status
	DeviceID string
	Received int
	Total    int
	GPS      *domain.GPSEvent
	Fault    *domain.FaultEvent
	Summary  *domain.DailySummary
	Err      error
}

// Redeliverable reports whether a failed message might succeed on another
// delivery. Malformed payloads and broken fragment groups never will.
func (r Result) Redeliverable() bool {
	if r.Status != StatusFailed {
		return false
	}
	var de *domain.DecodeError
	var ie *domain.IncompleteAssemblyError
	return !errors.As(r.Err, &de) && !errors.As(r.Err, &ie)
}

type Names interface {
	DeviceName(ctx context.Context, deviceID string) (string, error)
	FaultLabel(ctx context.Context, faultCode string) (string, error)
}

type FragmentStore interface {
	AddFragment(ctx context.Context, f domain.FaultFragment) (int, error)
	Assemble(ctx context.Context, key string, total int) (string, []byte, error)
}

type SummaryUpdater interface {
	ProcessEvent(ctx context.Context, e domain.GPSEvent) (domain.DailySummary, error)
}

type IdlingTracker interface {
	ProcessEvent(ctx context.Context, e domain.GPSEvent) error
}

type Dispatcher interface {
	Dispatch(event domain.AlertEvent) bool
}

type Deps struct {
	Cache       store.Cache
	Sink        store.Sink
	Names       Names
	Fragments   FragmentStore
	Summaries   SummaryUpdater
	Idling      IdlingTracker
	Alerts      Dispatcher
	Logger      *slog.Logger
	GPSDedupTTL time.Duration
}

type Orchestrator struct {
	cache     store.Cache
	sink      store.Sink
	names     Names
	fragments FragmentStore
	summaries SummaryUpdater
	idling    IdlingTracker
	alerts    Dispatcher
	logger    *slog.Logger
	dedupTTL  time.Duration
	locks     *keyedMutex
}

func NewOrchestrator(d Deps) *Orchestrator {
	if d.GPSDedupTTL <= 0 {
		d.GPSDedupTTL = time.Hour
	}
	return &Orchestrator{
		cache:     d.Cache,
		sink:      d.Sink,
		names:     d.Names,
		fragments: d.Fragments,
		summaries: d.Summaries,
		idling:    d.Idling,
		alerts:    d.Alerts,
		logger:    d.Logger,
		dedupTTL:  d.GPSDedupTTL,
		locks:     newKeyedMutex(),
	}
}

type messageIDKey struct{}

// WithMessageID tags ctx so every log line for the message carries the id.
func WithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, messageIDKey{}, id)
}

func (o *Orchestrator) log(ctx context.Context) *slog.Logger {
	if id, ok := ctx.Value(messageIDKey{}).(string); ok {
		return o.logger.With("message_id", id)
	}
	return o.logger
}

func gpsEventKey(s domain.GPSSample) string {
	return fmt.Sprintf("gps_event:%s:%s", s.DeviceID, domain.TimeKey(s.Timestamp))
}

// HandleGPS processes one GPS payload. A payload already seen within the
// dedup window is reported as a duplicate and has no effect.
func (o *Orchestrator) HandleGPS(ctx context.Context, payload string) (res Result) {
	metrics.MessagesReceived.Add(1)
	defer o.recoverInto(ctx, &res)

	sample, err := codec.DecodeGPS(payload)
	if err != nil {
		return o.fail(ctx, "", "decode gps", err)
	}
	res.DeviceID = sample.DeviceID

	unlock := o.locks.Lock("gps:" + sample.DeviceID)
	defer unlock()

	key := gpsEventKey(sample)
	marked, err := o.cache.SetNX(ctx, key, "1", o.dedupTTL)
	switch {
	case err != nil:
		o.log(ctx).Warn("idempotency check failed, processing anyway", "key", key, "error", err)
	case !marked:
		metrics.GPSDuplicates.Add(1)
		o.log(ctx).Debug("duplicate gps event", "key", key)
		return Result{Status: StatusDuplicate, DeviceID: sample.DeviceID}
	}

	name, err := o.names.DeviceName(ctx, sample.DeviceID)
	if err != nil {
		o.release(ctx, marked, key)
		return o.fail(ctx, sample.DeviceID, "device name lookup", err)
	}

	event := domain.GPSEvent{GPSSample: sample, DeviceName: name}
	if err := o.sink.InsertGPSEvent(ctx, event); err != nil {
		metrics.SinkWriteFailures.Add(1)
		o.release(ctx, marked, key)
		return o.fail(ctx, sample.DeviceID, "persist gps event", err)
	}
	metrics.SinkWriteSuccess.Add(1)

	o.alerts.Dispatch(domain.NewGPSAlert(event))

	summary, err := o.summaries.ProcessEvent(ctx, event)
	if err != nil {
		return o.fail(ctx, sample.DeviceID, "update daily summary", err)
	}
	if err := o.idling.ProcessEvent(ctx, event); err != nil {
		return o.fail(ctx, sample.DeviceID, "update idling", err)
	}

	metrics.GPSProcessed.Add(1)
	return Result{Status: StatusProcessed, DeviceID: sample.DeviceID, GPS: &event, Summary: &summary}
}

// HandleFault records one fault fragment and, once the last one arrives,
// assembles, enriches, persists and dispatches the fault.
func (o *Orchestrator) HandleFault(ctx context.Context, payload string) (res Result) {
	metrics.MessagesReceived.Add(1)
	defer o.recoverInto(ctx, &res)

	frag, err := codec.DecodeFault(payload)
	if err != nil {
		return o.fail(ctx, "", "decode fault", err)
	}
	res.DeviceID = frag.DeviceID

	key := fault.BucketKey(frag)
	unlock := o.locks.Lock(key)
	defer unlock()

	received, err := o.fragments.AddFragment(ctx, frag)
	if err != nil {
		return o.fail(ctx, frag.DeviceID, "store fault fragment", err)
	}
	if received < frag.Total {
		metrics.FaultsPending.Add(1)
		return Result{Status: StatusPending, DeviceID: frag.DeviceID, Received: received, Total: frag.Total}
	}

	// Lookups run before assembly so a failed lookup leaves the bucket for redelivery.
	name, err := o.names.DeviceName(ctx, frag.DeviceID)
	if err != nil {
		return o.fail(ctx, frag.DeviceID, "device name lookup", err)
	}
	label, err := o.names.FaultLabel(ctx, frag.FaultCode)
	if err != nil {
		return o.fail(ctx, frag.DeviceID, "fault label lookup", err)
	}

	bits, data, err := o.fragments.Assemble(ctx, key, frag.Total)
	if err != nil {
		return o.fail(ctx, frag.DeviceID, "assemble fault", err)
	}
	metrics.FaultsAssembled.Add(1)

	event := domain.FaultEvent{
		DeviceID:   frag.DeviceID,
		DeviceName: name,
		Timestamp:  frag.Timestamp,
		FaultCode:  frag.FaultCode,
		FaultLabel: label,
		Bits:       bits,
		Payload:    data,
	}
	if err := o.sink.InsertFaultEvent(ctx, event); err != nil {
		metrics.SinkWriteFailures.Add(1)
		return o.fail(ctx, frag.DeviceID, "persist fault event", err)
	}
	metrics.SinkWriteSuccess.Add(1)

	o.alerts.Dispatch(domain.NewFaultAlert(event))

	return Result{Status: StatusProcessed, DeviceID: frag.DeviceID, Received: received, Total: frag.Total, Fault: &event}
}

func (o *Orchestrator) release(ctx context.Context, marked bool, key string) {
	if !marked {
		return
	}
	if err := o.cache.Del(context.WithoutCancel(ctx), key); err != nil {
		o.log(ctx).Warn("failed to release idempotency key", "key", key, "error", err)
	}
}

func (o *Orchestrator) fail(ctx context.Context, deviceID, stage string, err error) Result {
	metrics.MessagesFailed.Add(1)
	var de *domain.DecodeError
	if errors.As(err, &de) {
		metrics.DecodeErrors.Add(1)
	}
	o.log(ctx).Error("message failed", "stage", stage, "device_id", deviceID, "error", err)
	return Result{Status: StatusFailed, DeviceID: deviceID, Err: fmt.Errorf("%s: %w", stage, err)}
}

// recoverInto turns a panic into a failed result. res.DeviceID is set once the
// payload decodes, so it survives the unwind.
func (o *Orchestrator) recoverInto(ctx context.Context, res *Result) {
	if r := recover(); r != nil {
		*res = o.fail(ctx, res.DeviceID, "panic", fmt.Errorf("%v", r))
	}
}
