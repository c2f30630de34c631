package amqp

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/pipeline"
)

type recordingAcker struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (r *recordingAcker) Ack(uint64, bool) error { r.acked = true; return nil }

func (r *recordingAcker) Nack(_ uint64, _ bool, requeue bool) error {
	r.nacked, r.requeue = true, requeue
	return nil
}

func (r *recordingAcker) Reject(_ uint64, requeue bool) error {
	r.nacked, r.requeue = true, requeue
	return nil
}

func TestSettle(t *testing.T) {
	lookupDown := &domain.LookupError{Resource: "device", StatusCode: 503}
	malformed := &domain.DecodeError{Kind: "gps", Reason: "bad base64"}

	tests := []struct {
		name        string
		res         pipeline.Result
		redelivered bool
		wantAck     bool
		wantRequeue bool
	}{
		{"processed", pipeline.Result{Status: pipeline.StatusProcessed}, false, true, false},
		{"pending fragment", pipeline.Result{Status: pipeline.StatusPending}, false, true, false},
		{"duplicate", pipeline.Result{Status: pipeline.StatusDuplicate}, true, true, false},
		{"transient first delivery", pipeline.Result{Status: pipeline.StatusFailed, Err: lookupDown}, false, false, true},
		{"transient redelivered", pipeline.Result{Status: pipeline.StatusFailed, Err: lookupDown}, true, false, false},
		{"malformed", pipeline.Result{Status: pipeline.StatusFailed, Err: malformed}, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acker := &recordingAcker{}
			d := amqp.Delivery{Acknowledger: acker, DeliveryTag: 7, Redelivered: tt.redelivered}
			if err := settle(d, tt.res); err != nil {
				t.Fatal(err)
			}
			if acker.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", acker.acked, tt.wantAck)
			}
			if !tt.wantAck && (!acker.nacked || acker.requeue != tt.wantRequeue) {
				t.Errorf("nacked = %v requeue = %v, want requeue %v", acker.nacked, acker.requeue, tt.wantRequeue)
			}
		})
	}
}

func TestNewConsumerDefaults(t *testing.T) {
	c := NewConsumer(Config{URL: "amqp://localhost"}, nil)
	if c.cfg.Prefetch != 50 || c.cfg.DrainTimeout <= 0 {
		t.Errorf("defaults = %+v", c.cfg)
	}
}
