package fault

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/store"
)

func newTestReassembler(t *testing.T) (*Reassembler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := store.NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	return NewReassembler(cache, 0, slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func fragments(chunks ...string) []domain.FaultFragment {
	ts := time.Unix(1700000000, 0).UTC()
	out := make([]domain.FaultFragment, len(chunks))
	for i, c := range chunks {
		out[i] = domain.FaultFragment{
			DeviceID:  "truck-1",
			Timestamp: ts,
			Bits:      c,
			FaultCode: "17",
			Sequence:  i,
			Total:     len(chunks),
		}
	}
	return out
}

func TestAssembleOrderInvariant(t *testing.T) {
	parts := fragments("00000001", "00000010", "11111111")
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}, {2, 0, 1}}

	for _, order := range orders {
		r, mr := newTestReassembler(t)
		ctx := context.Background()

		var count int
		for _, idx := range order {
			n, err := r.AddFragment(ctx, parts[idx])
			if err != nil {
				t.Fatalf("AddFragment: %v", err)
			}
			count = n
		}
		if count != 3 {
			t.Fatalf("order %v: count = %d, want 3", order, count)
		}

		key := BucketKey(parts[0])
		bits, payload, err := r.Assemble(ctx, key, 3)
		if err != nil {
			t.Fatalf("order %v: Assemble: %v", order, err)
		}
		if bits != "000000010000001011111111" {
			t.Errorf("order %v: bits = %q", order, bits)
		}
		if !reflect.DeepEqual(payload, []byte{0x01, 0x02, 0xFF}) {
			t.Errorf("order %v: payload = %v", order, payload)
		}
		if mr.Exists(key) {
			t.Errorf("order %v: bucket not deleted", order)
		}
	}
}

func TestAddFragmentDuplicateIndex(t *testing.T) {
	r, _ := newTestReassembler(t)
	ctx := context.Background()
	parts := fragments("00000001", "00000010")

	for _, f := range []domain.FaultFragment{parts[0], parts[0], parts[0]} {
		n, err := r.AddFragment(ctx, f)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("count = %d, want 1", n)
		}
	}
}

func TestAddFragmentTTL(t *testing.T) {
	r, mr := newTestReassembler(t)
	parts := fragments("00000001", "00000010")
	if _, err := r.AddFragment(context.Background(), parts[1]); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL(BucketKey(parts[1])); ttl != DefaultBucketTTL {
		t.Errorf("ttl = %v, want %v", ttl, DefaultBucketTTL)
	}
}

func TestAssembleMissingIndex(t *testing.T) {
	r, mr := newTestReassembler(t)
	ctx := context.Background()
	parts := fragments("00000001", "00000010", "00000011", "00000100")

	r.AddFragment(ctx, parts[0])
	r.AddFragment(ctx, parts[2])

	key := BucketKey(parts[0])
	_, _, err := r.Assemble(ctx, key, 4)
	var ie *domain.IncompleteAssemblyError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want IncompleteAssemblyError", err)
	}
	if !reflect.DeepEqual(ie.Missing, []int{1, 3}) {
		t.Errorf("missing = %v, want [1 3]", ie.Missing)
	}
	if !mr.Exists(key) {
		t.Errorf("incomplete bucket should be kept")
	}
}

func TestAssembleNonBinaryChunk(t *testing.T) {
	r, mr := newTestReassembler(t)
	ctx := context.Background()
	parts := fragments("00000001", "0000201x")

	for _, f := range parts {
		r.AddFragment(ctx, f)
	}
	key := BucketKey(parts[0])
	_, _, err := r.Assemble(ctx, key, 2)
	var de *domain.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want DecodeError", err)
	}
	if mr.Exists(key) {
		t.Errorf("bucket should be dropped")
	}
}

func TestBucketKeySeparatesOccurrences(t *testing.T) {
	a := fragments("00000001")[0]
	b := a
	b.Timestamp = a.Timestamp.Add(time.Second)
	c := a
	c.FaultCode = "18"
	if BucketKey(a) == BucketKey(b) || BucketKey(a) == BucketKey(c) {
		t.Errorf("keys collide: %s %s %s", BucketKey(a), BucketKey(b), BucketKey(c))
	}
}
