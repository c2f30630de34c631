// Package fault collects multi-part fault fragments in the TTL store and
// reassembles them into a byte payload once every part has arrived.
package fault

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/store"
)

const DefaultBucketTTL = time.Hour

type Reassembler struct {
	cache  store.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewReassembler(cache store.Cache, ttl time.Duration, logger *slog.Logger) *Reassembler {
	if ttl <= 0 {
		ttl = DefaultBucketTTL
	}
	return &Reassembler{cache: cache, ttl: ttl, logger: logger}
}

// BucketKey names the hash that collects fragments of one fault occurrence.
func BucketKey(f domain.FaultFragment) string {
	return fmt.Sprintf("fault_parts:%s:%s:%s", f.DeviceID, f.FaultCode, domain.TimeKey(f.Timestamp))
}

// AddFragment records the fragment's chunk under its sequence index and returns
// how many distinct indices the bucket now holds. Redelivery of an index
// overwrites it without changing the count.
func (r *Reassembler) AddFragment(ctx context.Context, f domain.FaultFragment) (int, error) {
	n, err := r.cache.HSetCount(ctx, BucketKey(f), strconv.Itoa(f.Sequence), f.Bits, r.ttl)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Assemble concatenates the chunks of [0, total) in index order and packs each
// chunk into one byte. The bucket is deleted once assembled or when a chunk is
// not binary.
func (r *Reassembler) Assemble(ctx context.Context, key string, total int) (string, []byte, error) {
	fields, err := r.cache.HGetAll(ctx, key)
	if err != nil {
		return "", nil, err
	}

	chunks := make([]string, total)
	var missing []int
	for i := 0; i < total; i++ {
		bits, ok := fields[strconv.Itoa(i)]
		if !ok {
			missing = append(missing, i)
			continue
		}
		chunks[i] = bits
	}
	if len(missing) > 0 {
		return "", nil, &domain.IncompleteAssemblyError{Key: key, Missing: missing}
	}

	payload := make([]byte, total)
	for i, bits := range chunks {
		b, err := strconv.ParseUint(bits, 2, 8)
		if err != nil {
			r.drop(ctx, key)
			return "", nil, &domain.DecodeError{
				Kind:    "fault",
				Payload: bits,
				Reason:  fmt.Sprintf("sequence %d is not an 8-bit binary chunk", i),
				Err:     err,
			}
		}
		payload[i] = byte(b)
	}

	r.drop(ctx, key)
	return strings.Join(chunks, ""), payload, nil
}

func (r *Reassembler) drop(ctx context.Context, key string) {
	if err := r.cache.Del(ctx, key); err != nil {
		r.logger.Warn("failed to delete fault bucket", "key", key, "error", err)
	}
}
