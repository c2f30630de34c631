package alerting

import (
	"context"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/store"
)

// Suppressor drops repeats of a fault code inside the window carried in the
// last two bytes of the fault payload (big-endian seconds).
type Suppressor struct {
	cache  store.Cache
	logger *slog.Logger
}

func NewSuppressor(cache store.Cache, logger *slog.Logger) *Suppressor {
	return &Suppressor{cache: cache, logger: logger}
}

func suppressionKey(faultCode string) string {
	return "suppression:" + faultCode
}

// Window decodes the suppression window from a payload. Payloads shorter than
// two bytes carry no window.
func Window(payload []byte) time.Duration {
	if len(payload) < 2 {
		return 0
	}
	secs := binary.BigEndian.Uint16(payload[len(payload)-2:])
	return time.Duration(secs) * time.Second
}

// Suppressed reports whether an earlier occurrence of faultCode still holds
// the window open. The first occurrence opens it. A zero window never
// suppresses, and cache failures are logged and treated as not suppressed.
func (s *Suppressor) Suppressed(ctx context.Context, faultCode string, payload []byte) bool {
	window := Window(payload)
	if window <= 0 {
		return false
	}

	key := suppressionKey(faultCode)
	opened, err := s.cache.SetNX(ctx, key, "suppressed", window)
	if err != nil {
		s.logger.Error("suppression check failed, not suppressing", "fault_code", faultCode, "error", err)
		return false
	}
	if !opened {
		s.logger.Info("fault suppressed", "fault_code", faultCode, "window", window)
		return true
	}
	s.logger.Info("suppression window started", "fault_code", faultCode, "window", window)
	return false
}
