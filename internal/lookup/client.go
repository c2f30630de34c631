// Package lookup resolves device names and fault labels from the external
// catalog services, caching answers in the TTL store.
package lookup

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/store"
)

const (
	devicePrefix = "device_name"
	labelPrefix  = "fault_label"
	unknownLabel = "Unknown"
	maxAttempts  = 3
	maxBodyBytes = 1 << 20
)

type Options struct {
	DeviceURL    string
	FaultURL     string
	Timeout      time.Duration
	CacheTTL     time.Duration
	RetryInitial time.Duration
	RetryMax     time.Duration
}

type Client struct {
	http   *http.Client
	cache  store.Cache
	opts   Options
	logger *slog.Logger
}

func NewClient(opts Options, cache store.Cache, logger *slog.Logger) *Client {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 300 * time.Second
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 10 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: opts.Timeout},
		cache:  cache,
		opts:   opts,
		logger: logger,
	}
}

// DeviceName returns the display name registered for a device.
func (c *Client) DeviceName(ctx context.Context, deviceID string) (string, error) {
	return c.cached(ctx, devicePrefix, deviceID, func(ctx context.Context) (string, error) {
		var body struct {
			Name string `json:"name"`
		}
		if err := c.get(ctx, "device", deviceID, c.opts.DeviceURL, &body); err != nil {
			return "", err
		}
		if body.Name == "" {
			return "", &domain.LookupError{
				Resource:   "device",
				ID:         deviceID,
				StatusCode: http.StatusOK,
				Err:        errors.New("empty device name"),
			}
		}
		return body.Name, nil
	})
}

// FaultLabel returns the label for a fault code. The catalog answers with an
// object or a list of objects; a missing or non-string label reads as "Unknown".
func (c *Client) FaultLabel(ctx context.Context, faultCode string) (string, error) {
	return c.cached(ctx, labelPrefix, faultCode, func(ctx context.Context) (string, error) {
		var raw json.RawMessage
		if err := c.get(ctx, "fault", faultCode, c.opts.FaultURL, &raw); err != nil {
			return "", err
		}
		return parseLabel(raw), nil
	})
}

// InvalidateDevice drops the cached name so the next lookup hits the catalog.
func (c *Client) InvalidateDevice(ctx context.Context, deviceID string) error {
	return c.cache.Del(ctx, cacheKey(devicePrefix, deviceID))
}

func (c *Client) cached(ctx context.Context, prefix, arg string, fetch func(context.Context) (string, error)) (string, error) {
	key := cacheKey(prefix, arg)

	val, err := c.cache.Get(ctx, key)
	if err == nil {
		return val, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		c.logger.Warn("lookup cache read failed", "key", key, "error", err)
	}

	val, err = c.retry(ctx, fetch)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(ctx, key, val, c.opts.CacheTTL); err != nil {
		c.logger.Warn("lookup cache write failed", "key", key, "error", err)
	}
	return val, nil
}

func (c *Client) retry(ctx context.Context, fetch func(context.Context) (string, error)) (string, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.opts.RetryInitial
	exp.MaxInterval = c.opts.RetryMax
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, maxAttempts-1), ctx)

	return backoff.RetryWithData(func() (string, error) {
		val, err := fetch(ctx)
		if err == nil {
			return val, nil
		}
		var le *domain.LookupError
		if errors.As(err, &le) && !le.Retryable() {
			return "", backoff.Permanent(err)
		}
		return "", err
	}, policy)
}

func (c *Client) get(ctx context.Context, resource, id, base string, out any) error {
	endpoint := strings.TrimRight(base, "/") + "/" + url.PathEscape(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return backoff.Permanent(&domain.LookupError{Resource: resource, ID: id, Err: err})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.LookupError{Resource: resource, ID: id, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.LookupError{Resource: resource, ID: id, StatusCode: resp.StatusCode}
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		return &domain.LookupError{
			Resource:   resource,
			ID:         id,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return nil
}

func parseLabel(raw json.RawMessage) string {
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return unknownLabel
		}
		return labelOf(list[0])
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return labelOf(obj)
	}
	return unknownLabel
}

func labelOf(m map[string]any) string {
	if s, ok := m["label"].(string); ok {
		return s
	}
	return unknownLabel
}

// cacheKey hashes the JSON-encoded argument list, e.g. md5(`["truck-1"]`).
func cacheKey(prefix, arg string) string {
	args, _ := json.Marshal([]string{arg})
	sum := md5.Sum(args)
	return prefix + ":" + hex.EncodeToString(sum[:])
}
