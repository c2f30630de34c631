package auth

import (
	"context"
	"sync"
	"time"
)

// KeyStore resolves an ingest API key to the device or client it was issued to.
type KeyStore interface {
	GetAPIKey(ctx context.Context, apiKey string) (string, error)
}

type cacheEntry struct {
	owner     string
	expiresAt time.Time
}

type Authenticator struct {
	localCache sync.Map
	keys       KeyStore
	ttl        time.Duration
	staticKeys map[string]bool
	now        func() time.Time
}

func NewAuthenticator(keys KeyStore, staticKeys []string, ttl time.Duration) *Authenticator {
	static := make(map[string]bool, len(staticKeys))
	for _, k := range staticKeys {
		if k != "" {
			static[k] = true
		}
	}

	return &Authenticator{
		keys:       keys,
		ttl:        ttl,
		staticKeys: static,
		now:        time.Now,
	}
}

func (a *Authenticator) Validate(ctx context.Context, apiKey string) bool {
	// Level 0: static config keys
	if a.staticKeys[apiKey] {
		return true
	}

	// Level 1: in-memory cache
	if raw, ok := a.localCache.Load(apiKey); ok {
		entry := raw.(cacheEntry)
		if a.now().Before(entry.expiresAt) {
			return true
		}
		a.localCache.Delete(apiKey)
	}

	// Level 2: key store lookup
	if a.keys == nil {
		return false
	}
	owner, err := a.keys.GetAPIKey(ctx, apiKey)
	if err != nil || owner == "" {
		return false
	}

	a.localCache.Store(apiKey, cacheEntry{
		owner:     owner,
		expiresAt: a.now().Add(a.ttl),
	})

	return true
}
