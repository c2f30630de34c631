package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by cache reads when the key is absent.
var ErrNotFound = errors.New("not found")

type DecodeError struct {
	Kind    string
	Payload string
	Reason  string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s payload %q: %s: %v", e.Kind, e.Payload, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s payload %q: %s", e.Kind, e.Payload, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IncompleteAssemblyError means assembly was attempted before every sequence index arrived.
type IncompleteAssemblyError struct {
	Key     string
	Missing []int
}

func (e *IncompleteAssemblyError) Error() string {
	return fmt.Sprintf("incomplete assembly for %s: missing sequences %v", e.Key, e.Missing)
}

type LookupError struct {
	Resource   string
	ID         string
	StatusCode int
	Err        error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lookup %s %q: %v", e.Resource, e.ID, e.Err)
	}
	return fmt.Sprintf("lookup %s %q: status %d", e.Resource, e.ID, e.StatusCode)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Retryable reports whether the failure was rate limiting, a server error or a
// transport error (no status at all).
func (e *LookupError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == 0 && e.Err != nil:
		return true
	}
	return false
}

// CacheError wraps a failure talking to the TTL store.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

type PersistenceError struct {
	Entity string
	Key    string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Entity, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
