// Package vault stores account credentials behind an in-memory cache.
//
// Keys are scoped per account. The session key is held in an encrypted
// backend; the org identifier is not sensitive and goes to a faster
// plaintext backend. Callers see one uniform contract — the backend split
// is a storage selection strategy, not part of the interface.
package vault

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by backends when a key has no stored value.
var ErrNotFound = errors.New("secret not found")

// Backend is a raw key/value secret store.
type Backend interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Field names in use. The values double as storage key suffixes, so they
// must stay stable across releases.
const (
	FieldSessionKey = "sessionKey"
	FieldOrgID      = "orgId"
)

// Vault is a scoped credential store with a write-through memory cache.
// Writes hit the cache before the backend so a concurrent reader never
// observes a stale miss after a completed save.
type Vault struct {
	mu     sync.RWMutex
	cache  map[string]string
	secure Backend
	meta   Backend
}

// New creates a vault over an encrypted backend for sensitive fields and a
// plaintext backend for non-sensitive metadata fields.
func New(secure, meta Backend) *Vault {
	return &Vault{
		cache:  make(map[string]string),
		secure: secure,
		meta:   meta,
	}
}

// scopedKey namespaces a field by account. An empty scope addresses the
// legacy single-account keys that predate scoping.
func scopedKey(scope, field string) string {
	if scope == "" {
		return field
	}
	return scope + "-" + field
}

func (v *Vault) backendFor(field string) Backend {
	if field == FieldOrgID {
		return v.meta
	}
	return v.secure
}

// Save writes a credential. The cache is updated first; a backend failure
// leaves the cached value in place for the rest of the process, so the
// save is best-effort with respect to persistence. The error is returned
// for logging only.
func (v *Vault) Save(scope, field, value string) error {
	key := scopedKey(scope, field)

	v.mu.Lock()
	v.cache[key] = value
	v.mu.Unlock()

	return v.backendFor(field).Set(key, value)
}

// Read returns a credential, trying the cache before the backend. A
// backend hit populates the cache for subsequent reads.
func (v *Vault) Read(scope, field string) (string, bool) {
	key := scopedKey(scope, field)

	v.mu.RLock()
	value, ok := v.cache[key]
	v.mu.RUnlock()
	if ok {
		return value, true
	}

	value, err := v.backendFor(field).Get(key)
	if err != nil {
		return "", false
	}

	v.mu.Lock()
	v.cache[key] = value
	v.mu.Unlock()
	return value, true
}

// Delete removes a credential from cache and backend.
func (v *Vault) Delete(scope, field string) error {
	key := scopedKey(scope, field)

	v.mu.Lock()
	delete(v.cache, key)
	v.mu.Unlock()

	err := v.backendFor(field).Delete(key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
