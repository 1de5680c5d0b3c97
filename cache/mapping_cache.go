// Package cache provides process-wide, concurrency-safe caches used by the
// object store's storage engine.
package cache

import (
	"sync"
)

// MappingKey identifies a (client_id, namespace_id) pair.
type MappingKey struct {
	ClientID    string
	NamespaceID string
}

// MappingCache is a process-wide cache of Mapping Registry resolutions.
//
// Unlike a typical query cache, entries here are never evicted and never
// expire: a mapping between (client_id, namespace_id) and its physical
// table suffix is created once and never destroyed (see the Mapping
// lifecycle invariant), so a cached hit is valid for the lifetime of the
// process. The cache exists purely to avoid a database round trip on the
// common path, not for staleness control.
type MappingCache struct {
	mu      sync.RWMutex
	entries map[MappingKey]string

	// keyLocks stripes a mutex per in-flight resolve so that two
	// goroutines racing to provision the same (client_id, namespace_id)
	// within this process serialize instead of both attempting the
	// insert and relying on the database to reject the loser.
	lockMu   sync.Mutex
	keyLocks map[MappingKey]*sync.Mutex
}

// NewMappingCache creates an empty mapping cache.
func NewMappingCache() *MappingCache {
	return &MappingCache{
		entries:  make(map[MappingKey]string),
		keyLocks: make(map[MappingKey]*sync.Mutex),
	}
}

// Get returns the cached identifier for key, if present.
func (c *MappingCache) Get(key MappingKey) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	identifier, ok := c.entries[key]
	return identifier, ok
}

// Set stores the resolved identifier for key, replacing any earlier value.
// Set is idempotent when called twice with the same arguments.
func (c *MappingCache) Set(key MappingKey, identifier string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = identifier
}

// Lock acquires the per-key resolve lock for key and returns an unlock
// function. Callers hold this lock only while probing-and-inserting a
// mapping row that might not exist yet; cache hits never need it.
func (c *MappingCache) Lock(key MappingKey) func() {
	c.lockMu.Lock()
	keyLock, ok := c.keyLocks[key]
	if !ok {
		keyLock = &sync.Mutex{}
		c.keyLocks[key] = keyLock
	}
	c.lockMu.Unlock()

	keyLock.Lock()
	return keyLock.Unlock
}

// Len returns the number of cached mappings. Used by tests and diagnostics.
func (c *MappingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
