// Package cache implements the thread-safe fingerprint->module map every
// Loader tier owns: hit/miss/eviction counters, an iteration callback, and
// an LRU trim that never evicts a module with a non-zero reference count.
package cache

import (
	"sort"
	"time"

	"github.com/sunholo/quillmod/internal/module"
	"github.com/sunholo/quillmod/internal/platform"
)

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is a path -> *module.Module map guarded by a reader-writer lock:
// Put/Remove/Clear/Trim take the writer lock and Iterate/GetStats take the
// reader lock. Get does its lookup under the reader lock, then takes the
// writer lock briefly to update the hit/miss counters.
type Cache struct {
	mu      platform.RWMutex
	entries map[string]*module.Module

	hits      uint64
	misses    uint64
	evictions uint64
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*module.Module)}
}

// Put inserts or replaces the entry for path.
func (c *Cache) Put(path string, m *module.Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = m
}

// Get looks up path, updating the module's last-access time and the hit/
// miss counters on return.
func (c *Cache) Get(path string) (*module.Module, bool) {
	c.mu.RLock()
	m, ok := c.entries[path]
	c.mu.RUnlock()

	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	if ok {
		m.Touch(time.Now().UnixNano())
	}
	return m, ok
}

// Remove deletes path's entry, if present.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*module.Module)
}

// Iterate calls fn for every entry while holding the reader lock. Callers
// must not call back into Put/Remove/Clear/Trim from fn, and must not use
// Iterate from within a load/unload (it would deadlock against the writer
// lock those hold).
func (c *Cache) Iterate(fn func(path string, m *module.Module)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for path, m := range c.entries {
		fn(path, m)
	}
}

// Snapshot returns a copy of the current path->module entries, safe to
// range over after Iterate's lock has been released (used by unload_all,
// which must not mutate the cache while iterating it).
func (c *Cache) Snapshot() map[string]*module.Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*module.Module, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetStats returns a snapshot of the hit/miss/eviction counters.
func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Size: len(c.entries), Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
}

type agedEntry struct {
	path string
	m    *module.Module
}

// Trim reduces the cache to at most maxSize entries, evicting the oldest
// (by last-access time) first. An entry whose module has a non-zero
// reference count is never evicted, even if that means the cache stays
// above maxSize.
func (c *Cache) Trim(maxSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) <= maxSize {
		return
	}

	aged := make([]agedEntry, 0, len(c.entries))
	for path, m := range c.entries {
		aged = append(aged, agedEntry{path: path, m: m})
	}
	sort.Slice(aged, func(i, j int) bool {
		return aged[i].m.LastAccess() < aged[j].m.LastAccess()
	})

	for _, e := range aged {
		if len(c.entries) <= maxSize {
			break
		}
		if e.m.RefCount() != 0 {
			continue
		}
		delete(c.entries, e.path)
		c.evictions++
	}
}
