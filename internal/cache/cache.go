// Package cache memoizes entities fetched during a session and remembers
// whether the in-memory set is the whole collection.
package cache

import "sync"

// Cache maps ids to the last fetched snapshot of an entity.
//
// The completeness flag is raised only by a Put that carries a full listing
// and stays raised until Clear. Entries are returned in first-insertion order.
type Cache[K comparable, V any] struct {
	mu       sync.RWMutex
	keyOf    func(V) K
	entries  map[K]V
	order    []K
	complete bool
}

// New creates an empty cache; keyOf extracts an entity's id.
func New[K comparable, V any](keyOf func(V) K) *Cache[K, V] {
	return &Cache[K, V]{
		keyOf:   keyOf,
		entries: make(map[K]V),
	}
}

// Get is a pure lookup.
func (c *Cache[K, V]) Get(id K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[id]
	return v, ok
}

// GetAllIfComplete returns every cached entity, or ok=false when the cache
// has never held a full listing and the caller must fetch again.
func (c *Cache[K, V]) GetAllIfComplete() ([]V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.complete {
		return nil, false
	}
	all := make([]V, 0, len(c.order))
	for _, id := range c.order {
		all = append(all, c.entries[id])
	}
	return all, true
}

// Put upserts entities by id, last write wins. markComplete flags the cache
// as holding the full collection; a false value never lowers the flag.
func (c *Cache[K, V]) Put(entities []V, markComplete bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entities {
		id := c.keyOf(e)
		if _, exists := c.entries[id]; !exists {
			c.order = append(c.order, id)
		}
		c.entries[id] = e
	}
	if markComplete {
		c.complete = true
	}
}

// Missing returns the ids that are not cached, in first-seen order and
// without duplicates.
func (c *Cache[K, V]) Missing(ids []K) []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var missing []K
	seen := make(map[K]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := c.entries[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// Clear empties the cache and lowers the completeness flag.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]V)
	c.order = nil
	c.complete = false
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[K, V]) Complete() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.complete
}
