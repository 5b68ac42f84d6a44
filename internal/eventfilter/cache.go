package eventfilter

import (
	"github.com/google/uuid"
	"github.com/maypok86/otter"
)

// CompiledFilter pairs a validated ContentFilter with the select clauses it
// was registered alongside, keyed by a synthetic cache key rather than the
// filter's own contents: two EventFilters with identical byte contents from
// different MonitoredItems are still cached independently, matching the
// per-subscription lifecycle a real EventFilter has.
type CompiledFilter struct {
	SelectClauses []SimpleAttributeOperand
	Where         ContentFilter
}

// Cache is a bounded, thread-safe table of compiled EventFilters, avoiding
// re-validating the same filter on every event evaluation. Bounded LRU
// eviction is handled by otter, mirroring the teacher's per-domain latency
// table.
type Cache struct {
	cache otter.Cache[string, *CompiledFilter]
}

// NewCache creates a Cache bounded to maxEntries compiled filters.
func NewCache(maxEntries int) *Cache {
	cache, err := otter.MustBuilder[string, *CompiledFilter](maxEntries).
		Cost(func(_ string, _ *CompiledFilter) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("eventfilter: failed to create compiled filter cache: " + err.Error())
	}
	return &Cache{cache: cache}
}

// NewKey returns a fresh opaque cache key for a newly registered filter.
func NewKey() string {
	return uuid.New().String()
}

// Put stores a compiled filter under key, evicting the least recently used
// entry if the cache is at capacity.
func (c *Cache) Put(key string, cf *CompiledFilter) {
	c.cache.Set(key, cf)
}

// Get returns the compiled filter for key, if still cached.
func (c *Cache) Get(key string) (*CompiledFilter, bool) {
	return c.cache.Get(key)
}

// Delete removes a compiled filter, e.g. when its MonitoredItem is deleted.
func (c *Cache) Delete(key string) {
	c.cache.Delete(key)
}

// Close releases resources held by the underlying cache.
func (c *Cache) Close() {
	c.cache.Close()
}
