package settings

import "sync"

// Cache is the process-wide view of the configuration document. Once
// populated it is authoritative: nothing compares it against the stored
// document, so it only changes through Replace, Merge or Clear.
type Cache struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{values: make(map[string]string)}
}

// Lookup returns the cached value for key.
func (c *Cache) Lookup(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// Snapshot returns a copy of every cached pair.
func (c *Cache) Snapshot() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Merge adds values to the cache, overwriting keys already present.
func (c *Cache) Merge(values map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range values {
		c.values[k] = v
	}
}

// Replace discards the cache and fills it with values.
func (c *Cache) Replace(values map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]string, len(values))
	for k, v := range values {
		c.values[k] = v
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.Replace(nil)
}
