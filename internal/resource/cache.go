package resource

import (
	"sync"

	"github.com/Faultbox/collider/internal/shape"
	"go.uber.org/multierr"
)

// Key identifies a cached shape.
type Key struct {
	Name  string
	Group string
}

func (k Key) String() string {
	return k.Group + ":" + k.Name
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries int
	Hits    int
	Misses  int
	Builds  int
}

// Cache holds built shapes by key. It owns the shapes it holds.
type Cache struct {
	data map[Key]*shape.Result
	mu   sync.RWMutex

	hits   int
	misses int
	builds int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[Key]*shape.Result),
	}
}

// Get looks up a shape and counts the hit or miss.
func (c *Cache) Get(key Key) (*shape.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return res, ok
}

// peek looks up a shape without touching the counters.
func (c *Cache) peek(key Key) (*shape.Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.data[key]
	return res, ok
}

// Set stores a freshly built shape.
func (c *Cache) Set(key Key, res *shape.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = res
	c.builds++
}

// Remove drops and releases one shape.
func (c *Cache) Remove(key Key) (bool, error) {
	c.mu.Lock()
	res, ok := c.data[key]
	delete(c.data, key)
	c.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, res.Close()
}

// Keys returns the cached keys in no particular order.
func (c *Cache) Keys() []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]Key, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	return keys
}

// Clear releases every shape and resets the counters.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	for _, res := range c.data {
		err = multierr.Append(err, res.Close())
	}
	c.data = make(map[Key]*shape.Result)
	c.hits = 0
	c.misses = 0
	c.builds = 0
	return err
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries: len(c.data),
		Hits:    c.hits,
		Misses:  c.misses,
		Builds:  c.builds,
	}
}
