// Package cache provides the process-wide TTL key/value store shared by the
// analytics and recommendation layers.
//
// Expiry is lazy: an entry past its TTL is logically absent, and is dropped
// the next time Get or Has touches it. No janitor goroutine is started.
package cache

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// DefaultTTL applies when Set is called with a non-positive ttl.
	DefaultTTL = 30 * time.Minute
	// AnalyticsTTL is the shorter lifetime of volatile aggregate entries.
	AnalyticsTTL = 5 * time.Minute
)

// entry carries its own deadline so expiry follows the cache's clock.
type entry struct {
	value   any
	expires time.Time
}

// Cache is safe for concurrent use. go-cache guards the map; mu orders
// writes against lazy eviction so a fresh Set is never evicted.
type Cache struct {
	store      *gocache.Cache
	defaultTTL time.Duration
	mu         sync.Mutex
	now        func() time.Time
}

// New creates a cache. A non-positive defaultTTL falls back to DefaultTTL.
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	// A cleanup interval of 0 disables go-cache's janitor.
	return &Cache{
		store:      gocache.New(gocache.NoExpiration, 0),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Set stores data under key. ttl <= 0 means the cache's default TTL.
func (c *Cache) Set(key string, data any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	e := &entry{value: data, expires: c.now().Add(ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Set(key, e, gocache.NoExpiration)
}

// Get returns the value for key if it has not expired.
func (c *Cache) Get(key string) (any, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	if !c.now().After(e.expires) {
		return e.value, true
	}
	c.evict(key, e)
	return nil, false
}

// evict drops key only if it still holds the expired entry e.
func (c *Cache) evict(key string, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.store.Get(key); ok && cur.(*entry) == e {
		c.store.Delete(key)
	}
}

// Has reports whether Get would return a value.
func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}

func (c *Cache) Clear() {
	c.store.Flush()
}

// Len counts physically present entries, expired ones included.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}

// Lookup is a typed Get. A value of the wrong type is treated as absent.
func Lookup[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// StylePreviewKey is the key for a rendered preview image URL of a style.
func StylePreviewKey(styleID string) string {
	return "style_preview_" + styleID
}

// StyleCombinationKey is the key for a combined style result. Ids are
// sorted so that the key does not depend on selection order; a non-zero
// ratio is appended.
func StyleCombinationKey(styleIDs []string, ratio float64) string {
	ids := slices.Clone(styleIDs)
	slices.Sort(ids)
	key := "style_combination_" + strings.Join(ids, "_")
	if ratio != 0 {
		key += fmt.Sprintf("_%g", ratio)
	}
	return key
}
