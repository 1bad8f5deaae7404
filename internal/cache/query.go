package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultQueryCacheSize bounds the number of cached queries
const DefaultQueryCacheSize = 20

// QueryEntry is a cached query result with the time it was stored
type QueryEntry[T any] struct {
	Result    T
	Timestamp time.Time
}

// Age returns how long ago the entry was stored
func (e QueryEntry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

// QueryCache is a bounded map of query results evicted in insertion order
// (FIFO). Reads do not refresh an entry's position, and overwriting an
// existing key keeps its original slot. Staleness is decided by the caller:
// entries carry their own timestamp and are never swept proactively.
type QueryCache[T any] struct {
	mu      sync.Mutex
	entries *orderedmap.OrderedMap[string, QueryEntry[T]]
	max     int
	now     func() time.Time
}

// NewQueryCache creates a FIFO cache holding at most maxEntries results
func NewQueryCache[T any](maxEntries int) *QueryCache[T] {
	if maxEntries <= 0 {
		maxEntries = DefaultQueryCacheSize
	}
	return &QueryCache[T]{
		entries: orderedmap.New[string, QueryEntry[T]](),
		max:     maxEntries,
		now:     time.Now,
	}
}

// SetClock overrides the time source used for entry timestamps
func (c *QueryCache[T]) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Get returns the entry stored under query, regardless of its age
func (c *QueryCache[T]) Get(query string) (QueryEntry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(QueryKey(query))
}

// Fresh returns the cached result when it is younger than maxAge
func (c *QueryCache[T]) Fresh(query string, maxAge time.Duration) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	entry, ok := c.entries.Get(QueryKey(query))
	if !ok || entry.Age(c.now()) >= maxAge {
		return zero, false
	}
	return entry.Result, true
}

// Put stores result under query, evicting the oldest entry when a new key
// would exceed the bound
func (c *QueryCache[T]) Put(query string, result T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := QueryKey(query)
	if _, exists := c.entries.Get(key); !exists {
		for c.entries.Len() >= c.max {
			oldest := c.entries.Oldest()
			if oldest == nil {
				break
			}
			c.entries.Delete(oldest.Key)
		}
	}

	c.entries.Set(key, QueryEntry[T]{Result: result, Timestamp: c.now()})
}

// Len returns the number of cached queries
func (c *QueryCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Clear drops every cached query
func (c *QueryCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = orderedmap.New[string, QueryEntry[T]]()
}

// QueryKey is the cache key for a raw query: lowercased and trimmed
func QueryKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// SmartSearchKey builds the composite key used for smart-search results.
// A pathway id takes precedence over the free-text query.
func SmartSearchKey(query, pathwayID string, age *int, gender string) string {
	ageStr := ""
	if age != nil {
		ageStr = fmt.Sprintf("%d", *age)
	}
	if pathwayID != "" {
		return QueryKey(fmt.Sprintf("pathway:%s:%s:%s", pathwayID, ageStr, gender))
	}
	return QueryKey(fmt.Sprintf("query:%s:%s:%s", query, ageStr, gender))
}
