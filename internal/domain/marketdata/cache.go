package marketdata

import (
	"strings"
	"sync"
	"time"
)

// Caches are instance-scoped and injected into the pipeline rather than
// living as package globals: two concurrent imports share one cache object
// safely, and tests get a fresh one each.

// QuoteCache memoizes symbol lookups for the lifetime of the process
// (swept periodically by the janitor).
type QuoteCache struct {
	mu      sync.RWMutex
	entries map[string]Quote
}

// NewQuoteCache returns an empty quote cache.
func NewQuoteCache() *QuoteCache {
	return &QuoteCache{entries: make(map[string]Quote)}
}

// Get returns the cached quote for symbol, if any.
func (c *QuoteCache) Get(symbol string) (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.entries[strings.ToUpper(symbol)]
	return q, ok
}

// Put stores a quote under its symbol.
func (c *QuoteCache) Put(q Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[strings.ToUpper(q.Symbol)] = q
}

// Purge drops every entry.
func (c *QuoteCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Quote)
}

// Len reports the number of cached quotes.
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RateCache memoizes FX rates keyed by "CUR:YYYY-MM-DD".
type RateCache struct {
	mu      sync.RWMutex
	entries map[string]float64
}

// NewRateCache returns an empty rate cache.
func NewRateCache() *RateCache {
	return &RateCache{entries: make(map[string]float64)}
}

// Key builds the cache key for a currency/date pair.
func (c *RateCache) Key(currency string, date time.Time) string {
	return strings.ToUpper(currency) + ":" + date.Format("2006-01-02")
}

// Get returns the cached rate for the key, if any.
func (c *RateCache) Get(key string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	return r, ok
}

// Put stores a rate under the key.
func (c *RateCache) Put(key string, rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = rate
}

// Purge drops every entry.
func (c *RateCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]float64)
}

// Len reports the number of cached rates.
func (c *RateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
