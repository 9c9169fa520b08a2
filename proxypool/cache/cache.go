package cache

import (
	"sync"
	"time"

	"proxypool_nexus/internal/shared/logger"
)

// Entry records the outcome of one validation attempt.
type Entry struct {
	Valid    bool
	TestedAt time.Time
}

// Fresh reports whether the entry is still within the TTL window at the
// given instant. An entry past its TTL must be treated as absent even if a
// sweep has not physically removed it yet.
func (e Entry) Fresh(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.TestedAt) < ttl
}

// ResultCache memoizes validation outcomes per candidate key so recently
// tested candidates are not re-probed. Concurrent Put on the same key is
// last-write-wins, which is harmless: both writers agree on the candidate's
// validity at roughly the same instant.
type ResultCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty cache with the given TTL.
func New(ttl time.Duration) *ResultCache {
	return &ResultCache{
		ttl:     ttl,
		entries: make(map[string]Entry),
	}
}

// Get returns the entry for key, fresh or not. Callers must re-check
// freshness with Fresh rather than trusting presence alone.
func (c *ResultCache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Put records a validation outcome for key, stamped with the current time.
func (c *ResultCache) Put(key string, valid bool) {
	c.mu.Lock()
	c.entries[key] = Entry{Valid: valid, TestedAt: time.Now()}
	c.mu.Unlock()
}

// FreshValid returns up to limit keys whose entries are fresh and marked
// valid. A limit <= 0 means no limit. The result is a hint only; proxies
// can die between tests, so callers re-validate before trusting a key.
func (c *ResultCache) FreshValid(limit int) []string {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0)
	for key, e := range c.entries {
		if !e.Valid || !e.Fresh(c.ttl, now) {
			continue
		}
		keys = append(keys, key)
		if limit > 0 && len(keys) >= limit {
			break
		}
	}
	return keys
}

// SweepExpired deletes every entry older than the TTL and returns how many
// were removed. It is idempotent and safe to call at any time.
func (c *ResultCache) SweepExpired() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if !e.Fresh(c.ttl, now) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		l := logger.WithComponent("ProxyPool/Cache")
		l.Debug().Int("removed", removed).Msg("Swept expired cache entries.")
	}
	return removed
}

// Len returns the number of physically present entries, stale ones included.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
