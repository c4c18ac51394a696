package services

import (
	"sync"
	"time"

	domain "github.com/feedlens/api/internal/domain"
)

// productCache holds the full normalized product list per account for a
// bounded lifetime. Entries never refresh themselves; expiry is checked on
// read and the caller refetches on a miss. Expired entries stay in place
// until a refetch supersedes them or an access failure invalidates them,
// so callers can tell a cold account from a stale one.
type productCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	products []domain.Product
	storedAt time.Time
}

func newProductCache(ttl time.Duration, clock func() time.Time) *productCache {
	if clock == nil {
		clock = time.Now
	}
	return &productCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cacheEntry),
	}
}

func (c *productCache) get(accountID string) ([]domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[accountID]
	if !ok || c.clock().Sub(entry.storedAt) >= c.ttl {
		return nil, false
	}
	return entry.products, true
}

// has reports whether any entry exists for the account, expired or not.
func (c *productCache) has(accountID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[accountID]
	return ok
}

func (c *productCache) put(accountID string, products []domain.Product) {
	c.mu.Lock()
	c.entries[accountID] = cacheEntry{products: products, storedAt: c.clock()}
	c.mu.Unlock()
}

func (c *productCache) invalidate(accountID string) {
	c.mu.Lock()
	delete(c.entries, accountID)
	c.mu.Unlock()
}
