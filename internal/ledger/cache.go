package ledger

import (
	"sync"
	"time"

	"github.com/bitcoinuniversity/invest/internal/domain"
)

const defaultCacheTTL = 30 * time.Second

type cacheKey struct {
	wallet domain.Identity
	limit  int
}

type cacheEntry struct {
	receipts  []Receipt
	expiresAt time.Time
}

type investmentCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[cacheKey]cacheEntry
}

func newInvestmentCache(ttl time.Duration) *investmentCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &investmentCache{
		ttl:     ttl,
		entries: make(map[cacheKey]cacheEntry),
	}
}

func (c *investmentCache) get(key cacheKey) ([]Receipt, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.receipts, true
}

func (c *investmentCache) set(key cacheKey, receipts []Receipt) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		receipts:  receipts,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// invalidate drops every cached view of the wallet's investments.
func (c *investmentCache) invalidate(wallet domain.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if key.wallet == wallet {
			delete(c.entries, key)
		}
	}
}
