// Package cache keeps the last balances fetched for an account so they can
// be shown, marked stale, when the chain endpoint is unreachable.
package cache

import (
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultStaleness is the age after which an entry is reported as stale.
const DefaultStaleness = 5 * time.Minute

// BalanceCache stores cached balances keyed by chain, holder and token.
type BalanceCache struct {
	mu      sync.RWMutex                 `json:"-"`
	Entries map[string]BalanceCacheEntry `json:"entries"`
}

// BalanceCacheEntry is one cached balance in base units. Token is the zero
// address for the native coin.
type BalanceCacheEntry struct {
	ChainID   uint64         `json:"chain_id"`
	Address   common.Address `json:"address"`
	Token     common.Address `json:"token"`
	Balance   string         `json:"balance"`
	Symbol    string         `json:"symbol"`
	Decimals  int            `json:"decimals"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Amount parses Balance. A malformed value reads as zero.
func (e *BalanceCacheEntry) Amount() *big.Int {
	v, ok := new(big.Int).SetString(e.Balance, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

// NewBalanceCache creates a new empty balance cache.
func NewBalanceCache() *BalanceCache {
	return &BalanceCache{
		Entries: make(map[string]BalanceCacheEntry),
	}
}

// Key generates a cache key.
func Key(chainID uint64, address, token common.Address) string {
	key := strconv.FormatUint(chainID, 10) + ":" + address.Hex()
	if token != (common.Address{}) {
		key += ":" + token.Hex()
	}
	return key
}

// Get retrieves a cached entry with its age.
func (c *BalanceCache) Get(chainID uint64, address, token common.Address) (*BalanceCacheEntry, bool, time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.Entries[Key(chainID, address, token)]
	if !exists {
		return nil, false, 0
	}
	return &entry, true, time.Since(entry.UpdatedAt)
}

// Set stores an entry stamped with the current time.
func (c *BalanceCache) Set(entry BalanceCacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.UpdatedAt = time.Now()
	c.Entries[Key(entry.ChainID, entry.Address, entry.Token)] = entry
}

// IsStale reports whether the entry is missing or older than staleness.
func (c *BalanceCache) IsStale(chainID uint64, address, token common.Address, staleness time.Duration) bool {
	_, exists, age := c.Get(chainID, address, token)
	return !exists || age > staleness
}

// Delete removes an entry.
func (c *BalanceCache) Delete(chainID uint64, address, token common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Entries, Key(chainID, address, token))
}

// Size returns the number of entries.
func (c *BalanceCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.Entries)
}

// Prune removes entries older than maxAge and returns how many went.
func (c *BalanceCache) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for key, entry := range c.Entries {
		if entry.UpdatedAt.Before(cutoff) {
			delete(c.Entries, key)
			removed++
		}
	}
	return removed
}
