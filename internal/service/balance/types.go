// Package balance fetches the unlocked account's native and token balances
// on the selected network, falling back to the last known values when the
// endpoint cannot be reached.
package balance

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/satchel/internal/chain"
)

// Entry is one balance. Token is the zero address for the native coin.
type Entry struct {
	Token     common.Address
	Name      string
	Symbol    string
	Decimals  int
	Amount    *big.Int
	Fiat      float64 // native coin only, zero when no rate is known
	Currency  string
	Stale     bool // served from cache after a failed fetch
	UpdatedAt time.Time
}

// IsNative reports whether the entry is the network's native coin.
func (e *Entry) IsNative() bool {
	return e.Token == (common.Address{})
}

// Formatted renders the amount in whole units.
func (e *Entry) Formatted() string {
	return chain.FormatDecimalAmount(e.Amount, e.Decimals)
}

// Report is the balance view of one account on one network.
type Report struct {
	Account string
	Address common.Address
	Network chain.Network
	Entries []Entry
	// Errors holds fetch failures that were covered by cached values or
	// that left a token out of Entries.
	Errors []error
}

// Native returns the native coin entry, if present.
func (r *Report) Native() *Entry {
	for i := range r.Entries {
		if r.Entries[i].IsNative() {
			return &r.Entries[i]
		}
	}
	return nil
}

// Stale reports whether any entry came from the cache.
func (r *Report) Stale() bool {
	for i := range r.Entries {
		if r.Entries[i].Stale {
			return true
		}
	}
	return false
}
