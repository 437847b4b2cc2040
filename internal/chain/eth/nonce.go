package eth

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceManager hands out nonces for concurrent submissions from the same
// address before earlier ones reach the node's pending pool.
type NonceManager struct {
	mu     sync.Mutex
	nonces map[common.Address]uint64 // next nonce, one past the highest handed out
}

// NewNonceManager creates a NonceManager.
func NewNonceManager() *NonceManager {
	return &NonceManager{nonces: make(map[common.Address]uint64)}
}

// Next returns the higher of the node's pending nonce and the locally
// tracked one, then advances the local counter.
func (nm *NonceManager) Next(addr common.Address, pending uint64) uint64 {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	nonce := pending
	if local, ok := nm.nonces[addr]; ok && local > pending {
		nonce = local
	}
	nm.nonces[addr] = nonce + 1
	return nonce
}

// Release forgets local state for addr so the next call trusts the node.
// Called after a send fails before reaching the pool.
func (nm *NonceManager) Release(addr common.Address) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	delete(nm.nonces, addr)
}
