// Package chaintest provides an in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/satchel/internal/chain"
)

// Fake is a scripted chain.Client. Unset balances are zero; sent
// transactions are mined on the next receipt poll after MineAfter polls.
type Fake struct {
	mu sync.Mutex

	ID       *big.Int
	Balances map[common.Address]*big.Int
	Price    *big.Int
	Gas      uint64
	Nonce    uint64

	// MineAfter is the number of receipt polls answered with NotFound
	// before a sent transaction is mined.
	MineAfter int
	// Revert marks mined receipts as failed.
	Revert bool

	ChainIDErr  error
	BalanceErr  error
	PriceErr    error
	EstimateErr error
	SendErr     error
	ReceiptErr  error

	// Call answers eth_call. Nil returns an empty result.
	Call func(msg ethereum.CallMsg) ([]byte, error)

	sent     []*types.Transaction
	polls    map[common.Hash]int
	estimate []ethereum.CallMsg
	closed   int
}

var _ chain.Client = (*Fake)(nil)

// New returns a Fake for chainID with a 1 gwei gas price and a 21000 gas
// estimate.
func New(chainID uint64) *Fake {
	return &Fake{
		ID:       new(big.Int).SetUint64(chainID),
		Balances: make(map[common.Address]*big.Int),
		Price:    big.NewInt(1_000_000_000),
		Gas:      21000,
		polls:    make(map[common.Hash]int),
	}
}

// Dialer returns a chain.Dialer handing out f for every URL.
func (f *Fake) Dialer() chain.Dialer {
	return func(context.Context, string) (chain.Client, error) {
		return f, nil
	}
}

// SetBalance sets addr's native balance.
func (f *Fake) SetBalance(addr common.Address, wei *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Balances[addr] = wei
}

// Sent returns the transactions received so far.
func (f *Fake) Sent() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

// Estimates returns the messages passed to EstimateGas.
func (f *Fake) Estimates() []ethereum.CallMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ethereum.CallMsg(nil), f.estimate...)
}

// Closed returns how many times Close was called.
func (f *Fake) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// ChainID implements chain.Client.
func (f *Fake) ChainID(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ChainIDErr != nil {
		return nil, f.ChainIDErr
	}
	return new(big.Int).Set(f.ID), nil
}

// BalanceAt implements chain.Client.
func (f *Fake) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BalanceErr != nil {
		return nil, f.BalanceErr
	}
	if b, ok := f.Balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// SuggestGasPrice implements chain.Client.
func (f *Fake) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PriceErr != nil {
		return nil, f.PriceErr
	}
	return new(big.Int).Set(f.Price), nil
}

// EstimateGas implements chain.Client.
func (f *Fake) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimate = append(f.estimate, msg)
	if f.EstimateErr != nil {
		return 0, f.EstimateErr
	}
	return f.Gas, nil
}

// PendingNonceAt implements chain.Client.
func (f *Fake) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Nonce, nil
}

// SendTransaction implements chain.Client.
func (f *Fake) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

// TransactionReceipt implements chain.Client.
func (f *Fake) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReceiptErr != nil {
		return nil, f.ReceiptErr
	}

	for _, tx := range f.sent {
		if tx.Hash() != hash {
			continue
		}
		if f.polls[hash] < f.MineAfter {
			f.polls[hash]++
			return nil, ethereum.NotFound
		}
		status := types.ReceiptStatusSuccessful
		if f.Revert {
			status = types.ReceiptStatusFailed
		}
		return &types.Receipt{
			Status:      status,
			TxHash:      hash,
			GasUsed:     tx.Gas(),
			BlockNumber: big.NewInt(100),
		}, nil
	}
	return nil, ethereum.NotFound
}

// CallContract implements chain.Client.
func (f *Fake) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	call := f.Call
	f.mu.Unlock()
	if call == nil {
		return nil, nil
	}
	return call(msg)
}

// Close implements chain.Client.
func (f *Fake) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}
