// Package chain defines the EVM networks satchel can talk to and the JSON-RPC
// surface it needs from them.
package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// NativeDecimals is the precision of every EVM native asset.
const NativeDecimals = 18

// Client is the subset of go-ethereum's ethclient the wallet uses.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

var _ Client = (*ethclient.Client)(nil)

// Dialer opens a Client for an RPC endpoint. Each call returns an
// independent connection that the caller must Close.
type Dialer func(ctx context.Context, url string) (Client, error)

// DialRPC is the production Dialer.
func DialRPC(ctx context.Context, url string) (Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, satchelerr.WithDetails(satchelerr.ErrChainUnavailable, map[string]string{"reason": "empty RPC URL"})
	}
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, satchelerr.WithCause(satchelerr.ErrChainUnavailable, err)
	}
	return c, nil
}
