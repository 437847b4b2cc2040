// Package eth wraps a go-ethereum JSON-RPC client with per-endpoint rate
// limiting, call metrics, error classification, gas tiers and ERC-20 calls.
package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/satchel/internal/chain"
	"github.com/mrz1836/satchel/internal/config"
	"github.com/mrz1836/satchel/internal/metrics"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// DefaultTimeout bounds a single RPC call.
const DefaultTimeout = 30 * time.Second

// Client talks to one network.
type Client struct {
	rpc     chain.Client
	network chain.Network
	limiter *chain.RateLimiter
	metrics *metrics.Metrics
	logger  *config.Logger
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimiter shares limiter across clients; calls are keyed by the
// network URL.
func WithRateLimiter(limiter *chain.RateLimiter) Option {
	return func(c *Client) { c.limiter = limiter }
}

// WithMetrics records calls into m instead of metrics.Global.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *config.Logger) Option {
	return func(c *Client) { c.logger = l.Component("rpc") }
}

// WithTimeout bounds each call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient wraps an already dialed rpc client.
func NewClient(rpc chain.Client, network chain.Network, opts ...Option) *Client {
	c := &Client{
		rpc:     rpc,
		network: network,
		metrics: metrics.Global,
		logger:  config.NullLogger(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial opens a client for network and checks the endpoint serves the
// expected chain id.
func Dial(ctx context.Context, dial chain.Dialer, network chain.Network, opts ...Option) (*Client, error) {
	if dial == nil {
		dial = chain.DialRPC
	}
	rpc, err := dial(ctx, network.URL)
	if err != nil {
		return nil, ClassifyError(err)
	}

	c := NewClient(rpc, network, opts...)
	id, err := c.ChainID(ctx)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	if id.Uint64() != network.ChainID {
		rpc.Close()
		return nil, satchelerr.WithDetails(satchelerr.ErrChainUnavailable, map[string]string{
			"expected_chain_id": fmt.Sprint(network.ChainID),
			"endpoint_chain_id": id.String(),
		})
	}
	c.logger.Debug("connected to %s (chain %d)", network.Name, network.ChainID)
	return c, nil
}

// Network returns the network this client is bound to.
func (c *Client) Network() chain.Network {
	return c.network
}

// Close releases the connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// ChainID asks the endpoint for its chain id.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := c.call(ctx, "eth_chainId", func(ctx context.Context) error {
		var err error
		id, err = c.rpc.ChainID(ctx)
		return err
	})
	return id, err
}

// Balance returns the latest native balance of addr in wei.
func (c *Client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var bal *big.Int
	err := c.call(ctx, "eth_getBalance", func(ctx context.Context) error {
		var err error
		bal, err = c.rpc.BalanceAt(ctx, addr, nil)
		return err
	})
	return bal, err
}

// SuggestGasPrice returns the node's suggested legacy gas price.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := c.call(ctx, "eth_gasPrice", func(ctx context.Context) error {
		var err error
		price, err = c.rpc.SuggestGasPrice(ctx)
		return err
	})
	return price, err
}

// EstimateGas returns the gas limit the node estimates for msg.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := c.call(ctx, "eth_estimateGas", func(ctx context.Context) error {
		var err error
		gas, err = c.rpc.EstimateGas(ctx, msg)
		return err
	})
	return gas, err
}

// PendingNonce returns the pending-pool nonce of addr.
func (c *Client) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	var nonce uint64
	err := c.call(ctx, "eth_getTransactionCount", func(ctx context.Context) error {
		var err error
		nonce, err = c.rpc.PendingNonceAt(ctx, addr)
		return err
	})
	return nonce, err
}

// Send broadcasts a signed transaction. Node rejections are classified into
// ErrNonceTooLow, ErrUnderpriced, ErrReverted or ErrInsufficientFunds.
func (c *Client) Send(ctx context.Context, tx *types.Transaction) error {
	err := c.call(ctx, "eth_sendRawTransaction", func(ctx context.Context) error {
		return c.rpc.SendTransaction(ctx, tx)
	})
	if err == nil {
		c.logger.Info("broadcast %s on chain %d", tx.Hash().Hex(), c.network.ChainID)
	}
	return err
}

// Receipt returns the receipt for hash, or ethereum.NotFound while pending.
func (c *Client) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.call(ctx, "eth_getTransactionReceipt", func(ctx context.Context) error {
		var err error
		receipt, err = c.rpc.TransactionReceipt(ctx, hash)
		return err
	})
	return receipt, err
}

// WaitMined polls for the receipt of hash every interval until it is mined
// or ctx ends. A mined receipt with failed status yields ErrReverted along
// with the receipt.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash, interval time.Duration) (*types.Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := c.Receipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, satchelerr.WithDetails(satchelerr.ErrReverted, map[string]string{"tx": hash.Hex()})
			}
			return receipt, nil
		case !errors.Is(err, ethereum.NotFound):
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, satchelerr.WithCause(satchelerr.ErrChainUnavailable, ctx.Err())
		case <-ticker.C:
		}
	}
}

// CallContract runs a read-only call against the latest block.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	var out []byte
	err := c.call(ctx, "eth_call", func(ctx context.Context) error {
		var err error
		out, err = c.rpc.CallContract(ctx, msg, nil)
		return err
	})
	return out, err
}

// call applies rate limiting and the per-call timeout, records metrics and
// classifies the error. ethereum.NotFound is returned unchanged.
func (c *Client) call(ctx context.Context, method string, fn func(context.Context) error) error {
	if err := c.limiter.Wait(ctx, c.network.URL); err != nil {
		return satchelerr.WithCause(satchelerr.ErrChainUnavailable, err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	if errors.Is(err, ethereum.NotFound) {
		c.metrics.RecordRPCCall(time.Since(start), nil)
		return err
	}
	c.metrics.RecordRPCCall(time.Since(start), err)

	if err != nil {
		c.logger.Debug("%s on chain %d failed: %v", method, c.network.ChainID, err)
		return ClassifyError(err)
	}
	return nil
}
