package eth

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

const erc20JSON = `[
{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

// ERC20ABI is the minimal token interface the wallet calls.
//
//nolint:gochecknoglobals // parsed once
var ERC20ABI = mustParseABI(erc20JSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// TokenInfo is the on-chain metadata of an ERC-20 contract.
type TokenInfo struct {
	Address  common.Address
	Name     string
	Symbol   string
	Decimals uint8
}

// TokenInfo reads name, symbol and decimals. A contract that does not answer
// name or decimals is reported as ErrTokenNotFound; symbol is optional.
func (c *Client) TokenInfo(ctx context.Context, token common.Address) (*TokenInfo, error) {
	info := &TokenInfo{Address: token}

	if err := c.callToken(ctx, token, "name", &info.Name); err != nil {
		return nil, tokenMissing(token, err)
	}
	if err := c.callToken(ctx, token, "decimals", &info.Decimals); err != nil {
		return nil, tokenMissing(token, err)
	}
	if err := c.callToken(ctx, token, "symbol", &info.Symbol); err != nil {
		c.logger.Debug("token %s has no symbol: %v", token.Hex(), err)
	}
	return info, nil
}

// TokenBalance returns holder's balance of token in base units.
func (c *Client) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	var bal *big.Int
	if err := c.callToken(ctx, token, "balanceOf", &bal, holder); err != nil {
		return nil, err
	}
	return bal, nil
}

// PackTransfer encodes transfer(to, amount) call data.
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("transfer", to, amount)
}

func (c *Client) callToken(ctx context.Context, token common.Address, method string, out any, args ...any) error {
	data, err := ERC20ABI.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("packing %s: %w", method, err)
	}

	raw, err := c.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data})
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return satchelerr.WithDetails(satchelerr.ErrReverted, map[string]string{"method": method, "reason": "empty result"})
	}

	values, err := ERC20ABI.Unpack(method, raw)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", method, err)
	}
	if len(values) != 1 {
		return fmt.Errorf("decoding %s: %d values", method, len(values))
	}
	return assign(out, values[0], method)
}

func assign(out, v any, method string) error {
	switch dst := out.(type) {
	case *string:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("decoding %s: unexpected %T", method, v)
		}
		*dst = s
	case *uint8:
		n, ok := v.(uint8)
		if !ok {
			return fmt.Errorf("decoding %s: unexpected %T", method, v)
		}
		*dst = n
	case **big.Int:
		n, ok := v.(*big.Int)
		if !ok {
			return fmt.Errorf("decoding %s: unexpected %T", method, v)
		}
		*dst = n
	default:
		return fmt.Errorf("decoding %s: unsupported target %T", method, out)
	}
	return nil
}

func tokenMissing(token common.Address, err error) error {
	if satchelerr.Is(err, satchelerr.ErrChainUnavailable) {
		return err
	}
	return satchelerr.WithDetails(satchelerr.ErrTokenNotFound, map[string]string{
		"address": token.Hex(),
		"reason":  err.Error(),
	})
}
