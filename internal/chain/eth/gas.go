package eth

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// GasTier selects how the gas price is chosen.
type GasTier string

// Gas tiers. GasTierDefault takes the network suggestion unchanged; the
// others scale it.
const (
	GasTierDefault GasTier = "default"
	GasTierSlow    GasTier = "slow"
	GasTierMedium  GasTier = "medium"
	GasTierFast    GasTier = "fast"
)

// Gas limits used when a node cannot estimate.
const (
	GasLimitNativeTransfer uint64 = 21000
	GasLimitERC20Transfer  uint64 = 65000
)

// tierPercent scales the suggested price: slow pays 80%, fast 120%.
var tierPercent = map[GasTier]int64{
	GasTierDefault: 100,
	GasTierSlow:    80,
	GasTierMedium:  100,
	GasTierFast:    120,
}

// ParseGasTier parses a tier name. Empty input is GasTierDefault.
func ParseGasTier(s string) (GasTier, error) {
	tier := GasTier(strings.ToLower(strings.TrimSpace(s)))
	if tier == "" {
		return GasTierDefault, nil
	}
	if _, ok := tierPercent[tier]; !ok {
		return "", satchelerr.WithDetails(satchelerr.ErrInvalidGasTier, map[string]string{"tier": s})
	}
	return tier, nil
}

// GasTiers lists tiers in menu order.
func GasTiers() []GasTier {
	return []GasTier{GasTierDefault, GasTierSlow, GasTierMedium, GasTierFast}
}

// GasPrices holds the price of each tier at one moment.
type GasPrices struct {
	Suggested *big.Int
	Slow      *big.Int
	Medium    *big.Int
	Fast      *big.Int
}

// For returns the price for tier.
func (p *GasPrices) For(tier GasTier) *big.Int {
	switch tier {
	case GasTierSlow:
		return p.Slow
	case GasTierFast:
		return p.Fast
	case GasTierMedium:
		return p.Medium
	case GasTierDefault:
		return p.Suggested
	default:
		return p.Suggested
	}
}

// GasPrices derives every tier from one eth_gasPrice call.
func (c *Client) GasPrices(ctx context.Context) (*GasPrices, error) {
	suggested, err := c.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return &GasPrices{
		Suggested: suggested,
		Slow:      ScaleGasPrice(suggested, GasTierSlow),
		Medium:    ScaleGasPrice(suggested, GasTierMedium),
		Fast:      ScaleGasPrice(suggested, GasTierFast),
	}, nil
}

// GasPrice returns the price for a single tier.
func (c *Client) GasPrice(ctx context.Context, tier GasTier) (*big.Int, error) {
	prices, err := c.GasPrices(ctx)
	if err != nil {
		return nil, err
	}
	return prices.For(tier), nil
}

// ScaleGasPrice applies the tier's percentage with integer arithmetic.
func ScaleGasPrice(price *big.Int, tier GasTier) *big.Int {
	pct, ok := tierPercent[tier]
	if !ok || price == nil {
		return new(big.Int).Set(orZero(price))
	}
	out := new(big.Int).Mul(price, big.NewInt(pct))
	return out.Quo(out, big.NewInt(100))
}

// FormatGasPrice renders a wei price in Gwei.
func FormatGasPrice(wei *big.Int) string {
	if wei == nil {
		return "0 Gwei"
	}
	gwei := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e9))
	return fmt.Sprintf("%.2f Gwei", gwei)
}

func orZero(n *big.Int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return n
}
