package transaction

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"

	"github.com/mrz1836/satchel/internal/account"
	"github.com/mrz1836/satchel/internal/chain"
	"github.com/mrz1836/satchel/internal/chain/eth"
	"github.com/mrz1836/satchel/internal/config"
	"github.com/mrz1836/satchel/internal/metrics"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// Builder drafts and prices transfers for the session's unlocked account.
type Builder struct {
	session SessionProvider
	book    BeneficiaryResolver
	metrics *metrics.Metrics
	logger  LogWriter
}

// Config holds dependencies for the builder.
type Config struct {
	Session       SessionProvider
	Beneficiaries BeneficiaryResolver
	Metrics       *metrics.Metrics
	Logger        *config.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(cfg *Config) *Builder {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global
	}
	return &Builder{
		session: cfg.Session,
		book:    cfg.Beneficiaries,
		metrics: m,
		logger:  cfg.Logger.Component("transaction"),
	}
}

// Draft validates req against the unlocked account and the selected network
// and returns a transfer in Drafting. Validation errors are recoverable: the
// caller re-prompts for the offending field.
func (b *Builder) Draft(req Request) (*PendingTransfer, error) {
	name, err := b.session.Account()
	if err != nil {
		return nil, err
	}
	from, err := b.session.Address()
	if err != nil {
		return nil, err
	}
	network := b.session.Network()

	var token *account.Token
	if req.Token != nil {
		if req.Token.ChainID != network.ChainID {
			return nil, satchelerr.WithDetails(satchelerr.ErrTokenNotFound, map[string]string{
				"token":   req.Token.Address.Hex(),
				"network": network.Name,
			})
		}
		t := *req.Token
		token = &t
	}

	to, err := ResolveRecipient(b.book, name, req.Recipient)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount(req.Amount, req.Token)
	if err != nil {
		return nil, err
	}

	return &PendingTransfer{
		Account:   name,
		From:      from,
		To:        to,
		Recipient: req.Recipient,
		Amount:    amount,
		Token:     token,
		Network:   network,
		metrics:   b.metrics,
		state:     Drafting,
	}, nil
}

// Amend replaces the amount of a transfer in Drafting, typically after
// Estimate rejected it for insufficient funds. p must be estimated again.
func (b *Builder) Amend(p *PendingTransfer, amount string) error {
	value, err := ParseAmount(amount, p.Token)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Drafting {
		return p.invalid("amend")
	}
	p.Amount = value
	return nil
}

// Estimate prices p at tier and checks that the account can pay for it. On
// success p waits for confirmation; on any failure, including
// ErrInsufficientFunds, p returns to Drafting. A transfer awaiting
// confirmation may be estimated again, which clears an earlier confirmation.
func (b *Builder) Estimate(ctx context.Context, p *PendingTransfer, tier eth.GasTier) error {
	if err := p.transition(Estimating, Drafting, AwaitingConfirmation); err != nil {
		return err
	}
	p.mu.Lock()
	p.confirmed = false
	p.mu.Unlock()

	if err := b.estimate(ctx, p, tier); err != nil {
		_ = p.transition(Drafting, Estimating)
		b.logger.Debug("estimate for %s failed: %v", p.To.Hex(), err)
		return err
	}
	return p.transition(AwaitingConfirmation, Estimating)
}

func (b *Builder) estimate(ctx context.Context, p *PendingTransfer, tier eth.GasTier) error {
	client, err := b.session.Client(ctx)
	if err != nil {
		return err
	}
	if got := client.Network().ChainID; got != p.Network.ChainID {
		return satchelerr.WithDetails(satchelerr.ErrInvalidState, map[string]string{
			"reason":  "network changed since the transfer was drafted",
			"drafted": fmt.Sprint(p.Network.ChainID),
			"current": fmt.Sprint(got),
		})
	}

	price, err := client.GasPrice(ctx, tier)
	if err != nil {
		return err
	}
	native, err := client.Balance(ctx, p.From)
	if err != nil {
		return err
	}

	msg := ethereum.CallMsg{From: p.From, GasPrice: price}
	fallback := eth.GasLimitNativeTransfer
	var tokenBalance *big.Int

	if p.Token != nil {
		tokenBalance, err = client.TokenBalance(ctx, p.Token.Address, p.From)
		if err != nil {
			return err
		}
		// A transfer above the token balance would revert during estimation.
		if p.Amount.Cmp(tokenBalance) > 0 {
			return insufficient(p.Amount, tokenBalance, p.Decimals(), p.Symbol(), "token balance too low")
		}
		data, err := eth.PackTransfer(p.To, p.Amount)
		if err != nil {
			return satchelerr.WithCause(satchelerr.ErrTransferFailed, err)
		}
		contract := p.Token.Address
		msg.To, msg.Data = &contract, data
		fallback = eth.GasLimitERC20Transfer
	} else {
		if p.Amount.Cmp(native) >= 0 {
			return insufficient(p.Amount, native, chain.NativeDecimals, p.Network.Symbol, "amount plus fee must be below the balance")
		}
		to := p.To
		msg.To, msg.Value = &to, p.Amount
	}

	limit, err := client.EstimateGas(ctx, msg)
	if err != nil {
		if !estimateFallbackAllowed(err) {
			return err
		}
		b.logger.Warn("gas estimate unavailable, using %d: %v", fallback, err)
		limit = fallback
	}

	fee := eth.Fee(price, limit)
	rate, currency := b.session.FiatRate()

	p.Tier = tier
	p.GasPrice = price
	p.GasLimit = limit
	p.Fee = fee
	p.FiatFee = chain.ToFloat(fee, chain.NativeDecimals) * rate
	p.Currency = currency

	return checkFunds(p, native, tokenBalance)
}

// estimateFallbackAllowed reports whether a failed estimate may be replaced
// by the fixed limit. Only endpoints that do not serve eth_estimateGas at all
// qualify; every other failure is returned to the caller.
func estimateFallbackAllowed(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return eth.IsMethodNotFound(err)
}
