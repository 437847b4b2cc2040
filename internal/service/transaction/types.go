// Package transaction drafts, prices, confirms and submits transfers of the
// native coin or an ERC-20 token from the unlocked account.
package transaction

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/satchel/internal/account"
	"github.com/mrz1836/satchel/internal/chain"
	"github.com/mrz1836/satchel/internal/chain/eth"
	"github.com/mrz1836/satchel/internal/metrics"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// State is the lifecycle position of a PendingTransfer.
type State int

// Transfer states. Confirmed, Failed and Cancelled are terminal.
const (
	Drafting State = iota
	Estimating
	AwaitingConfirmation
	Submitted
	Confirmed
	Failed
	Cancelled
)

var stateNames = [...]string{
	Drafting:             "drafting",
	Estimating:           "estimating",
	AwaitingConfirmation: "awaiting confirmation",
	Submitted:            "submitted",
	Confirmed:            "confirmed",
	Failed:               "failed",
	Cancelled:            "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Confirmed || s == Failed || s == Cancelled
}

// Request is what the user asked for.
type Request struct {
	// Recipient is a beneficiary label or a 0x address.
	Recipient string
	// Amount is a decimal string for the native coin or a whole number of
	// tokens when Token is set.
	Amount string
	// Token selects an ERC-20 transfer. Nil sends the native coin.
	Token *account.Token
}

// PendingTransfer is one transfer moving through the states above. The
// draft fields are fixed by Draft and Estimate; state, hash and receipt
// change as the dispatcher works on it and are read through methods.
type PendingTransfer struct {
	Account   string
	From      common.Address
	To        common.Address
	Recipient string // as entered: label or address
	Amount    *big.Int
	Token     *account.Token
	Network   chain.Network

	Tier     eth.GasTier
	GasPrice *big.Int
	GasLimit uint64
	Fee      *big.Int
	FiatFee  float64
	Currency string

	metrics *metrics.Metrics

	mu        sync.Mutex
	state     State
	confirmed bool
	hash      common.Hash
	receipt   *types.Receipt
	err       error
}

// State returns the current state.
func (p *PendingTransfer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsToken reports whether this is an ERC-20 transfer.
func (p *PendingTransfer) IsToken() bool {
	return p.Token != nil
}

// Symbol returns the unit the amount is denominated in.
func (p *PendingTransfer) Symbol() string {
	if p.Token != nil {
		if p.Token.Symbol != "" {
			return p.Token.Symbol
		}
		return p.Token.Name
	}
	return p.Network.Symbol
}

// Decimals returns the decimals of the amount.
func (p *PendingTransfer) Decimals() int {
	if p.Token != nil {
		return int(p.Token.Decimals)
	}
	return chain.NativeDecimals
}

// FormatAmount renders the amount in whole units.
func (p *PendingTransfer) FormatAmount() string {
	return chain.FormatDecimalAmount(p.Amount, p.Decimals())
}

// FormatFee renders the estimated fee in the native coin.
func (p *PendingTransfer) FormatFee() string {
	return chain.FormatDecimalAmount(p.Fee, chain.NativeDecimals)
}

// Hash returns the transaction hash once submitted.
func (p *PendingTransfer) Hash() common.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hash
}

// Receipt returns the receipt once mined.
func (p *PendingTransfer) Receipt() *types.Receipt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.receipt
}

// Err returns the failure of a Failed transfer.
func (p *PendingTransfer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Confirm records the user's approval of the estimate.
func (p *PendingTransfer) Confirm() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != AwaitingConfirmation {
		return p.invalid("confirm")
	}
	p.confirmed = true
	return nil
}

// Cancel abandons the transfer. Only drafts and unsubmitted estimates can
// be cancelled.
func (p *PendingTransfer) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Drafting && p.state != AwaitingConfirmation {
		return p.invalid("cancel")
	}
	p.state = Cancelled
	if p.metrics != nil {
		p.metrics.RecordTransferCancelled()
	}
	return nil
}

// transition moves from one of the from states to next.
func (p *PendingTransfer) transition(next State, from ...State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range from {
		if p.state == s {
			p.state = next
			return nil
		}
	}
	return p.invalid(next.String())
}

func (p *PendingTransfer) submit() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != AwaitingConfirmation || !p.confirmed {
		return p.invalid("submit")
	}
	p.state = Submitted
	return nil
}

func (p *PendingTransfer) setHash(h common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hash = h
}

func (p *PendingTransfer) finish(receipt *types.Receipt, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receipt = receipt
	p.err = err
	if err != nil {
		p.state = Failed
		return
	}
	p.state = Confirmed
}

// invalid must be called with p.mu held.
func (p *PendingTransfer) invalid(op string) error {
	return satchelerr.WithDetails(satchelerr.ErrInvalidState, map[string]string{
		"operation": op,
		"state":     p.state.String(),
	})
}
