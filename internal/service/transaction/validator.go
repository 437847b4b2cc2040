package transaction

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/satchel/internal/account"
	"github.com/mrz1836/satchel/internal/chain"
	"github.com/mrz1836/satchel/internal/chain/eth"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// BeneficiaryResolver looks up address book entries.
type BeneficiaryResolver interface {
	Beneficiary(name, label string) (common.Address, error)
}

// ResolveRecipient turns a 0x address or a beneficiary label of account
// into an address. Input that looks like an address is never treated as a
// label.
func ResolveRecipient(book BeneficiaryResolver, accountName, recipient string) (common.Address, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return common.Address{}, satchelerr.WithSuggestion(satchelerr.ErrInvalidInput,
			"Enter a beneficiary name or a 0x address")
	}
	if strings.HasPrefix(recipient, "0x") || strings.HasPrefix(recipient, "0X") {
		return eth.ParseAddress(recipient)
	}
	return book.Beneficiary(accountName, recipient)
}

// ParseAmount converts user input to base units. Native amounts are exact
// decimals with up to 18 places; token amounts are whole tokens scaled by
// the token's decimals. Zero is rejected.
func ParseAmount(amount string, token *account.Token) (*big.Int, error) {
	var (
		value *big.Int
		err   error
	)
	if token == nil {
		value, err = chain.ParseDecimalAmount(amount, chain.NativeDecimals)
	} else {
		value, err = chain.ParseWholeAmount(amount, int(token.Decimals))
	}
	if err != nil {
		return nil, err
	}
	if value.Sign() <= 0 {
		return nil, satchelerr.WithDetails(satchelerr.ErrInvalidAmount, map[string]string{
			"amount": amount,
			"reason": "must be greater than zero",
		})
	}
	return value, nil
}

// checkFunds applies the spending rules. Native: amount plus fee must stay
// strictly below the balance. Token: the token balance must cover the
// amount and the fee must stay strictly below the native balance.
func checkFunds(p *PendingTransfer, nativeBalance, tokenBalance *big.Int) error {
	symbol := p.Network.Symbol
	if p.Token == nil {
		required := new(big.Int).Add(p.Amount, p.Fee)
		if required.Cmp(nativeBalance) >= 0 {
			return insufficient(required, nativeBalance, chain.NativeDecimals, symbol, "amount plus fee must be below the balance")
		}
		return nil
	}

	if p.Amount.Cmp(tokenBalance) > 0 {
		return insufficient(p.Amount, tokenBalance, int(p.Token.Decimals), p.Symbol(), "token balance too low")
	}
	if p.Fee.Cmp(nativeBalance) >= 0 {
		return insufficient(p.Fee, nativeBalance, chain.NativeDecimals, symbol, "not enough for the network fee")
	}
	return nil
}

func insufficient(required, available *big.Int, decimals int, symbol, reason string) error {
	return satchelerr.WithDetails(satchelerr.ErrInsufficientFunds, map[string]string{
		"required":  chain.FormatDecimalAmount(required, decimals),
		"available": chain.FormatDecimalAmount(available, decimals),
		"symbol":    symbol,
		"reason":    reason,
	})
}
