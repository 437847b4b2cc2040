package balance

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/satchel/internal/account"
	"github.com/mrz1836/satchel/internal/chain"
	"github.com/mrz1836/satchel/internal/chain/eth"
)

// SessionProvider is the part of the wallet session the service reads.
type SessionProvider interface {
	Account() (string, error)
	Address() (common.Address, error)
	Network() chain.Network
	Client(ctx context.Context) (*eth.Client, error)
	FiatRate() (float64, string)
}

// TokenProvider lists tracked tokens and locates the account directory
// holding the balance cache. Satisfied by *account.Store.
type TokenProvider interface {
	Tokens(name string, chainID uint64) ([]account.Token, error)
	Token(name string, chainID uint64, address common.Address) (account.Token, error)
	Dir(name string) (string, error)
}
