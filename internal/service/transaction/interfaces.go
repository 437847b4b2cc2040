package transaction

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/satchel/internal/chain"
	"github.com/mrz1836/satchel/internal/chain/eth"
	"github.com/mrz1836/satchel/internal/wallet"
)

// SessionProvider is the part of the wallet session the builder reads.
type SessionProvider interface {
	Account() (string, error)
	Address() (common.Address, error)
	Network() chain.Network
	Client(ctx context.Context) (*eth.Client, error)
	FiatRate() (float64, string)
}

// SignerProvider hands the dispatcher what a background job needs to
// connect and sign on its own.
type SignerProvider interface {
	SigningIdentity() (*wallet.Identity, error)
	Dialer() chain.Dialer
	ClientOptions() []eth.Option
}

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}
