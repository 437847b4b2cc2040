// Package session holds the state of one interactive wallet session: the
// selected network with its client and exchange rate, and at most one
// unlocked account with its secret and signing identity.
//
// A single mutex guards both halves. It is held only to read or swap state,
// never across network calls or prompts.
package session

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/satchel/internal/account"
	"github.com/mrz1836/satchel/internal/chain"
	"github.com/mrz1836/satchel/internal/chain/eth"
	"github.com/mrz1836/satchel/internal/config"
	"github.com/mrz1836/satchel/internal/fiat"
	"github.com/mrz1836/satchel/internal/metrics"
	"github.com/mrz1836/satchel/internal/wallet"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// Options wires a Session to its collaborators. Registry and Store are
// required.
type Options struct {
	Registry      *chain.Registry
	Store         *account.Store
	Dialer        chain.Dialer
	Rates         fiat.RateSource
	ClientOptions []eth.Option
	Metrics       *metrics.Metrics
	Logger        *config.Logger
}

// Session is the process's wallet session.
type Session struct {
	registry   *chain.Registry
	store      *account.Store
	dialer     chain.Dialer
	rates      fiat.RateSource
	clientOpts []eth.Option
	metrics    *metrics.Metrics
	logger     *config.Logger

	mu sync.Mutex

	network chain.Network
	client  *eth.Client
	rate    float64

	generation uint64 // bumped on every unlock and logout
	name       string
	secret     *wallet.Secret
	identity   *wallet.Identity
}

// New creates a locked session on chainID. No connection is made until a
// caller needs the chain.
func New(opts Options, chainID uint64) (*Session, error) {
	network, err := opts.Registry.Network(chainID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		registry:   opts.Registry,
		store:      opts.Store,
		dialer:     opts.Dialer,
		rates:      opts.Rates,
		clientOpts: opts.ClientOptions,
		metrics:    opts.Metrics,
		logger:     opts.Logger.Component("session"),
		network:    network,
	}
	if s.dialer == nil {
		s.dialer = chain.DialRPC
	}
	if s.rates == nil {
		s.rates = fiat.Disabled{}
	}
	if s.metrics == nil {
		s.metrics = metrics.Global
	}
	if s.store != nil {
		s.store.Observe(s)
	}
	return s, nil
}

// Registry returns the chain registry.
func (s *Session) Registry() *chain.Registry {
	return s.registry
}

// Store returns the account store.
func (s *Session) Store() *account.Store {
	return s.store
}

// Dialer returns the dialer used for chain connections.
func (s *Session) Dialer() chain.Dialer {
	return s.dialer
}

// ClientOptions returns the options applied to every chain client.
func (s *Session) ClientOptions() []eth.Option {
	return s.clientOpts
}

// Unlock decrypts name with password and makes it the session's account,
// replacing any account unlocked before. Wrong passwords are returned to the
// caller for re-prompting.
func (s *Session) Unlock(name, password string) error {
	secret, err := s.store.Unlock(name, password)
	s.metrics.RecordUnlock(err)
	if err != nil {
		return err
	}

	s.mu.Lock()
	chainID := new(big.Int).SetUint64(s.network.ChainID)
	s.mu.Unlock()

	identity, err := wallet.Build(secret, chainID)
	if err != nil {
		secret.Destroy()
		return err
	}

	s.mu.Lock()
	oldSecret, oldIdentity := s.secret, s.identity
	s.name, s.secret, s.identity = name, secret, identity
	s.generation++
	stale := identity.ChainID().Uint64() != s.network.ChainID
	s.mu.Unlock()

	oldSecret.Destroy()
	oldIdentity.Destroy()

	if stale {
		// The network changed while deriving; rebind to it.
		s.rebindIdentity()
	}
	s.logger.Info("unlocked account %s", name)
	return nil
}

// Logout forgets the unlocked account and zeroes its secret.
func (s *Session) Logout() {
	s.mu.Lock()
	name, secret, identity := s.name, s.secret, s.identity
	s.name, s.secret, s.identity = "", nil, nil
	s.generation++
	s.mu.Unlock()

	secret.Destroy()
	identity.Destroy()
	if name != "" {
		s.logger.Info("logged out of account %s", name)
	}
}

// AccountDeleted clears the session when its account is removed.
func (s *Session) AccountDeleted(name string) {
	s.mu.Lock()
	current := s.name
	s.mu.Unlock()

	if current == name {
		s.Logout()
	}
}

// Close logs out and closes the chain connection.
func (s *Session) Close() {
	s.Logout()

	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client != nil {
		client.Close()
	}
}

// Unlocked reports whether an account is unlocked.
func (s *Session) Unlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secret != nil
}

// Account returns the unlocked account's name.
func (s *Session) Account() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.secret == nil {
		return "", satchelerr.ErrNoSession
	}
	return s.name, nil
}

// Address returns the unlocked account's address.
func (s *Session) Address() (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return common.Address{}, satchelerr.ErrNoSession
	}
	return s.identity.Address(), nil
}

// SigningIdentity returns a copy of the current identity. The caller owns it
// and must Destroy it.
func (s *Session) SigningIdentity() (*wallet.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil, satchelerr.ErrNoSession
	}
	return s.identity.Clone()
}

// Network returns the selected network.
func (s *Session) Network() chain.Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.network
}

// FiatRate returns the cached rate of the native asset and its currency.
func (s *Session) FiatRate() (float64, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate, s.rates.Currency()
}

// State is a point-in-time view for display.
type State struct {
	Account  string
	Unlocked bool
	Address  common.Address
	Network  chain.Network
	Rate     float64
	Currency string
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Account:  s.name,
		Unlocked: s.secret != nil,
		Network:  s.network,
		Rate:     s.rate,
		Currency: s.rates.Currency(),
	}
	if s.identity != nil {
		st.Address = s.identity.Address()
	}
	return st
}

// Client returns the client for the selected network, connecting first if
// needed.
func (s *Session) Client(ctx context.Context) (*eth.Client, error) {
	s.mu.Lock()
	client, chainID := s.client, s.network.ChainID
	s.mu.Unlock()

	if client != nil {
		return client, nil
	}
	if err := s.SwitchNetwork(ctx, chainID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, satchelerr.ErrChainUnavailable
	}
	return s.client, nil
}

// SwitchNetwork moves the session to chainID: it dials the endpoint, rebuilds
// the identity for the new chain id and refreshes the fiat rate. Nothing
// changes unless the connection and the identity both succeed; on failure the
// new connection is closed and the previous network stays selected. A failed
// rate lookup only logs a warning and keeps the previous rate.
func (s *Session) SwitchNetwork(ctx context.Context, chainID uint64) error {
	network, err := s.registry.Network(chainID)
	if err != nil {
		return err
	}

	client, err := eth.Dial(ctx, s.dialer, network, s.clientOpts...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	gen := s.generation
	var secret *wallet.Secret
	if s.secret != nil {
		secret = s.secret.Clone()
	}
	s.mu.Unlock()

	var identity *wallet.Identity
	if secret != nil {
		identity, err = wallet.Build(secret, new(big.Int).SetUint64(chainID))
		secret.Destroy()
		if err != nil {
			client.Close()
			return err
		}
	}

	rate, rateErr := s.rates.Rate(ctx, network.Symbol)

	s.mu.Lock()
	if rateErr != nil {
		// Fiat values are display-only: keep the last rate of the same asset.
		rate = 0
		if s.network.Symbol == network.Symbol {
			rate = s.rate
		}
	}
	oldClient, oldIdentity := s.client, (*wallet.Identity)(nil)
	s.network, s.client, s.rate = network, client, rate
	if gen == s.generation && identity != nil {
		oldIdentity, s.identity = s.identity, identity
		identity = nil
	}
	needRebind := gen != s.generation && s.secret != nil
	s.mu.Unlock()

	if oldClient != nil {
		oldClient.Close()
	}
	oldIdentity.Destroy()
	identity.Destroy()
	if needRebind {
		// An unlock or logout raced with the switch.
		s.rebindIdentity()
	}

	if rateErr != nil {
		s.logger.Warn("fiat rate for %s unavailable: %v", network.Symbol, rateErr)
	}
	s.logger.Info("switched to %s (chain %d)", network.Name, network.ChainID)
	return nil
}

// RefreshRate re-fetches the fiat rate for the selected network.
func (s *Session) RefreshRate(ctx context.Context) error {
	network := s.Network()
	rate, err := s.rates.Rate(ctx, network.Symbol)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.network.ChainID == network.ChainID {
		s.rate = rate
	}
	return nil
}

// rebindIdentity rebuilds the identity from the held secret for the current
// network. Derivation is CPU-only and runs under the lock.
func (s *Session) rebindIdentity() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.secret == nil {
		return
	}
	chainID := new(big.Int).SetUint64(s.network.ChainID)
	if s.identity != nil && s.identity.ChainID().Cmp(chainID) == 0 {
		return
	}
	identity, err := wallet.Build(s.secret, chainID)
	if err != nil {
		s.logger.Error("rebuilding identity for chain %d: %v", s.network.ChainID, err)
		return
	}
	s.identity.Destroy()
	s.identity = identity
}
