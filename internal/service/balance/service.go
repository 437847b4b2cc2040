package balance

import (
	"context"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/satchel/internal/account"
	"github.com/mrz1836/satchel/internal/cache"
	"github.com/mrz1836/satchel/internal/chain"
	"github.com/mrz1836/satchel/internal/chain/eth"
	"github.com/mrz1836/satchel/internal/config"
)

// DefaultMaxConcurrent bounds parallel balance calls.
const DefaultMaxConcurrent = 4

// Config holds the configuration for the balance service.
type Config struct {
	Session       SessionProvider
	Tokens        TokenProvider
	MaxConcurrent int
	// NoCache disables reading and writing the per-account balance cache.
	NoCache bool
	Logger  *config.Logger
}

// Service fetches balances for the session's unlocked account.
type Service struct {
	session       SessionProvider
	tokens        TokenProvider
	maxConcurrent int
	noCache       bool
	logger        *config.Logger
}

// NewService creates a new balance service.
func NewService(cfg *Config) *Service {
	n := cfg.MaxConcurrent
	if n <= 0 {
		n = DefaultMaxConcurrent
	}
	return &Service{
		session:       cfg.Session,
		tokens:        cfg.Tokens,
		maxConcurrent: n,
		noCache:       cfg.NoCache,
		logger:        cfg.Logger.Component("balance"),
	}
}

// target is one balance to fetch; tok is nil for the native coin.
type target struct {
	tok *account.Token
}

// Fetch returns the native balance and every token tracked on the selected
// network. It fails only when the native balance is neither fetchable nor
// cached.
func (s *Service) Fetch(ctx context.Context) (*Report, error) {
	name, err := s.session.Account()
	if err != nil {
		return nil, err
	}
	tokens, err := s.tokens.Tokens(name, s.session.Network().ChainID)
	if err != nil {
		return nil, err
	}

	targets := make([]target, 0, len(tokens)+1)
	targets = append(targets, target{})
	for i := range tokens {
		targets = append(targets, target{tok: &tokens[i]})
	}
	return s.fetch(ctx, name, targets)
}

// Native returns only the native coin balance.
func (s *Service) Native(ctx context.Context) (*Entry, error) {
	name, err := s.session.Account()
	if err != nil {
		return nil, err
	}
	report, err := s.fetch(ctx, name, []target{{}})
	if err != nil {
		return nil, err
	}
	return report.Native(), nil
}

// Token returns the balance of one tracked token on the selected network.
func (s *Service) Token(ctx context.Context, address common.Address) (*Entry, error) {
	name, err := s.session.Account()
	if err != nil {
		return nil, err
	}
	tok, err := s.tokens.Token(name, s.session.Network().ChainID, address)
	if err != nil {
		return nil, err
	}
	report, err := s.fetch(ctx, name, []target{{tok: &tok}})
	if err != nil {
		return nil, err
	}
	return &report.Entries[0], nil
}

// fetch queries every target in parallel. Failures fall back to the cache.
// A native or lone target with neither a fresh nor a cached value fails the
// whole call; a missing token is reported in Errors.
func (s *Service) fetch(ctx context.Context, name string, targets []target) (*Report, error) {
	holder, err := s.session.Address()
	if err != nil {
		return nil, err
	}
	network := s.session.Network()
	store, bc := s.loadCache(name)

	// Connecting refreshes the rate.
	client, clientErr := s.session.Client(ctx)
	rate, currency := s.session.FiatRate()

	entries := make([]Entry, len(targets))
	errs := make([]error, len(targets))
	if clientErr == nil {
		var g errgroup.Group
		g.SetLimit(s.maxConcurrent)
		for i := range targets {
			g.Go(func() error {
				entries[i], errs[i] = s.fetchOne(ctx, client, holder, network, targets[i].tok)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range errs {
			errs[i] = clientErr
		}
	}

	report := &Report{Account: name, Address: holder, Network: network}
	for i, t := range targets {
		if errs[i] == nil {
			report.Entries = append(report.Entries, entries[i])
			if bc != nil {
				bc.Set(toCache(network.ChainID, holder, &entries[i]))
			}
			continue
		}

		cached, ok := fromCache(bc, network.ChainID, holder, t.tok)
		if !ok {
			if t.tok == nil || len(targets) == 1 {
				return nil, errs[i]
			}
			report.Errors = append(report.Errors, errs[i])
			continue
		}
		s.logger.Warn("serving cached balance for %s: %v", cached.Symbol, errs[i])
		report.Entries = append(report.Entries, cached)
		report.Errors = append(report.Errors, errs[i])
	}

	for i := range report.Entries {
		e := &report.Entries[i]
		if e.IsNative() && rate > 0 {
			e.Fiat = chain.ToFloat(e.Amount, chain.NativeDecimals) * rate
			e.Currency = currency
		}
	}

	if store != nil && bc != nil {
		if err := store.Save(bc); err != nil {
			s.logger.Warn("saving balance cache: %v", err)
		}
	}
	return report, nil
}

func (s *Service) fetchOne(ctx context.Context, client *eth.Client, holder common.Address, network chain.Network, tok *account.Token) (Entry, error) {
	if tok == nil {
		amount, err := client.Balance(ctx, holder)
		if err != nil {
			return Entry{}, err
		}
		return Entry{
			Name:      network.Name,
			Symbol:    network.Symbol,
			Decimals:  chain.NativeDecimals,
			Amount:    amount,
			UpdatedAt: time.Now(),
		}, nil
	}

	amount, err := client.TokenBalance(ctx, tok.Address, holder)
	if err != nil {
		return Entry{}, err
	}
	symbol := tok.Symbol
	if symbol == "" {
		symbol = tok.Name
	}
	return Entry{
		Token:     tok.Address,
		Name:      tok.Name,
		Symbol:    symbol,
		Decimals:  int(tok.Decimals),
		Amount:    amount,
		UpdatedAt: time.Now(),
	}, nil
}

func (s *Service) loadCache(name string) (*cache.FileStorage, *cache.BalanceCache) {
	if s.noCache {
		return nil, nil
	}
	dir, err := s.tokens.Dir(name)
	if err != nil {
		return nil, nil
	}
	store := cache.NewFileStorage(filepath.Join(dir, cache.FileName))
	bc, err := store.Load()
	if err != nil {
		s.logger.Warn("loading balance cache: %v", err)
	}
	return store, bc
}

func toCache(chainID uint64, holder common.Address, e *Entry) cache.BalanceCacheEntry {
	return cache.BalanceCacheEntry{
		ChainID:  chainID,
		Address:  holder,
		Token:    e.Token,
		Balance:  e.Amount.String(),
		Symbol:   e.Symbol,
		Decimals: e.Decimals,
	}
}

func fromCache(bc *cache.BalanceCache, chainID uint64, holder common.Address, tok *account.Token) (Entry, bool) {
	if bc == nil {
		return Entry{}, false
	}
	var token common.Address
	name := ""
	if tok != nil {
		token, name = tok.Address, tok.Name
	}
	c, ok, _ := bc.Get(chainID, holder, token)
	if !ok {
		return Entry{}, false
	}
	return Entry{
		Token:     token,
		Name:      name,
		Symbol:    c.Symbol,
		Decimals:  c.Decimals,
		Amount:    c.Amount(),
		Stale:     true,
		UpdatedAt: c.UpdatedAt,
	}, true
}
