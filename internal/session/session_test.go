package session

import (
	"context"
	"errors"
	"math/big"
	"os"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/satchel/internal/account"
	"github.com/mrz1836/satchel/internal/chain"
	"github.com/mrz1836/satchel/internal/chain/chaintest"
	"github.com/mrz1836/satchel/internal/fiat"
	"github.com/mrz1836/satchel/internal/keystore"
	"github.com/mrz1836/satchel/internal/metrics"
	"github.com/mrz1836/satchel/internal/wallet"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

const (
	testKey      = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddress  = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	testPassword = "correct horse"
)

func TestMain(m *testing.M) {
	keystore.SetScryptWorkFactor(1<<4, 1)
	os.Exit(m.Run())
}

type harness struct {
	session *Session
	store   *account.Store
	fakes   map[uint64]*chaintest.Fake
	rates   *switchableRates
	metrics *metrics.Metrics
}

// switchableRates wraps fiat.Static with an injectable failure.
type switchableRates struct {
	mu   sync.Mutex
	fail error
	src  fiat.Static
}

func (r *switchableRates) Rate(ctx context.Context, symbol string) (float64, error) {
	r.mu.Lock()
	fail := r.fail
	r.mu.Unlock()
	if fail != nil {
		return 0, fail
	}
	return r.src.Rate(ctx, symbol)
}

func (r *switchableRates) Currency() string { return r.src.Currency() }

func (r *switchableRates) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	networks := []chain.Network{
		{ChainID: chain.Mainnet, Name: "Ethereum", URL: "http://mainnet.test", Symbol: "ETH"},
		{ChainID: chain.Sepolia, Name: "Sepolia", URL: "http://sepolia.test", Symbol: "ETH"},
		{ChainID: chain.Polygon, Name: "Polygon", URL: "http://polygon.test", Symbol: "POL"},
	}
	fakes := map[uint64]*chaintest.Fake{}
	byURL := map[string]*chaintest.Fake{}
	for _, n := range networks {
		f := chaintest.New(n.ChainID)
		fakes[n.ChainID] = f
		byURL[n.URL] = f
	}
	dialer := func(_ context.Context, url string) (chain.Client, error) {
		f, ok := byURL[url]
		if !ok {
			return nil, errors.New("no route to " + url) //nolint:err113 // test transport
		}
		return f, nil
	}

	store := account.NewStore(t.TempDir(), nil)
	rates := &switchableRates{src: fiat.Static{Rates: map[string]float64{"ETH": 2000, "POL": 0.5}}}
	m := &metrics.Metrics{}

	s, err := New(Options{
		Registry: chain.NewRegistry(networks),
		Store:    store,
		Dialer:   dialer,
		Rates:    rates,
		Metrics:  m,
	}, chain.Sepolia)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return &harness{session: s, store: store, fakes: fakes, rates: rates, metrics: m}
}

func (h *harness) createAccount(t *testing.T, name string) {
	t.Helper()
	secret, err := wallet.ParseSecret(testKey)
	require.NoError(t, err)
	defer secret.Destroy()
	_, err = h.store.Create(name, secret, testPassword)
	require.NoError(t, err)
}

func TestNewUnknownChain(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Registry: chain.NewRegistry(nil)}, 42)
	require.ErrorIs(t, err, satchelerr.ErrNetworkNotFound)
}

func TestUnlockAndLogout(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.createAccount(t, "alice")
	s := h.session

	require.ErrorIs(t, s.Unlock("alice", "wrong password"), satchelerr.ErrWrongPassword)
	assert.False(t, s.Unlocked())
	require.ErrorIs(t, s.Unlock("alise", testPassword), satchelerr.ErrAccountNotFound)

	require.NoError(t, s.Unlock("alice", testPassword))
	assert.True(t, s.Unlocked())

	name, err := s.Account()
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	addr, err := s.Address()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), addr)

	id, err := s.SigningIdentity()
	require.NoError(t, err)
	defer id.Destroy()
	assert.Equal(t, big.NewInt(int64(chain.Sepolia)), id.ChainID())

	snap := h.metrics.Snapshot()
	assert.Equal(t, int64(3), snap.UnlocksTotal)
	assert.Equal(t, int64(2), snap.UnlockFailures)

	s.Logout()
	assert.False(t, s.Unlocked())
	_, err = s.SigningIdentity()
	require.ErrorIs(t, err, satchelerr.ErrNoSession)
	_, err = s.Account()
	require.ErrorIs(t, err, satchelerr.ErrNoSession)

	// A copy handed out before logout is independent.
	assert.False(t, id.Destroyed())
}

func TestSwitchNetworkKeepsAddress(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.createAccount(t, "alice")
	s := h.session
	ctx := context.Background()

	require.NoError(t, s.Unlock("alice", testPassword))
	before, err := s.Address()
	require.NoError(t, err)

	_, err = s.Client(ctx)
	require.NoError(t, err, "lazy connect to sepolia")

	require.NoError(t, s.SwitchNetwork(ctx, chain.Polygon))

	st := s.State()
	assert.Equal(t, chain.Polygon, st.Network.ChainID)
	assert.Equal(t, before, st.Address, "address does not depend on chain id")
	assert.InDelta(t, 0.5, st.Rate, 1e-9)
	assert.Equal(t, "USD", st.Currency)

	id, err := s.SigningIdentity()
	require.NoError(t, err)
	defer id.Destroy()
	assert.Equal(t, big.NewInt(int64(chain.Polygon)), id.ChainID())

	assert.Equal(t, 1, h.fakes[chain.Sepolia].Closed(), "previous client closed")
	assert.Zero(t, h.fakes[chain.Polygon].Closed())
}

func TestSwitchNetworkFailureKeepsState(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.createAccount(t, "alice")
	s := h.session
	ctx := context.Background()

	require.NoError(t, s.Unlock("alice", testPassword))
	require.NoError(t, s.SwitchNetwork(ctx, chain.Sepolia))
	client, err := s.Client(ctx)
	require.NoError(t, err)

	t.Run("endpoint failure", func(t *testing.T) {
		h.fakes[chain.Mainnet].ChainIDErr = errors.New("connection refused") //nolint:err113 // transport error
		err := s.SwitchNetwork(ctx, chain.Mainnet)
		require.ErrorIs(t, err, satchelerr.ErrChainUnavailable)
	})

	t.Run("unknown network", func(t *testing.T) {
		require.ErrorIs(t, s.SwitchNetwork(ctx, 5), satchelerr.ErrNetworkNotFound)
	})

	assert.Equal(t, chain.Sepolia, s.Network().ChainID)
	still, err := s.Client(ctx)
	require.NoError(t, err)
	assert.Same(t, client, still)
	assert.Zero(t, h.fakes[chain.Sepolia].Closed())

	id, err := s.SigningIdentity()
	require.NoError(t, err)
	defer id.Destroy()
	assert.Equal(t, big.NewInt(int64(chain.Sepolia)), id.ChainID())
}

func TestSwitchNetworkWithoutFiatRate(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.createAccount(t, "alice")
	s := h.session
	ctx := context.Background()

	h.rates.setFail(satchelerr.ErrFiatUnavailable)
	require.NoError(t, s.Unlock("alice", testPassword))

	// The first connection does not depend on the rate source.
	_, err := s.Client(ctx)
	require.NoError(t, err)
	rate, _ := s.FiatRate()
	assert.Zero(t, rate)

	h.rates.setFail(nil)
	require.NoError(t, s.RefreshRate(ctx))
	h.rates.setFail(satchelerr.ErrFiatUnavailable)

	require.NoError(t, s.SwitchNetwork(ctx, chain.Mainnet))
	rate, _ = s.FiatRate()
	assert.InDelta(t, 2000.0, rate, 1e-9, "same asset keeps its last rate")

	require.NoError(t, s.SwitchNetwork(ctx, chain.Polygon))
	assert.Equal(t, chain.Polygon, s.Network().ChainID)
	rate, _ = s.FiatRate()
	assert.Zero(t, rate, "another asset has no rate")
	assert.Zero(t, h.fakes[chain.Polygon].Closed())

	id, err := s.SigningIdentity()
	require.NoError(t, err)
	defer id.Destroy()
	assert.Equal(t, big.NewInt(int64(chain.Polygon)), id.ChainID())
}

func TestSwitchNetworkWhileLocked(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.NoError(t, h.session.SwitchNetwork(context.Background(), chain.Mainnet))
	assert.Equal(t, chain.Mainnet, h.session.Network().ChainID)
	_, err := h.session.Address()
	require.ErrorIs(t, err, satchelerr.ErrNoSession)
}

func TestDeleteClearsSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.createAccount(t, "alice")
	h.createAccount(t, "bob")
	s := h.session

	require.NoError(t, s.Unlock("alice", testPassword))
	require.NoError(t, h.store.AddBeneficiary("alice", "carol", testAddress))

	// Deleting another account leaves the session alone.
	require.NoError(t, h.store.Delete("bob", testPassword))
	assert.True(t, s.Unlocked())

	require.NoError(t, h.store.Delete("alice", testPassword))
	assert.False(t, s.Unlocked())
	assert.Empty(t, s.State().Account)

	require.ErrorIs(t, s.Unlock("alice", testPassword), satchelerr.ErrAccountNotFound)
	_, err := h.store.Beneficiaries("alice")
	require.ErrorIs(t, err, satchelerr.ErrAccountNotFound)
}

func TestRefreshRate(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.NoError(t, h.session.RefreshRate(context.Background()))
	rate, currency := h.session.FiatRate()
	assert.InDelta(t, 2000.0, rate, 1e-9)
	assert.Equal(t, "USD", currency)

	h.rates.setFail(satchelerr.ErrFiatUnavailable)
	require.Error(t, h.session.RefreshRate(context.Background()))
	rate, _ = h.session.FiatRate()
	assert.InDelta(t, 2000.0, rate, 1e-9, "failed refresh keeps the cached rate")
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.createAccount(t, "alice")
	s := h.session
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_ = s.Unlock("alice", testPassword)
		}()
		go func(i int) {
			defer wg.Done()
			target := chain.Sepolia
			if i%2 == 0 {
				target = chain.Polygon
			}
			_ = s.SwitchNetwork(ctx, target)
		}(i)
		go func() {
			defer wg.Done()
			_ = s.State()
			if id, err := s.SigningIdentity(); err == nil {
				id.Destroy()
			}
		}()
	}
	wg.Wait()

	require.NoError(t, s.Unlock("alice", testPassword))
	id, err := s.SigningIdentity()
	require.NoError(t, err)
	defer id.Destroy()
	assert.Equal(t, new(big.Int).SetUint64(s.Network().ChainID), id.ChainID(),
		"identity is bound to the selected network")
}
