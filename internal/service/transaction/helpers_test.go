package transaction

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/satchel/internal/account"
	"github.com/mrz1836/satchel/internal/chain"
	"github.com/mrz1836/satchel/internal/chain/chaintest"
	"github.com/mrz1836/satchel/internal/chain/eth"
	"github.com/mrz1836/satchel/internal/fiat"
	"github.com/mrz1836/satchel/internal/keystore"
	"github.com/mrz1836/satchel/internal/metrics"
	"github.com/mrz1836/satchel/internal/session"
	"github.com/mrz1836/satchel/internal/wallet"
)

const (
	testKey      = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testPassword = "correct horse"
	oneEther     = 1_000_000_000_000_000_000
)

var (
	sender    = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	recipient = common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	usdc      = common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
)

func TestMain(m *testing.M) {
	keystore.SetScryptWorkFactor(1<<4, 1)
	os.Exit(m.Run())
}

type fixture struct {
	fake       *chaintest.Fake
	session    *session.Session
	store      *account.Store
	builder    *Builder
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	token      *chaintest.Token
}

// newFixture unlocks "alice" on a fake Sepolia where the gas price is
// 1000 gwei and every estimate is 50000 gas, so a transfer costs exactly
// 0.05 ETH. Alice holds 1 ETH and 3 USDC.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	fake := chaintest.New(chain.Sepolia)
	fake.Price = big.NewInt(1_000_000_000_000)
	fake.Gas = 50_000
	fake.SetBalance(sender, big.NewInt(oneEther))

	tok := &chaintest.Token{
		ABI:      eth.ERC20ABI,
		Address:  usdc,
		Name:     "USD Coin",
		Symbol:   "USDC",
		Decimals: 6,
		Balances: map[common.Address]*big.Int{sender: big.NewInt(3_000_000)},
	}
	fake.Call = tok.Handler()

	store := account.NewStore(t.TempDir(), nil)
	secret, err := wallet.ParseSecret(testKey)
	require.NoError(t, err)
	_, err = store.Create("alice", secret, testPassword)
	secret.Destroy()
	require.NoError(t, err)
	require.NoError(t, store.AddBeneficiary("alice", "bob", recipient.Hex()))

	m := &metrics.Metrics{}
	registry := chain.NewRegistry([]chain.Network{{
		ChainID:  chain.Sepolia,
		Name:     "Sepolia",
		URL:      "http://sepolia.test",
		Explorer: "https://sepolia.etherscan.io",
		Symbol:   "ETH",
	}})
	s, err := session.New(session.Options{
		Registry: registry,
		Store:    store,
		Dialer:   fake.Dialer(),
		Rates:    fiat.Static{Rates: map[string]float64{"ETH": 2000}},
		Metrics:  m,
	}, chain.Sepolia)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Unlock("alice", testPassword))

	d := NewDispatcher(s, DispatcherOptions{
		PollInterval:   5 * time.Millisecond,
		ReceiptTimeout: 5 * time.Second,
		Metrics:        m,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	})

	return &fixture{
		fake:       fake,
		session:    s,
		store:      store,
		builder:    NewBuilder(&Config{Session: s, Beneficiaries: store, Metrics: m}),
		dispatcher: d,
		metrics:    m,
		token:      tok,
	}
}

func (f *fixture) usdcToken() *account.Token {
	return &account.Token{Name: "USD Coin", Symbol: "USDC", Decimals: 6, Address: usdc, ChainID: chain.Sepolia}
}

// confirmed drafts, estimates and confirms a native transfer.
func (f *fixture) confirmed(t *testing.T, amount string) *PendingTransfer {
	t.Helper()
	p, err := f.builder.Draft(Request{Recipient: "bob", Amount: amount})
	require.NoError(t, err)
	require.NoError(t, f.builder.Estimate(context.Background(), p, eth.GasTierDefault))
	require.NoError(t, p.Confirm())
	return p
}

func ether(s string) *big.Int {
	v, err := chain.ParseDecimalAmount(s, chain.NativeDecimals)
	if err != nil {
		panic(err)
	}
	return v
}

func nextResult(t *testing.T, d *Dispatcher) Result {
	t.Helper()
	select {
	case r, ok := <-d.Notifications():
		require.True(t, ok, "notifications closed")
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no result")
		return Result{}
	}
}
