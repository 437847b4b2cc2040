package account_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/satchel/internal/account"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

func usdc(chainID uint64) account.Token {
	return account.Token{
		Name:     "USD Coin",
		Symbol:   "USDC",
		Decimals: 6,
		Address:  common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		ChainID:  chainID,
	}
}

func TestTokensFilteredByChain(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	_, err := store.Create("alice", secret(t, testPrivateKey), testPassword)
	require.NoError(t, err)

	dai := account.Token{
		Name:     "Dai Stablecoin",
		Symbol:   "DAI",
		Decimals: 18,
		Address:  common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
		ChainID:  1,
	}
	testToken := account.Token{
		Name:     "Test Token",
		Decimals: 18,
		Address:  common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		ChainID:  11155111,
	}
	require.NoError(t, store.AddToken("alice", usdc(1)))
	require.NoError(t, store.AddToken("alice", dai))
	require.NoError(t, store.AddToken("alice", testToken))

	mainnet, err := store.Tokens("alice", 1)
	require.NoError(t, err)
	require.Len(t, mainnet, 2)
	assert.Equal(t, "Dai Stablecoin", mainnet[0].Name)
	assert.Equal(t, usdc(1), mainnet[1])

	sepolia, err := store.Tokens("alice", 11155111)
	require.NoError(t, err)
	assert.Equal(t, []account.Token{testToken}, sepolia)

	none, err := store.Tokens("alice", 137)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTokenLookupAndRemove(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	_, err := store.Create("alice", secret(t, testPrivateKey), testPassword)
	require.NoError(t, err)
	require.NoError(t, store.AddToken("alice", usdc(1)))

	tok, err := store.Token("alice", 1, usdc(1).Address)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), tok.Decimals)

	_, err = store.Token("alice", 5, usdc(1).Address)
	require.ErrorIs(t, err, satchelerr.ErrTokenNotFound)

	require.NoError(t, store.RemoveToken("alice", usdc(1).Address))
	require.ErrorIs(t, store.RemoveToken("alice", usdc(1).Address), satchelerr.ErrTokenNotFound)

	_, err = store.Token("alice", 1, usdc(1).Address)
	require.ErrorIs(t, err, satchelerr.ErrTokenNotFound)
}

func TestAddTokenValidation(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	require.ErrorIs(t, store.AddToken("ghost", usdc(1)), satchelerr.ErrAccountNotFound)

	_, err := store.Create("alice", secret(t, testPrivateKey), testPassword)
	require.NoError(t, err)

	require.ErrorIs(t, store.AddToken("alice", account.Token{Name: "X", ChainID: 1}), satchelerr.ErrInvalidAddress)

	nameless := usdc(1)
	nameless.Name = " "
	require.ErrorIs(t, store.AddToken("alice", nameless), satchelerr.ErrInvalidInput)
}
