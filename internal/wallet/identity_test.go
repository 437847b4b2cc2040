package wallet_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/satchel/internal/wallet"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// Well-known addresses for the fixtures above.
var (
	mnemonicAddress   = common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	privateKeyAddress = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
)

func mustSecret(t *testing.T, input string) *wallet.Secret {
	t.Helper()
	s, err := wallet.ParseSecret(input)
	require.NoError(t, err)
	t.Cleanup(s.Destroy)
	return s
}

func TestBuildFromMnemonic(t *testing.T) {
	t.Parallel()

	id, err := wallet.Build(mustSecret(t, testMnemonic), big.NewInt(1))
	require.NoError(t, err)
	defer id.Destroy()

	assert.Equal(t, mnemonicAddress, id.Address())
	assert.Equal(t, wallet.KindMnemonic, id.Kind())
	assert.Equal(t, int64(1), id.ChainID().Int64())
}

func TestBuildFromPrivateKey(t *testing.T) {
	t.Parallel()

	id, err := wallet.Build(mustSecret(t, "0x"+testPrivateKey), big.NewInt(5))
	require.NoError(t, err)
	defer id.Destroy()

	assert.Equal(t, privateKeyAddress, id.Address())
	assert.Equal(t, wallet.KindPrivateKey, id.Kind())
}

func TestBuildRejectsBadChecksumMnemonic(t *testing.T) {
	t.Parallel()

	s := mustSecret(t, "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon")
	_, err := wallet.Build(s, big.NewInt(1))
	require.ErrorIs(t, err, satchelerr.ErrInvalidMnemonic)
}

func TestBuildRejectsOutOfRangeKey(t *testing.T) {
	t.Parallel()

	// Zero is not a valid secp256k1 scalar.
	s := mustSecret(t, "0000000000000000000000000000000000000000000000000000000000000000")
	_, err := wallet.Build(s, big.NewInt(1))
	require.ErrorIs(t, err, satchelerr.ErrInvalidSecret)
}

func TestBuildRejectsBadChainID(t *testing.T) {
	t.Parallel()

	s := mustSecret(t, testPrivateKey)
	_, err := wallet.Build(s, nil)
	require.ErrorIs(t, err, satchelerr.ErrInvalidInput)
	_, err = wallet.Build(s, big.NewInt(0))
	require.ErrorIs(t, err, satchelerr.ErrInvalidInput)
}

func TestBuildRejectsDestroyedSecret(t *testing.T) {
	t.Parallel()

	s, err := wallet.ParseSecret(testPrivateKey)
	require.NoError(t, err)
	s.Destroy()

	_, err = wallet.Build(s, big.NewInt(1))
	require.ErrorIs(t, err, satchelerr.ErrInvalidSecret)
}

// The address is chain-independent; only the signer changes.
func TestWithChainIDKeepsAddress(t *testing.T) {
	t.Parallel()

	for _, input := range []string{testMnemonic, testPrivateKey} {
		id, err := wallet.Build(mustSecret(t, input), big.NewInt(1))
		require.NoError(t, err)

		moved, err := id.WithChainID(big.NewInt(137))
		require.NoError(t, err)

		assert.Equal(t, id.Address(), moved.Address())
		assert.Equal(t, int64(137), moved.ChainID().Int64())
		assert.Equal(t, int64(1), id.ChainID().Int64())

		rebuilt, err := wallet.Build(mustSecret(t, input), big.NewInt(11155111))
		require.NoError(t, err)
		assert.Equal(t, id.Address(), rebuilt.Address())

		id.Destroy()
		moved.Destroy()
		rebuilt.Destroy()
	}
}

func TestSignTxBindsChainID(t *testing.T) {
	t.Parallel()

	id, err := wallet.Build(mustSecret(t, testPrivateKey), big.NewInt(11155111))
	require.NoError(t, err)
	defer id.Destroy()

	to := common.HexToAddress("0x00000000000000000000000000000000000000b0")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    3,
		To:       &to,
		Value:    big.NewInt(1),
		Gas:      21000,
		GasPrice: big.NewInt(1_000_000_000),
	})

	signed, err := id.SignTx(tx)
	require.NoError(t, err)
	assert.Equal(t, int64(11155111), signed.ChainId().Int64())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(11155111)), signed)
	require.NoError(t, err)
	assert.Equal(t, id.Address(), sender)
}

func TestCloneSurvivesDestroy(t *testing.T) {
	t.Parallel()

	id, err := wallet.Build(mustSecret(t, testPrivateKey), big.NewInt(1))
	require.NoError(t, err)

	clone, err := id.Clone()
	require.NoError(t, err)

	id.Destroy()
	assert.True(t, id.Destroyed())

	_, err = id.SignTx(types.NewTx(&types.LegacyTx{Gas: 21000, GasPrice: big.NewInt(1)}))
	require.ErrorIs(t, err, wallet.ErrIdentityDestroyed)
	_, err = id.Clone()
	require.ErrorIs(t, err, wallet.ErrIdentityDestroyed)

	_, err = clone.SignTx(types.NewTx(&types.LegacyTx{Gas: 21000, GasPrice: big.NewInt(1)}))
	require.NoError(t, err)
	assert.Equal(t, privateKeyAddress, clone.Address())
	clone.Destroy()
	clone.Destroy()
}
