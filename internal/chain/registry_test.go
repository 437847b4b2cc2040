package chain_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/satchel/internal/chain"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

const chainsJSON = `{
  "11155111": {"name": "Sepolia", "url": "https://rpc.sepolia.example", "explorer": "https://sepolia.etherscan.io/"},
  "137": {"name": "Polygon", "url": "https://polygon.example", "symbol": "POL"}
}`

func TestParseRegistry(t *testing.T) {
	t.Parallel()

	reg, err := chain.ParseRegistry([]byte(chainsJSON))
	require.NoError(t, err)

	networks := reg.Networks()
	require.Len(t, networks, 2)
	assert.Equal(t, uint64(137), networks[0].ChainID)
	assert.Equal(t, uint64(11155111), networks[1].ChainID)

	sepolia, err := reg.Network(11155111)
	require.NoError(t, err)
	assert.Equal(t, "ETH", sepolia.Symbol, "symbol defaults to ETH")
	assert.Equal(t, "https://rpc.sepolia.example", sepolia.URL)

	polygon, err := reg.Network(137)
	require.NoError(t, err)
	assert.Equal(t, "POL", polygon.Symbol)

	_, err = reg.Network(5)
	require.ErrorIs(t, err, satchelerr.ErrNetworkNotFound)
}

func TestParseRegistryInvalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not json":    `[1,2`,
		"empty":       `{}`,
		"bad key":     `{"sepolia": {"name": "x", "url": "y"}}`,
		"zero key":    `{"0": {"name": "x", "url": "y"}}`,
		"missing url": `{"1": {"name": "x"}}`,
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := chain.ParseRegistry([]byte(data))
			require.ErrorIs(t, err, satchelerr.ErrConfigInvalid)
		})
	}
}

func TestLoadRegistry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	reg, err := chain.LoadRegistry(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	_, err = reg.Network(chain.Mainnet)
	require.NoError(t, err, "defaults include mainnet")

	path := filepath.Join(dir, "chains.json")
	require.NoError(t, os.WriteFile(path, []byte(chainsJSON), 0o600))
	reg, err = chain.LoadRegistry(path)
	require.NoError(t, err)
	_, err = reg.Network(chain.Mainnet)
	require.ErrorIs(t, err, satchelerr.ErrNetworkNotFound, "file replaces defaults")
}

func TestRegistryMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	data, err := chain.DefaultRegistry().Marshal()
	require.NoError(t, err)

	reg, err := chain.ParseRegistry(data)
	require.NoError(t, err)
	assert.Equal(t, chain.DefaultRegistry().Networks(), reg.Networks())
}

func TestExplorerLinks(t *testing.T) {
	t.Parallel()

	n := chain.Network{Explorer: "https://sepolia.etherscan.io/"}
	hash := common.HexToHash("0x01")
	assert.Equal(t, "https://sepolia.etherscan.io/tx/"+hash.Hex(), n.TxLink(hash))

	addr := common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	assert.Equal(t, "https://sepolia.etherscan.io/address/0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", n.AddressLink(addr))

	assert.Empty(t, chain.Network{}.TxLink(hash))
}
