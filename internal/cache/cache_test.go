package cache

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	holder = common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	usdc   = common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
	native = common.Address{}
)

func TestFileStorage(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	t.Run("Save and Load round-trip", func(t *testing.T) {
		t.Parallel()
		storage := NewFileStorage(filepath.Join(dir, "roundtrip", FileName))

		c := NewBalanceCache()
		c.Set(BalanceCacheEntry{ChainID: 1, Address: holder, Balance: "1500000000000000000", Symbol: "ETH", Decimals: 18})
		c.Set(BalanceCacheEntry{ChainID: 1, Address: holder, Token: usdc, Balance: "3000000", Symbol: "USDC", Decimals: 6})
		require.NoError(t, storage.Save(c))

		info, err := os.Stat(storage.Path())
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		loaded, err := storage.Load()
		require.NoError(t, err)
		assert.Equal(t, 2, loaded.Size())

		eth, ok, _ := loaded.Get(1, holder, native)
		require.True(t, ok)
		assert.Equal(t, "ETH", eth.Symbol)
		assert.Equal(t, big.NewInt(1_500_000_000_000_000_000), eth.Amount())

		tok, ok, _ := loaded.Get(1, holder, usdc)
		require.True(t, ok)
		assert.Equal(t, 6, tok.Decimals)
	})

	t.Run("missing file is an empty cache", func(t *testing.T) {
		t.Parallel()
		c, err := NewFileStorage(filepath.Join(dir, "none.json")).Load()
		require.NoError(t, err)
		assert.Equal(t, 0, c.Size())
	})

	t.Run("corrupt file is moved aside", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(dir, "corrupt.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		c, err := NewFileStorage(path).Load()
		require.ErrorIs(t, err, ErrCorruptCache)
		assert.Equal(t, 0, c.Size())
		_, statErr := os.Stat(path)
		assert.True(t, errors.Is(statErr, os.ErrNotExist))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		t.Parallel()
		storage := NewFileStorage(filepath.Join(dir, "del", FileName))
		require.NoError(t, storage.Save(NewBalanceCache()))
		require.NoError(t, storage.Delete())
		require.NoError(t, storage.Delete())
	})
}

func TestBalanceCache(t *testing.T) {
	t.Parallel()

	t.Run("native and token entries are separate", func(t *testing.T) {
		t.Parallel()
		c := NewBalanceCache()
		c.Set(BalanceCacheEntry{ChainID: 1, Address: holder, Balance: "1", Symbol: "ETH"})
		c.Set(BalanceCacheEntry{ChainID: 1, Address: holder, Token: usdc, Balance: "2", Symbol: "USDC"})
		c.Set(BalanceCacheEntry{ChainID: 137, Address: holder, Balance: "3", Symbol: "POL"})

		e, ok, age := c.Get(1, holder, native)
		require.True(t, ok)
		assert.Equal(t, "ETH", e.Symbol)
		assert.Less(t, age, time.Second)

		e, ok, _ = c.Get(1, holder, usdc)
		require.True(t, ok)
		assert.Equal(t, "USDC", e.Symbol)

		e, ok, _ = c.Get(137, holder, native)
		require.True(t, ok)
		assert.Equal(t, "POL", e.Symbol)

		_, ok, _ = c.Get(5, holder, native)
		assert.False(t, ok)
	})

	t.Run("staleness", func(t *testing.T) {
		t.Parallel()
		c := NewBalanceCache()
		assert.True(t, c.IsStale(1, holder, native, DefaultStaleness))

		c.Set(BalanceCacheEntry{ChainID: 1, Address: holder, Balance: "1"})
		assert.False(t, c.IsStale(1, holder, native, DefaultStaleness))

		key := Key(1, holder, native)
		entry := c.Entries[key]
		entry.UpdatedAt = time.Now().Add(-10 * time.Minute)
		c.Entries[key] = entry
		assert.True(t, c.IsStale(1, holder, native, DefaultStaleness))
	})

	t.Run("delete and prune", func(t *testing.T) {
		t.Parallel()
		c := NewBalanceCache()
		c.Set(BalanceCacheEntry{ChainID: 1, Address: holder, Balance: "1"})
		c.Set(BalanceCacheEntry{ChainID: 1, Address: holder, Token: usdc, Balance: "2"})
		c.Delete(1, holder, usdc)
		assert.Equal(t, 1, c.Size())

		key := Key(1, holder, native)
		entry := c.Entries[key]
		entry.UpdatedAt = time.Now().Add(-time.Hour)
		c.Entries[key] = entry
		assert.Equal(t, 1, c.Prune(30*time.Minute))
		assert.Equal(t, 0, c.Size())
	})

	t.Run("malformed balance reads as zero", func(t *testing.T) {
		t.Parallel()
		e := BalanceCacheEntry{Balance: "1.5"}
		assert.Zero(t, e.Amount().Sign())
	})
}
