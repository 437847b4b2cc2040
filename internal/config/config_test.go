package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

func TestDefaultsValidate(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint64(DefaultChainID), cfg.Network.DefaultChainID)
	assert.Equal(t, DefaultGasTier, cfg.Transfer.GasTier)
	assert.True(t, cfg.Fiat.Enabled)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := Path(t.TempDir())
	cfg := Defaults()
	cfg.Network.DefaultChainID = 11155111
	cfg.Transfer.ReceiptTimeout = 90 * time.Second
	cfg.Logging.Level = "debug"

	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network:\n  default_chain_id: 137\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(137), cfg.Network.DefaultChainID)
	assert.Equal(t, DefaultScryptN, cfg.Security.ScryptN)
	assert.Equal(t, DefaultReceiptPoll, cfg.Transfer.ReceiptPollInterval)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	cfg, err := LoadOrDefault(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("network: [unclosed"), 0o600))
	_, err = Load(bad)
	require.ErrorIs(t, err, satchelerr.ErrConfigInvalid)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chain", func(c *Config) { c.Network.DefaultChainID = 0 }},
		{"negative rate", func(c *Config) { c.Network.RequestsPerSecond = -1 }},
		{"scrypt not power of two", func(c *Config) { c.Security.ScryptN = 1000 }},
		{"zero scrypt p", func(c *Config) { c.Security.ScryptP = 0 }},
		{"zero in flight", func(c *Config) { c.Transfer.MaxInFlight = 0 }},
		{"zero poll", func(c *Config) { c.Transfer.ReceiptPollInterval = 0 }},
		{"unknown tier", func(c *Config) { c.Transfer.GasTier = "ludicrous" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Defaults()
			tt.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), satchelerr.ErrConfigInvalid)
		})
	}
}

func TestPaths(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	cfg.Home = "/srv/satchel"
	assert.Equal(t, filepath.Join("/srv/satchel", "accounts"), cfg.AccountsDir())
	assert.Equal(t, filepath.Join("/srv/satchel", "chains.json"), cfg.ChainsPath())

	cfg.Network.ChainsFile = "/etc/satchel/chains.json"
	assert.Equal(t, "/etc/satchel/chains.json", cfg.ChainsPath())

	assert.Equal(t, filepath.Join("/srv/satchel", "satchel.log"), cfg.GetLoggingFile())
	cfg.Logging.File = "/var/log/satchel.log"
	assert.Equal(t, "/var/log/satchel.log", cfg.GetLoggingFile())

	assert.Equal(t, "relative/path", ExpandHome("relative/path"))
	assert.NotContains(t, ExpandHome("~/x"), "~")
}
