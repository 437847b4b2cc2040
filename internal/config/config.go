// Package config loads satchel's configuration: a YAML file under the home
// directory, overridden by SATCHEL_* environment variables and then by
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Home     string         `yaml:"home" json:"home"`
	Network  NetworkConfig  `yaml:"network" json:"network"`
	Security SecurityConfig `yaml:"security" json:"security"`
	Transfer TransferConfig `yaml:"transfer" json:"transfer"`
	Fiat     FiatConfig     `yaml:"fiat" json:"fiat"`
	Output   OutputConfig   `yaml:"output" json:"output"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// NetworkConfig selects the chain and bounds RPC traffic.
type NetworkConfig struct {
	DefaultChainID    uint64        `yaml:"default_chain_id" json:"default_chain_id"`
	ChainsFile        string        `yaml:"chains_file" json:"chains_file"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
}

// SecurityConfig defines keystore and memory settings.
type SecurityConfig struct {
	ScryptN    int  `yaml:"scrypt_n" json:"scrypt_n"`
	ScryptP    int  `yaml:"scrypt_p" json:"scrypt_p"`
	MemoryLock bool `yaml:"memory_lock" json:"memory_lock"`
}

// TransferConfig defines submission behavior.
type TransferConfig struct {
	GasTier             string        `yaml:"gas_tier" json:"gas_tier"`
	MaxInFlight         int64         `yaml:"max_in_flight" json:"max_in_flight"`
	ReceiptPollInterval time.Duration `yaml:"receipt_poll_interval" json:"receipt_poll_interval"`
	ReceiptTimeout      time.Duration `yaml:"receipt_timeout" json:"receipt_timeout"`
}

// FiatConfig defines the exchange-rate source used for display.
type FiatConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	URL      string `yaml:"url" json:"url"`
	Currency string `yaml:"currency" json:"currency"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format" json:"default_format"`
	Color         string `yaml:"color" json:"color"`
	Verbose       bool   `yaml:"verbose" json:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Load reads configuration from path on top of Defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from --home or SATCHEL_HOME
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, satchelerr.WithCause(satchelerr.ErrConfigInvalid, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to Defaults when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	return cfg, err
}

// Save writes configuration to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Path returns the config file path under home.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var problems []string

	if c.Network.DefaultChainID == 0 {
		problems = append(problems, "network.default_chain_id must be set")
	}
	if c.Network.RequestsPerSecond < 0 {
		problems = append(problems, "network.requests_per_second must not be negative")
	}
	if n := c.Security.ScryptN; n < 2 || n&(n-1) != 0 {
		problems = append(problems, "security.scrypt_n must be a power of two")
	}
	if c.Security.ScryptP < 1 {
		problems = append(problems, "security.scrypt_p must be positive")
	}
	if c.Transfer.MaxInFlight < 1 {
		problems = append(problems, "transfer.max_in_flight must be positive")
	}
	if c.Transfer.ReceiptPollInterval <= 0 {
		problems = append(problems, "transfer.receipt_poll_interval must be positive")
	}
	switch c.Transfer.GasTier {
	case "default", "slow", "medium", "fast":
	default:
		problems = append(problems, fmt.Sprintf("transfer.gas_tier %q is not one of default, slow, medium, fast", c.Transfer.GasTier))
	}

	if len(problems) > 0 {
		return satchelerr.WithDetails(satchelerr.ErrConfigInvalid, map[string]string{
			"problems": strings.Join(problems, "; "),
		})
	}
	return nil
}

// AccountsDir is where account directories live.
func (c *Config) AccountsDir() string {
	return filepath.Join(ExpandHome(c.Home), "accounts")
}

// ChainsPath resolves the chain registry file, relative to home unless
// absolute.
func (c *Config) ChainsPath() string {
	p := ExpandHome(c.Network.ChainsFile)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ExpandHome(c.Home), p)
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the log file path, relative to home unless
// absolute.
func (c *Config) GetLoggingFile() string {
	p := ExpandHome(c.Logging.File)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ExpandHome(c.Home), p)
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// DefaultHome returns ~/.satchel, or .satchel when the user home is unknown.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".satchel"
	}
	return filepath.Join(home, ".satchel")
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
